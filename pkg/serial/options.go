package serial

import (
	"fmt"
	"strings"

	"github.com/tarm/serial"
	bugst "go.bug.st/serial"
)

// DefaultBaudRate is the factory baud rate of AX-12 servos.
const DefaultBaudRate = 1000000

// PortOptions describes the line settings of a serial port.
type PortOptions struct {
	BaudRate int    `yaml:"baud_rate"`
	DataBits int    `yaml:"data_bits"`
	StopBits int    `yaml:"stop_bits"`
	Parity   string `yaml:"parity"`
}

// Normalize validates the options and applies defaults for any unset values.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o
	if opts.BaudRate <= 0 {
		opts.BaudRate = DefaultBaudRate
	}
	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}
	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	switch parity := strings.TrimSpace(strings.ToUpper(opts.Parity)); parity {
	case "", "N", "NONE":
		opts.Parity = "N"
	case "E", "EVEN":
		opts.Parity = "E"
	case "O", "ODD":
		opts.Parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", o.Parity)
	}
	return opts, nil
}

// Mode converts the options for go.bug.st/serial.
func (o PortOptions) Mode() (*bugst.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}
	mode := &bugst.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: bugst.OneStopBit,
	}
	if opts.StopBits == 2 {
		mode.StopBits = bugst.TwoStopBits
	}
	switch opts.Parity {
	case "E":
		mode.Parity = bugst.EvenParity
	case "O":
		mode.Parity = bugst.OddParity
	default:
		mode.Parity = bugst.NoParity
	}
	return mode, nil
}

// TarmConfig converts the options for github.com/tarm/serial.
func (o PortOptions) TarmConfig(device string) (*serial.Config, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}
	return &serial.Config{
		Name:     device,
		Baud:     opts.BaudRate,
		Size:     byte(opts.DataBits),
		StopBits: serial.StopBits(opts.StopBits),
		Parity:   serial.Parity(opts.Parity[0]),
	}, nil
}
