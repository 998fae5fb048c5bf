// Package serial opens serial ports as Dynamixel bus streams.
package serial

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/robotalks/dxl.go/pkg/dxl/comm"
)

// Port is a bus stream which can be closed.
type Port interface {
	comm.Stream
	io.Closer
}

// Config holds serial port configuration.
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3").
	Device string `yaml:"device"`
	// Driver selects the serial implementation, see Drivers.
	Driver string `yaml:"driver"`
	// Timeout is the initial read timeout.
	Timeout time.Duration `yaml:"timeout"`
	// Log dumps raw bytes at glog level 3.
	Log bool `yaml:"log"`

	PortOptions `yaml:",inline"`
}

// DefaultDriver is used when Config.Driver is empty.
const DefaultDriver = "bugst"

// OpenFunc opens a port with the configuration.
type OpenFunc func(conf Config) (Port, error)

var drivers = map[string]OpenFunc{
	"bugst": openBugst,
	"tarm":  openTarm,
}

// Drivers lists the names of available drivers.
func Drivers() []string {
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open opens the serial port.
func Open(conf Config) (Port, error) {
	if conf.Device == "" {
		return nil, fmt.Errorf("serial device not specified")
	}
	name := conf.Driver
	if name == "" {
		name = DefaultDriver
	}
	open, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("unknown serial driver %q, expect one of %v", name, Drivers())
	}
	if conf.Timeout <= 0 {
		conf.Timeout = comm.DefaultTimeout
	}
	port, err := open(conf)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", conf.Device, err)
	}
	if conf.Log {
		port = Logged(port, conf.Device)
	}
	return port, nil
}
