package serial

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tarm/serial"
	bugst "go.bug.st/serial"

	"github.com/robotalks/dxl.go/pkg/dxl/comm"
	"github.com/robotalks/dxl.go/pkg/dxl/dxltest"
)

func TestNormalize(t *testing.T) {
	testCases := []struct {
		name   string
		opts   PortOptions
		expect PortOptions
		err    bool
	}{
		{"defaults", PortOptions{}, PortOptions{BaudRate: DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "N"}, false},
		{"negative baud", PortOptions{BaudRate: -5}, PortOptions{BaudRate: DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "N"}, false},
		{"explicit", PortOptions{BaudRate: 57600, DataBits: 7, StopBits: 2, Parity: " even "}, PortOptions{BaudRate: 57600, DataBits: 7, StopBits: 2, Parity: "E"}, false},
		{"odd", PortOptions{Parity: "odd"}, PortOptions{BaudRate: DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "O"}, false},
		{"data bits", PortOptions{DataBits: 9}, PortOptions{}, true},
		{"stop bits", PortOptions{StopBits: 3}, PortOptions{}, true},
		{"parity", PortOptions{Parity: "mark"}, PortOptions{}, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			opts, err := tc.opts.Normalize()
			if tc.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expect, opts)
		})
	}
}

func TestMode(t *testing.T) {
	mode, err := PortOptions{}.Mode()
	require.NoError(t, err)
	require.Equal(t, &bugst.Mode{BaudRate: DefaultBaudRate, DataBits: 8, StopBits: bugst.OneStopBit, Parity: bugst.NoParity}, mode)

	mode, err = PortOptions{BaudRate: 115200, StopBits: 2, Parity: "O"}.Mode()
	require.NoError(t, err)
	require.Equal(t, bugst.TwoStopBits, mode.StopBits)
	require.Equal(t, bugst.OddParity, mode.Parity)

	_, err = PortOptions{DataBits: 4}.Mode()
	require.Error(t, err)
}

func TestTarmConfig(t *testing.T) {
	c, err := PortOptions{Parity: "E"}.TarmConfig("/dev/ttyUSB0")
	require.NoError(t, err)
	require.Equal(t, &serial.Config{
		Name:     "/dev/ttyUSB0",
		Baud:     DefaultBaudRate,
		Size:     8,
		StopBits: serial.Stop1,
		Parity:   serial.ParityEven,
	}, c)
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(Config{})
	require.Error(t, err)
	_, err = Open(Config{Device: "/dev/null", Driver: "nope"})
	require.EqualError(t, err, `unknown serial driver "nope", expect one of [bugst tarm]`)
}

type fakeConn struct {
	bytes.Buffer
	flushes int
	closed  bool
}

func (c *fakeConn) Flush() error {
	c.flushes++
	c.Reset()
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func TestTarmPort(t *testing.T) {
	var opened []*fakeConn
	var timeouts []time.Duration
	open := func(c *serial.Config) (tarmConn, error) {
		conn := &fakeConn{}
		opened = append(opened, conn)
		timeouts = append(timeouts, c.ReadTimeout)
		return conn, nil
	}
	p, err := newTarmPort(serial.Config{Name: "test", ReadTimeout: 100 * time.Millisecond}, open)
	require.NoError(t, err)

	require.NoError(t, p.SetReadTimeout(100*time.Millisecond))
	require.Len(t, opened, 1)
	require.NoError(t, p.SetReadTimeout(20*time.Millisecond))
	require.Len(t, opened, 2)
	require.True(t, opened[0].closed)
	require.Equal(t, []time.Duration{100 * time.Millisecond, 20 * time.Millisecond}, timeouts)

	n, err := p.Write([]byte{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.NoError(t, p.ResetOutputBuffer())
	require.Equal(t, 3, opened[1].Len())
	require.NoError(t, p.ResetInputBuffer())
	require.Equal(t, 1, opened[1].flushes)
	require.Zero(t, opened[1].Len())
	require.NoError(t, p.Close())
	require.True(t, opened[1].closed)

	_, err = newTarmPort(serial.Config{}, func(*serial.Config) (tarmConn, error) {
		return nil, errors.New("busy")
	})
	require.EqualError(t, err, "busy")
}

func TestLogged(t *testing.T) {
	s := dxltest.NewStream(dxltest.NewDevice(1))
	p := Logged(s, "test")
	t0 := comm.NewTransport(p)
	t0.Timeout = time.Millisecond
	st, err := t0.Exchange(comm.NewPingPacket(1), 1)
	require.NoError(t, err)
	require.Equal(t, comm.Address(1), st.Address)
	require.Equal(t, time.Millisecond, s.ReadTimeout)
	require.NoError(t, p.Close())
	require.True(t, s.Closed)
}
