package serial

import (
	"io"
	"sync"
	"time"

	"github.com/tarm/serial"
)

// tarmConn is the part of *serial.Port used by tarmPort.
type tarmConn interface {
	io.ReadWriteCloser
	Flush() error
}

// tarmPort adapts github.com/tarm/serial which fixes the read timeout
// when opened, so changing the timeout reopens the port.
type tarmPort struct {
	conf serial.Config
	open func(*serial.Config) (tarmConn, error)
	conn tarmConn
	lock sync.Mutex
}

func openTarmPort(c *serial.Config) (tarmConn, error) {
	port, err := serial.OpenPort(c)
	if err != nil {
		return nil, err
	}
	return port, nil
}

func openTarm(conf Config) (Port, error) {
	c, err := conf.PortOptions.TarmConfig(conf.Device)
	if err != nil {
		return nil, err
	}
	c.ReadTimeout = conf.Timeout
	p, err := newTarmPort(*c, openTarmPort)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func newTarmPort(c serial.Config, open func(*serial.Config) (tarmConn, error)) (*tarmPort, error) {
	p := &tarmPort{conf: c, open: open}
	conn, err := open(&p.conf)
	if err != nil {
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func (p *tarmPort) current() tarmConn {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.conn
}

func (p *tarmPort) Read(b []byte) (int, error) {
	return p.current().Read(b)
}

func (p *tarmPort) Write(b []byte) (int, error) {
	return p.current().Write(b)
}

func (p *tarmPort) SetReadTimeout(d time.Duration) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if d == p.conf.ReadTimeout {
		return nil
	}
	p.conn.Close()
	p.conf.ReadTimeout = d
	conn, err := p.open(&p.conf)
	if err != nil {
		return err
	}
	p.conn = conn
	return nil
}

// ResetInputBuffer discards both directions as tarm only offers a
// combined flush.
func (p *tarmPort) ResetInputBuffer() error {
	return p.current().Flush()
}

// ResetOutputBuffer is covered by ResetInputBuffer.
func (p *tarmPort) ResetOutputBuffer() error {
	return nil
}

func (p *tarmPort) Close() error {
	return p.current().Close()
}
