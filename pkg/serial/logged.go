package serial

import (
	"time"

	"github.com/golang/glog"
)

// LogLevel is the glog verbosity at which Logged dumps bytes.
const LogLevel glog.Level = 3

type loggedPort struct {
	Port
	name string
}

// Logged wraps a Port to log raw bytes and errors.
func Logged(p Port, name string) Port {
	return &loggedPort{Port: p, name: name}
}

func (p *loggedPort) Read(b []byte) (int, error) {
	n, err := p.Port.Read(b)
	if glog.V(LogLevel) {
		glog.Infof("%s RX % x err=%v", p.name, b[:n], err)
	}
	return n, err
}

func (p *loggedPort) Write(b []byte) (int, error) {
	n, err := p.Port.Write(b)
	if glog.V(LogLevel) {
		glog.Infof("%s TX % x err=%v", p.name, b[:n], err)
	}
	return n, err
}

func (p *loggedPort) SetReadTimeout(d time.Duration) error {
	err := p.Port.SetReadTimeout(d)
	if glog.V(LogLevel) {
		glog.Infof("%s timeout %v err=%v", p.name, d, err)
	}
	return err
}
