package serial

import (
	bugst "go.bug.st/serial"
)

func openBugst(conf Config) (Port, error) {
	mode, err := conf.PortOptions.Mode()
	if err != nil {
		return nil, err
	}
	port, err := bugst.Open(conf.Device, mode)
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(conf.Timeout); err != nil {
		port.Close()
		return nil, err
	}
	return port, nil
}
