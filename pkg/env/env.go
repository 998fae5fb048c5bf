// Package env sets up a bus session from command line flags and environment.
package env

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/dxl.go/pkg/dxl/bus"
	"github.com/robotalks/dxl.go/pkg/dxl/chain"
	"github.com/robotalks/dxl.go/pkg/dxl/comm"
	"github.com/robotalks/dxl.go/pkg/framework"
	"github.com/robotalks/dxl.go/pkg/serial"
)

// Config provides common options to setup a bus session.
type Config struct {
	Serial serial.Config
	Bus    bus.Config

	// JointsFile is an optional YAML joint description.
	JointsFile string
	// PollInterval is the delay between moving flag polls.
	PollInterval time.Duration
}

var defaultConfig = Config{
	Serial: serial.Config{
		Device:      "/dev/ttyUSB0",
		Driver:      serial.DefaultDriver,
		PortOptions: serial.PortOptions{BaudRate: serial.DefaultBaudRate},
	},
	Bus:          bus.DefaultConfig(),
	PollInterval: chain.DefaultPollInterval,
}

func init() {
	loadEnv(&defaultConfig, os.Getenv)
}

func loadEnv(conf *Config, getenv func(string) string) {
	if val := getenv("DXL_DEVICE"); val != "" {
		conf.Serial.Device = val
	}
	if val := getenv("DXL_DRIVER"); val != "" {
		conf.Serial.Driver = val
	}
	if val := getenv("DXL_BAUD"); val != "" {
		if baud, err := strconv.Atoi(val); err == nil {
			conf.Serial.BaudRate = baud
		} else {
			glog.Warningf("ignore invalid DXL_BAUD %q: %v", val, err)
		}
	}
	if val := getenv("DXL_JOINTS"); val != "" {
		conf.JointsFile = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Serial.Device, "device", defaultConfig.Serial.Device, "Serial device of the bus")
	flag.StringVar(&defaultConfig.Serial.Driver, "driver", defaultConfig.Serial.Driver, fmt.Sprintf("Serial driver %v", serial.Drivers()))
	flag.IntVar(&defaultConfig.Serial.BaudRate, "baud", defaultConfig.Serial.BaudRate, "Baud rate")
	flag.BoolVar(&defaultConfig.Serial.Log, "dump", defaultConfig.Serial.Log, "Log raw bytes at -v=3")
	flag.DurationVar(&defaultConfig.Bus.Timeout, "timeout", defaultConfig.Bus.Timeout, "Read timeout of each attempt")
	flag.IntVar(&defaultConfig.Bus.Attempts, "attempts", defaultConfig.Bus.Attempts, "Attempts of each exchange")
	flag.BoolVar(&defaultConfig.Bus.Verbose, "verbose", defaultConfig.Bus.Verbose, "Log failed attempts")
	flag.StringVar(&defaultConfig.JointsFile, "joints", defaultConfig.JointsFile, "Joint description file in YAML")
	flag.DurationVar(&defaultConfig.PollInterval, "poll", defaultConfig.PollInterval, "Interval of polling moving devices")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Env is an opened bus session.
type Env struct {
	Config *Config
	Port   serial.Port
	Bus    *bus.Bus
	Chain  *chain.Chain
	Joints *chain.Joints
}

// NewEnv opens the serial port and creates Env from config.
func (c *Config) NewEnv() (*Env, error) {
	port, err := serial.Open(c.Serial)
	if err != nil {
		return nil, err
	}
	env, err := c.NewEnvWithPort(port)
	if err != nil {
		port.Close()
		return nil, err
	}
	return env, nil
}

// NewEnvWithPort creates Env on an opened port.
func (c *Config) NewEnvWithPort(port serial.Port) (*Env, error) {
	env := &Env{Config: c, Port: port}
	if c.JointsFile != "" {
		joints, err := chain.LoadJoints(c.JointsFile)
		if err != nil {
			return nil, fmt.Errorf("load joints error: %w", err)
		}
		env.Joints = joints
	}
	env.Bus = bus.New(port, c.Bus)
	env.Chain = chain.New(env.Bus)
	if c.PollInterval > 0 {
		env.Chain.PollInterval = c.PollInterval
	}
	return env, nil
}

// Close closes the serial port.
func (e *Env) Close() error {
	return e.Port.Close()
}

// Addresses resolves joint names to addresses. Without names it returns
// all joints, if a joint description is loaded.
func (e *Env) Addresses(names ...string) ([]comm.Address, error) {
	if e.Joints == nil {
		if len(names) > 0 {
			return nil, fmt.Errorf("no joints file, unable to resolve %v", names)
		}
		return nil, nil
	}
	addrs, _, err := e.Joints.Resolve(names...)
	return addrs, err
}

// NewMonitor creates a Monitor on addrs, or all joints when addrs is empty.
func (e *Env) NewMonitor(addrs []comm.Address, onChange chain.MonitorFunc) (*chain.Monitor, error) {
	if len(addrs) == 0 {
		var err error
		if addrs, err = e.Addresses(); err != nil {
			return nil, err
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no devices to monitor")
	}
	return chain.NewMonitor(e.Bus, addrs, onChange), nil
}

// NewLoop creates a loop polling at the configured interval.
func (e *Env) NewLoop(controllers ...framework.Controller) *framework.Loop {
	loop := framework.NewLoop()
	loop.Interval = e.Config.PollInterval
	return loop.AddController(controllers...)
}
