package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"github.com/robotalks/dxl.go/pkg/dxl/comm"
	"github.com/robotalks/dxl.go/pkg/env"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoOpen    bool

	Shell  *ishell.Shell
	Config *env.Config
	Env    *env.Env
}

const (
	shellKey     = "$shell"
	closedPrompt = "[closed] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&OpenCmd,
		&CloseCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(closedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// EnvFrom gets the opened Env from ishell context.
func EnvFrom(c *ishell.Context) *env.Env {
	return ShellFrom(c).Env
}

// MustBeOpen wraps command func requires an opened bus.
func MustBeOpen(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Env == nil {
			c.Err(fmt.Errorf("bus not opened"))
			return
		}
		fn(c)
	}
}

// MinArgs wraps command func requires at least n arguments.
func MinArgs(n int, fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if len(c.Args) < n {
			c.Err(fmt.Errorf("usage: %s %s", c.Cmd.Name, c.Cmd.Help))
			return
		}
		fn(c)
	}
}

// Context returns a context canceled by Ctrl-C, for commands waiting on
// devices. stop must be called once the command is done.
func (s *Shell) Context() (ctx context.Context, stop context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// ParseAddress parses a device address or a joint name.
// Broadcast is accepted, so only commands without replies should use it.
func (s *Shell) ParseAddress(arg string) (comm.Address, error) {
	return s.parseAddress(arg, comm.Broadcast)
}

// ParseDevice parses an address which must answer, excluding broadcast.
func (s *Shell) ParseDevice(arg string) (comm.Address, error) {
	return s.parseAddress(arg, comm.MaxAddress)
}

func (s *Shell) parseAddress(arg string, max comm.Address) (comm.Address, error) {
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 0 || n > int(max) {
			return 0, fmt.Errorf("invalid address %d, expect 0-%d", n, max)
		}
		return comm.Address(n), nil
	}
	if s.Env == nil || s.Env.Joints == nil {
		return 0, fmt.Errorf("invalid address %q", arg)
	}
	joint, ok := s.Env.Joints.Find(arg)
	if !ok {
		return 0, fmt.Errorf("unknown joint %q", arg)
	}
	return joint.Address, nil
}

// ParseAddresses parses device addresses or joint names. Without args all
// joints are returned.
func (s *Shell) ParseAddresses(args []string) ([]comm.Address, error) {
	if len(args) == 0 {
		if s.Env == nil {
			return nil, fmt.Errorf("bus not opened")
		}
		addrs, err := s.Env.Addresses()
		if err == nil && len(addrs) == 0 {
			err = fmt.Errorf("no addresses specified")
		}
		return addrs, err
	}
	addrs := make([]comm.Address, len(args))
	for n, arg := range args {
		addr, err := s.ParseDevice(arg)
		if err != nil {
			return nil, err
		}
		addrs[n] = addr
	}
	return addrs, nil
}

// ParseInts parses integer arguments.
func ParseInts(args []string) ([]int, error) {
	values := make([]int, len(args))
	for n, arg := range args {
		v, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", arg)
		}
		values[n] = v
	}
	return values, nil
}

// Print prints a result either in JSON or formatted by text.
func Print(c *ishell.Context, v interface{}, text func() string) {
	if ShellFrom(c).OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(text())
}

// Done reports a command result, an error or OK.
func Done(c *ishell.Context, err error) {
	if err != nil {
		c.Err(err)
		return
	}
	Print(c, map[string]bool{"ok": true}, func() string { return "OK" })
}

// Open opens the bus.
func (s *Shell) Open() error {
	e, err := s.Config.NewEnv()
	if err != nil {
		return err
	}
	s.Attach(e)
	return nil
}

// Attach uses an opened Env, closing the current one.
func (s *Shell) Attach(e *env.Env) {
	s.Close()
	s.Env = e
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", e.Config.Serial.Device))
}

// Close closes the current bus.
func (s *Shell) Close() {
	if s.Env != nil {
		if err := s.Env.Close(); err != nil {
			glog.Warningf("close %s error: %v", s.Env.Config.Serial.Device, err)
		}
		s.Env = nil
		s.Shell.SetPrompt(closedPrompt)
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoOpen {
		if s.Interactive {
			s.Shell.Printf("Opening %s ...\n", s.Config.Serial.Device)
		}
		if err := s.Open(); err != nil {
			glog.Exitf("open %q failed: %v", s.Config.Serial.Device, err)
		}
	}
	defer s.Close()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			glog.Exitln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	glog.Exitln("command expected")
}

var (
	// OpenCmd opens the bus.
	OpenCmd = ishell.Cmd{
		Name:    "open",
		Aliases: []string{"o"},
		Help:    "[DEVICE [BAUD]]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) > 0 {
				s.Config.Serial.Device = c.Args[0]
			}
			if len(c.Args) > 1 {
				baud, err := strconv.Atoi(c.Args[1])
				if err != nil {
					c.Err(fmt.Errorf("invalid baud rate %q", c.Args[1]))
					return
				}
				s.Config.Serial.BaudRate = baud
			}
			Done(c, s.Open())
		},
	}

	// CloseCmd closes the bus.
	CloseCmd = ishell.Cmd{
		Name:    "close",
		Aliases: []string{"c"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Close()
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	s := New(env.NewConfig())
	s.AutoOpen = true
	s.Run(flag.Args()...)
}
