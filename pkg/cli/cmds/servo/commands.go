package servo

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/dxl.go/pkg/cli/sh"
	"github.com/robotalks/dxl.go/pkg/dxl/comm"
	"github.com/robotalks/dxl.go/pkg/dxl/reg"
)

// Value is a register value of a device.
type Value struct {
	Address  comm.Address `json:"id"`
	Register string       `json:"register"`
	Value    int          `json:"value"`
}

func (v Value) String() string {
	return fmt.Sprintf("%d %s = %d", v.Address, v.Register, v.Value)
}

type regInfo struct {
	Name     string `json:"name"`
	Address  int    `json:"address"`
	Width    int    `json:"width"`
	Writable bool   `json:"writable"`
	Min      *int   `json:"min,omitempty"`
	Max      *int   `json:"max,omitempty"`
}

func (r regInfo) String() string {
	if !r.Writable {
		return fmt.Sprintf("0x%02x %-22s %d ro", r.Address, r.Name, r.Width)
	}
	return fmt.Sprintf("0x%02x %-22s %d rw [%d, %d]", r.Address, r.Name, r.Width, *r.Min, *r.Max)
}

func lookup(name string) (reg.Register, error) {
	if r, ok := reg.Lookup(name); ok {
		return r, nil
	}
	if n, err := strconv.ParseUint(name, 0, 8); err == nil {
		if r, ok := reg.ByAddress(byte(n)); ok {
			return r, nil
		}
	}
	return reg.Register{}, fmt.Errorf("unknown register %q", name)
}

func readCmd(name string, r reg.Register, help string) ishell.Cmd {
	return ishell.Cmd{
		Name: name,
		Help: "ID... " + help,
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			addrs, err := s.ParseAddresses(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			values := make([]Value, 0, len(addrs))
			for _, addr := range addrs {
				v, err := s.Env.Bus.Read(addr, r)
				if err != nil {
					c.Err(err)
					return
				}
				values = append(values, Value{Address: addr, Register: r.Name, Value: v})
			}
			printValues(c, values)
		}),
	}
}

func printValues(c *ishell.Context, values []Value) {
	sh.Print(c, values, func() string {
		var w bytes.Buffer
		for n, v := range values {
			if n > 0 {
				w.WriteByte('\n')
			}
			w.WriteString(v.String())
		}
		return w.String()
	})
}

func switchCmd(name string, set func(s *sh.Shell, addr comm.Address, on bool) error, help string) ishell.Cmd {
	return ishell.Cmd{
		Name: name,
		Help: "ID on|off, " + help,
		Func: sh.MustBeOpen(sh.MinArgs(2, func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			addr, err := s.ParseAddress(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			on, err := parseSwitch(c.Args[1])
			if err != nil {
				c.Err(err)
				return
			}
			sh.Done(c, set(s, addr, on))
		})),
	}
}

func parseSwitch(arg string) (bool, error) {
	switch arg {
	case "on", "1", "true":
		return true, nil
	case "off", "0", "false":
		return false, nil
	}
	return false, fmt.Errorf("expect on or off, got %q", arg)
}

var (
	// PingCmd pings devices.
	PingCmd = ishell.Cmd{
		Name: "ping",
		Help: "ID...",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			addrs, err := s.ParseAddresses(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			result := make(map[comm.Address]bool, len(addrs))
			var w bytes.Buffer
			for n, addr := range addrs {
				ok := s.Env.Bus.Ping(addr)
				result[addr] = ok
				if n > 0 {
					w.WriteByte('\n')
				}
				if ok {
					fmt.Fprintf(&w, "%d OK", addr)
				} else {
					fmt.Fprintf(&w, "%d no response", addr)
				}
			}
			sh.Print(c, result, w.String)
		}),
	}

	// ScanCmd lists responding devices.
	ScanCmd = ishell.Cmd{
		Name:    "scan",
		Aliases: []string{"list", "l"},
		Help:    "[BEGIN [END]], scan addresses in [BEGIN, END], default 0 253",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			bounds, err := sh.ParseInts(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			begin, end := 0, int(comm.MaxAddress)
			if len(bounds) > 0 {
				begin = bounds[0]
			}
			if len(bounds) > 1 {
				end = bounds[1]
			}
			found := sh.EnvFrom(c).Bus.Scan(begin, end)
			// []comm.Address marshals as bytes.
			ids := make([]int, len(found))
			for n, addr := range found {
				ids[n] = int(addr)
			}
			sh.Print(c, ids, func() string {
				if len(ids) == 0 {
					return "No devices found"
				}
				return fmt.Sprint(ids)
			})
		}),
	}

	// ReadCmd reads a register.
	ReadCmd = ishell.Cmd{
		Name:    "read",
		Aliases: []string{"r"},
		Help:    "REGISTER ID...",
		Func: sh.MustBeOpen(sh.MinArgs(1, func(c *ishell.Context) {
			r, err := lookup(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			cmd := readCmd("read", r, "")
			c.Args = c.Args[1:]
			cmd.Func(c)
		})),
	}

	// WriteCmd writes a register.
	WriteCmd = ishell.Cmd{
		Name:    "write",
		Aliases: []string{"w"},
		Help:    "REGISTER ID VALUE [deferred]",
		Func: sh.MustBeOpen(sh.MinArgs(3, func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			r, err := lookup(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			addr, err := s.ParseAddress(c.Args[1])
			if err != nil {
				c.Err(err)
				return
			}
			v, err := strconv.Atoi(c.Args[2])
			if err != nil {
				c.Err(fmt.Errorf("invalid value %q", c.Args[2]))
				return
			}
			deferred := len(c.Args) > 3 && c.Args[3] == "deferred"
			sh.Done(c, s.Env.Bus.Write(addr, r, v, deferred))
		})),
	}

	// LEDCmd turns LED on or off.
	LEDCmd = switchCmd("led", func(s *sh.Shell, addr comm.Address, on bool) error {
		return s.Env.Bus.SetLED(addr, on)
	}, "turn LED on or off")

	// TorqueCmd enables or disables torque.
	TorqueCmd = switchCmd("torque", func(s *sh.Shell, addr comm.Address, on bool) error {
		return s.Env.Bus.SetTorqueEnable(addr, on)
	}, "enable or disable torque")

	// PositionCmd reads present positions.
	PositionCmd = readCmd("pos", reg.PresentPosition, "read present position")
	// LoadCmd reads present load.
	LoadCmd = readCmd("load", reg.PresentLoad, "read present load")
	// VoltageCmd reads present voltage.
	VoltageCmd = readCmd("voltage", reg.PresentVoltage, "read present voltage in 0.1V")
	// TemperatureCmd reads present temperature.
	TemperatureCmd = readCmd("temp", reg.PresentTemperature, "read present temperature")
	// MovingCmd reads the moving flag.
	MovingCmd = readCmd("moving", reg.Moving, "read moving flag")

	// GoalCmd stages a goal position.
	GoalCmd = ishell.Cmd{
		Name: "goal",
		Help: "ID POSITION, stage goal position until action",
		Func: sh.MustBeOpen(sh.MinArgs(2, func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			addr, err := s.ParseAddress(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			v, err := sh.ParseInts(c.Args[1:2])
			if err != nil {
				c.Err(err)
				return
			}
			sh.Done(c, s.Env.Bus.SetPosition(addr, v[0]))
		})),
	}

	// SpeedCmd stages a moving speed.
	SpeedCmd = ishell.Cmd{
		Name: "speed",
		Help: "ID SPEED, stage moving speed until action",
		Func: sh.MustBeOpen(sh.MinArgs(2, func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			addr, err := s.ParseAddress(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			v, err := sh.ParseInts(c.Args[1:2])
			if err != nil {
				c.Err(err)
				return
			}
			sh.Done(c, s.Env.Bus.SetVelocity(addr, v[0]))
		})),
	}

	// ActionCmd applies staged writes.
	ActionCmd = ishell.Cmd{
		Name:    "action",
		Aliases: []string{"go"},
		Help:    "apply staged writes on all devices",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			sh.Done(c, sh.EnvFrom(c).Bus.Trigger())
		}),
	}

	// ResetCmd restores factory settings.
	ResetCmd = ishell.Cmd{
		Name: "reset",
		Help: "ID, restore factory settings",
		Func: sh.MustBeOpen(sh.MinArgs(1, func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			addr, err := s.ParseAddress(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			sh.Done(c, s.Env.Bus.Reset(addr))
		})),
	}

	// RegsCmd lists registers.
	RegsCmd = ishell.Cmd{
		Name: "regs",
		Help: "list registers",
		Func: func(c *ishell.Context) {
			all := reg.All()
			infos := make([]regInfo, len(all))
			for n, r := range all {
				infos[n] = regInfo{Name: r.Name, Address: int(r.Address), Width: r.Width, Writable: r.Writable()}
				if r.Writable() {
					infos[n].Min, infos[n].Max = &all[n].Min, &all[n].Max
				}
			}
			sh.Print(c, infos, func() string {
				var w bytes.Buffer
				for n, info := range infos {
					if n > 0 {
						w.WriteByte('\n')
					}
					w.WriteString(info.String())
				}
				return w.String()
			})
		},
	}
)

func init() {
	sh.AddCmds(
		&PingCmd,
		&ScanCmd,
		&ReadCmd,
		&WriteCmd,
		&LEDCmd,
		&TorqueCmd,
		&PositionCmd,
		&LoadCmd,
		&VoltageCmd,
		&TemperatureCmd,
		&MovingCmd,
		&GoalCmd,
		&SpeedCmd,
		&ActionCmd,
		&ResetCmd,
		&RegsCmd,
	)
}
