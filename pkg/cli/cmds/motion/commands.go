package motion

import (
	"bytes"
	"flag"
	"fmt"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/dxl.go/pkg/cli/sh"
	"github.com/robotalks/dxl.go/pkg/dxl/chain"
	"github.com/robotalks/dxl.go/pkg/dxl/comm"
)

// Position is the present position of a device.
type Position struct {
	Address  comm.Address `json:"id"`
	Position int          `json:"position"`
}

func printPositions(c *ishell.Context, addrs []comm.Address, positions []int) {
	result := make([]Position, len(addrs))
	for n, addr := range addrs {
		result[n] = Position{Address: addr, Position: positions[n]}
	}
	sh.Print(c, result, func() string {
		var w bytes.Buffer
		for n, p := range result {
			if n > 0 {
				w.WriteByte('\n')
			}
			fmt.Fprintf(&w, "%d %d", p.Address, p.Position)
		}
		return w.String()
	})
}

// splitTargets splits "ID=POSITION" arguments.
func splitTargets(s *sh.Shell, args []string) ([]comm.Address, []int, error) {
	addrs := make([]comm.Address, 0, len(args))
	positions := make([]int, 0, len(args))
	for _, arg := range args {
		parts := strings.SplitN(arg, "=", 2)
		if len(parts) != 2 {
			return nil, nil, fmt.Errorf("expect ID=POSITION, got %q", arg)
		}
		addr, err := s.ParseDevice(parts[0])
		if err != nil {
			return nil, nil, err
		}
		v, err := sh.ParseInts(parts[1:])
		if err != nil {
			return nil, nil, err
		}
		addrs = append(addrs, addr)
		positions = append(positions, v[0])
	}
	return addrs, positions, nil
}

// velocities picks per-device velocities, from the -v flag or joints.
func velocities(s *sh.Shell, addrs []comm.Address, velocity int) []int {
	result := make([]int, len(addrs))
	for n, addr := range addrs {
		result[n] = velocity
		if velocity > 0 || s.Env.Joints == nil {
			continue
		}
		for _, joint := range s.Env.Joints.Joints {
			if joint.Address == addr {
				result[n] = s.Env.Joints.VelocityOf(joint)
				break
			}
		}
	}
	return result
}

func parseFlags(c *ishell.Context, setup func(*flag.FlagSet)) (*flag.FlagSet, error) {
	fs := flag.NewFlagSet(c.Cmd.Name, flag.ContinueOnError)
	var w bytes.Buffer
	fs.SetOutput(&w)
	setup(fs)
	if err := fs.Parse(c.Args); err != nil {
		return nil, fmt.Errorf("%v\n%s", err, w.String())
	}
	return fs, nil
}

var (
	// PositionsCmd reads present positions.
	PositionsCmd = ishell.Cmd{
		Name:    "positions",
		Aliases: []string{"ps"},
		Help:    "[ID...], read present positions, all joints by default",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			addrs, err := s.ParseAddresses(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			positions, err := s.Env.Chain.ReadPositions(addrs)
			if err != nil {
				c.Err(err)
				return
			}
			printPositions(c, addrs, positions)
		}),
	}

	// MoveCmd moves devices together.
	MoveCmd = ishell.Cmd{
		Name:    "move",
		Aliases: []string{"mv"},
		Help:    "[-v VELOCITY] [-nowait] ID=POSITION..., move devices together",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			var velocity int
			var noWait bool
			fs, err := parseFlags(c, func(fs *flag.FlagSet) {
				fs.IntVar(&velocity, "v", 0, "Moving speed, defaults to joint velocities")
				fs.BoolVar(&noWait, "nowait", false, "Return without waiting")
			})
			if err != nil {
				c.Err(err)
				return
			}
			if fs.NArg() == 0 {
				c.Err(fmt.Errorf("usage: %s %s", c.Cmd.Name, c.Cmd.Help))
				return
			}
			addrs, positions, err := splitTargets(s, fs.Args())
			if err != nil {
				c.Err(err)
				return
			}
			v, err := chain.NewVectorVelocities(positions, addrs, velocities(s, addrs, velocity))
			if err != nil {
				c.Err(err)
				return
			}
			if noWait {
				sh.Done(c, s.Env.Chain.Move(v))
				return
			}
			ctx, stop := s.Context()
			defer stop()
			sh.Done(c, s.Env.Chain.MoveAndWait(ctx, v))
		}),
	}

	// WaitCmd waits until devices stop.
	WaitCmd = ishell.Cmd{
		Name: "wait",
		Help: "[ID...], wait until devices stop moving",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			addrs, err := s.ParseAddresses(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			ctx, stop := s.Context()
			defer stop()
			sh.Done(c, s.Env.Chain.WaitForCompletion(ctx, addrs))
		}),
	}

	// InitCmd holds devices at present positions.
	InitCmd = ishell.Cmd{
		Name: "init",
		Help: "[-v VELOCITY] [ID...], hold devices at present positions",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			var velocity int
			fs, err := parseFlags(c, func(fs *flag.FlagSet) {
				fs.IntVar(&velocity, "v", 0, "Moving speed, defaults to joint velocities")
			})
			if err != nil {
				c.Err(err)
				return
			}
			addrs, err := s.ParseAddresses(fs.Args())
			if err != nil {
				c.Err(err)
				return
			}
			ctx, stop := s.Context()
			defer stop()
			v, err := s.Env.Chain.InitVelocities(ctx, addrs, velocities(s, addrs, velocity))
			if err != nil {
				c.Err(err)
				return
			}
			positions := make([]int, len(v))
			for n, t := range v {
				positions[n] = t.Position
			}
			printPositions(c, v.Addresses(), positions)
		}),
	}

	// GripCmd closes a gripper until the load limit.
	GripCmd = ishell.Cmd{
		Name: "grip",
		Help: "[-step N] [-limit LOAD] [-v VELOCITY] ID, step until the load reaches limit",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			opts := chain.DefaultGripOptions()
			fs, err := parseFlags(c, func(fs *flag.FlagSet) {
				fs.IntVar(&opts.Step, "step", opts.Step, "Position increment of each step, negative to reverse")
				fs.IntVar(&opts.Limit, "limit", opts.Limit, "Load to stop at")
				fs.IntVar(&opts.Velocity, "v", opts.Velocity, "Moving speed")
			})
			if err != nil {
				c.Err(err)
				return
			}
			if fs.NArg() != 1 {
				c.Err(fmt.Errorf("usage: %s %s", c.Cmd.Name, c.Cmd.Help))
				return
			}
			addr, err := s.ParseDevice(fs.Arg(0))
			if err != nil {
				c.Err(err)
				return
			}
			ctx, stop := s.Context()
			defer stop()
			pos, err := s.Env.Chain.Grip(ctx, addr, opts)
			if err != nil {
				c.Err(err)
				return
			}
			printPositions(c, []comm.Address{addr}, []int{pos})
		}),
	}
)

func init() {
	sh.AddCmds(
		&PositionsCmd,
		&MoveCmd,
		&WaitCmd,
		&InitCmd,
		&GripCmd,
	)
}
