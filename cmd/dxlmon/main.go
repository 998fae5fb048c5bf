package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"strconv"

	"github.com/golang/glog"

	"github.com/robotalks/dxl.go/pkg/dxl/chain"
	"github.com/robotalks/dxl.go/pkg/dxl/comm"
	"github.com/robotalks/dxl.go/pkg/env"
	"github.com/robotalks/dxl.go/pkg/framework"
)

var outputJSON bool

func init() {
	env.SetupFlags()
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print changes in JSON.")
}

type change struct {
	Time     string `json:"time"`
	Address  int    `json:"id"`
	Position int    `json:"position"`
}

func report(c chain.PositionChange) {
	if outputJSON {
		out, _ := json.Marshal(change{
			Time:     c.Time.Format("15:04:05.000"),
			Address:  int(c.Address),
			Position: c.Position,
		})
		fmt.Println(string(out))
		return
	}
	if c.Initial {
		fmt.Printf("%s %d: %d\n", c.Time.Format("15:04:05.000"), c.Address, c.Position)
		return
	}
	fmt.Printf("%s %d: %d -> %d\n", c.Time.Format("15:04:05.000"), c.Address, c.Previous, c.Position)
}

func parseAddresses(e *env.Env, args []string) ([]comm.Address, error) {
	var names []string
	var addrs []comm.Address
	for _, arg := range args {
		if n, err := strconv.Atoi(arg); err == nil && n >= 0 && n <= int(comm.MaxAddress) {
			addrs = append(addrs, comm.Address(n))
			continue
		}
		names = append(names, arg)
	}
	if len(names) > 0 {
		resolved, err := e.Addresses(names...)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, resolved...)
	}
	return addrs, nil
}

func run() error {
	e, err := env.NewConfig().NewEnv()
	if err != nil {
		return err
	}
	runner := framework.NewRunner().CloseOnExit(e)
	addrs, err := parseAddresses(e, flag.Args())
	if err == nil {
		var m *chain.Monitor
		if m, err = e.NewMonitor(addrs, report); err == nil {
			runner.HandleSignals().Go(framework.NamedRun("monitor", e.NewLoop(m)))
		}
	}
	if waitErr := runner.Wait(); err == nil {
		err = waitErr
	}
	return err
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		glog.Exitln(err)
	}
}
