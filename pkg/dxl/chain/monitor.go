package chain

import (
	"fmt"
	"time"

	"github.com/robotalks/dxl.go/pkg/dxl/comm"
	"github.com/robotalks/dxl.go/pkg/framework"
)

// PositionChange reports a new position read from a device.
type PositionChange struct {
	Address  comm.Address
	Position int
	Previous int
	// Initial is true for the first successful read.
	Initial bool
	Time    time.Time
}

// MonitorFunc receives position changes.
type MonitorFunc func(PositionChange)

// Monitor is a framework.Controller reading positions of devices on every
// loop iteration and reporting the changed ones.
type Monitor struct {
	Bus       Actuator
	Addresses []comm.Address
	OnChange  MonitorFunc

	last map[comm.Address]int
}

// NewMonitor creates a Monitor.
func NewMonitor(b Actuator, addrs []comm.Address, onChange MonitorFunc) *Monitor {
	return &Monitor{Bus: b, Addresses: addrs, OnChange: onChange}
}

// AddToLoop implements framework.LoopAdder.
func (m *Monitor) AddToLoop(l *framework.Loop) {
	l.AddController(m)
}

// Control implements framework.Controller.
func (m *Monitor) Control(cc framework.ControlContext) error {
	if m.last == nil {
		m.last = make(map[comm.Address]int)
	}
	var errs framework.AggregatedError
	for _, addr := range m.Addresses {
		pos, err := m.Bus.GetPosition(addr)
		if err != nil {
			errs.Add(fmt.Errorf("read position of %d: %w", addr, err))
			continue
		}
		prev, known := m.last[addr]
		if known && prev == pos {
			continue
		}
		m.last[addr] = pos
		if m.OnChange != nil {
			m.OnChange(PositionChange{
				Address:  addr,
				Position: pos,
				Previous: prev,
				Initial:  !known,
				Time:     cc.Time(),
			})
		}
	}
	return errs.Aggregate()
}

// Positions returns the last known positions.
func (m *Monitor) Positions() map[comm.Address]int {
	positions := make(map[comm.Address]int, len(m.last))
	for addr, pos := range m.last {
		positions[addr] = pos
	}
	return positions
}
