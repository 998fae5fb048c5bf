// Package chain coordinates synchronized motion across devices on a bus.
package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/dxl.go/pkg/dxl/comm"
)

// DefaultPollInterval is the delay between polls of the moving flag.
const DefaultPollInterval = 100 * time.Millisecond

// Actuator is the subset of bus operations the chain depends on.
// *bus.Bus implements it.
type Actuator interface {
	SetPosition(addr comm.Address, position int) error
	SetVelocity(addr comm.Address, velocity int) error
	Trigger() error
	IsMoving(addr comm.Address) (bool, error)
	GetPosition(addr comm.Address) (int, error)
	GetTorque(addr comm.Address) (int, error)
}

// Target is the goal of one device in a synchronized move.
type Target struct {
	Address  comm.Address
	Position int
	Velocity int
}

// Vector is an ordered list of targets, one per device.
type Vector []Target

// Addresses returns the device addresses in order.
func (v Vector) Addresses() []comm.Address {
	addrs := make([]comm.Address, len(v))
	for n, t := range v {
		addrs[n] = t.Address
	}
	return addrs
}

// LengthMismatchError is returned when vector inputs differ in length.
type LengthMismatchError struct {
	Addresses int
	Values    int
	Name      string
}

// Error implements error.
func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("%d addresses but %d %s", e.Addresses, e.Values, e.Name)
}

// DuplicateAddressError is returned when a vector addresses a device twice.
type DuplicateAddressError struct {
	Address comm.Address
}

// Error implements error.
func (e *DuplicateAddressError) Error() string {
	return fmt.Sprintf("device %d appears more than once", e.Address)
}

// NewVector builds a vector moving all devices at the same velocity.
func NewVector(positions []int, addrs []comm.Address, velocity int) (Vector, error) {
	velocities := make([]int, len(addrs))
	for n := range velocities {
		velocities[n] = velocity
	}
	return NewVectorVelocities(positions, addrs, velocities)
}

// NewVectorVelocities builds a vector with per-device velocities.
func NewVectorVelocities(positions []int, addrs []comm.Address, velocities []int) (Vector, error) {
	if len(positions) != len(addrs) {
		return nil, &LengthMismatchError{Addresses: len(addrs), Values: len(positions), Name: "positions"}
	}
	if len(velocities) != len(addrs) {
		return nil, &LengthMismatchError{Addresses: len(addrs), Values: len(velocities), Name: "velocities"}
	}
	seen := make(map[comm.Address]bool, len(addrs))
	v := make(Vector, len(addrs))
	for n, addr := range addrs {
		if seen[addr] {
			return nil, &DuplicateAddressError{Address: addr}
		}
		seen[addr] = true
		v[n] = Target{Address: addr, Position: positions[n], Velocity: velocities[n]}
	}
	return v, nil
}

// Chain drives a group of devices together.
type Chain struct {
	Bus          Actuator
	PollInterval time.Duration
}

// New creates a Chain on the bus.
func New(b Actuator) *Chain {
	return &Chain{Bus: b, PollInterval: DefaultPollInterval}
}

// Move stages position and velocity of every target and then triggers
// them all with a single ACTION broadcast, so the devices start together.
func (c *Chain) Move(v Vector) error {
	for _, t := range v {
		if err := c.Bus.SetPosition(t.Address, t.Position); err != nil {
			return err
		}
		if err := c.Bus.SetVelocity(t.Address, t.Velocity); err != nil {
			return err
		}
	}
	return c.Bus.Trigger()
}

// WaitForCompletion blocks until every device stops moving.
// Devices are polled one after another in the given order.
func (c *Chain) WaitForCompletion(ctx context.Context, addrs []comm.Address) error {
	interval := c.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	for _, addr := range addrs {
		for {
			moving, err := c.Bus.IsMoving(addr)
			if err != nil {
				return err
			}
			if !moving {
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
		}
	}
	return nil
}

// ReadPositions reads present positions in the order of addrs.
func (c *Chain) ReadPositions(addrs []comm.Address) ([]int, error) {
	positions := make([]int, len(addrs))
	for n, addr := range addrs {
		pos, err := c.Bus.GetPosition(addr)
		if err != nil {
			return nil, err
		}
		positions[n] = pos
	}
	return positions, nil
}

// MoveAndWait moves and waits until all targets stop.
func (c *Chain) MoveAndWait(ctx context.Context, v Vector) error {
	if err := c.Move(v); err != nil {
		return err
	}
	return c.WaitForCompletion(ctx, v.Addresses())
}

// Init holds devices at their present positions with the same velocity.
// It returns the vector applied.
func (c *Chain) Init(ctx context.Context, addrs []comm.Address, velocity int) (Vector, error) {
	velocities := make([]int, len(addrs))
	for n := range velocities {
		velocities[n] = velocity
	}
	return c.InitVelocities(ctx, addrs, velocities)
}

// InitVelocities holds devices at their present positions with per-device
// velocities.
func (c *Chain) InitVelocities(ctx context.Context, addrs []comm.Address, velocities []int) (Vector, error) {
	positions, err := c.ReadPositions(addrs)
	if err != nil {
		return nil, err
	}
	v, err := NewVectorVelocities(positions, addrs, velocities)
	if err != nil {
		return nil, err
	}
	return v, c.MoveAndWait(ctx, v)
}

// GripOptions configures Grip.
type GripOptions struct {
	// Step is added to the goal position on each step, the sign picks
	// the direction.
	Step int
	// Limit is the load at which the grip stops.
	Limit int
	// Velocity is the moving speed of each step.
	Velocity int
}

// DefaultGripOptions returns the default grip settings.
func DefaultGripOptions() GripOptions {
	return GripOptions{Step: 1, Limit: 700, Velocity: 100}
}

// loadMask strips the direction bit from a present load value.
const loadMask = 0x3ff

// Grip steps a single device until its load reaches the limit and returns
// the last commanded position. A position leaving the legal range ends the
// grip with a validation error.
func (c *Chain) Grip(ctx context.Context, addr comm.Address, opts GripOptions) (int, error) {
	if opts.Step == 0 {
		return 0, fmt.Errorf("grip step must not be zero")
	}
	pos, err := c.Bus.GetPosition(addr)
	if err != nil {
		return 0, err
	}
	for {
		load, err := c.Bus.GetTorque(addr)
		if err != nil {
			return pos, err
		}
		glog.V(1).Infof("grip %d: position %d load %d", addr, pos, load)
		if load&loadMask >= opts.Limit {
			return pos, nil
		}
		if err := ctx.Err(); err != nil {
			return pos, err
		}
		next := pos + opts.Step
		v := Vector{{Address: addr, Position: next, Velocity: opts.Velocity}}
		if err := c.MoveAndWait(ctx, v); err != nil {
			return pos, err
		}
		pos = next
	}
}
