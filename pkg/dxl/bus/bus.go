// Package bus provides device level operations on a Dynamixel chain.
package bus

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/dxl.go/pkg/dxl/comm"
	"github.com/robotalks/dxl.go/pkg/dxl/reg"
)

// Config defines the settings of a bus session.
type Config struct {
	// Timeout is the deadline of every read on the stream.
	Timeout time.Duration
	// Attempts is the number of tries of each exchange.
	Attempts int
	// Verbose logs failed attempts.
	Verbose bool
}

// DefaultConfig returns the default settings.
func DefaultConfig() Config {
	return Config{
		Timeout:  comm.DefaultTimeout,
		Attempts: comm.DefaultAttempts,
	}
}

// ErrNoReply is returned when reading from an address no device answers,
// like the broadcast address.
var ErrNoReply = errors.New("address never replies")

// LengthError is returned when a read replies an unexpected number of bytes.
type LengthError struct {
	Address comm.Address
	Expect  int
	Actual  int
}

// Error implements error.
func (e *LengthError) Error() string {
	return fmt.Sprintf("device %d: read length mismatch (expected %d, got %d)", e.Address, e.Expect, e.Actual)
}

// Bus is a session on a Dynamixel chain.
// A Bus serializes its exchanges, but callers should still keep
// multi-step operations (like a synchronized move) on one goroutine.
type Bus struct {
	transport *comm.Transport
	attempts  int
}

// New creates a Bus on the stream.
func New(s comm.Stream, conf Config) *Bus {
	def := DefaultConfig()
	if conf.Timeout <= 0 {
		conf.Timeout = def.Timeout
	}
	if conf.Attempts <= 0 {
		conf.Attempts = def.Attempts
	}
	t := comm.NewTransport(s)
	t.Timeout, t.Verbose = conf.Timeout, conf.Verbose
	return &Bus{transport: t, attempts: conf.Attempts}
}

// Attempts returns the configured attempts per exchange.
func (b *Bus) Attempts() int {
	return b.attempts
}

func (b *Bus) exchange(pkt *comm.Packet) (*comm.Status, error) {
	if glog.V(2) {
		glog.Infof("%s -> %d %v", pkt.Instruction, pkt.Address, pkt.Params)
	}
	return b.transport.Exchange(pkt, b.attempts)
}

// Ping checks if a device answers.
// Broadcast never answers, so pinging it is always false.
func (b *Bus) Ping(addr comm.Address) bool {
	if !addr.IsValid() {
		return false
	}
	_, err := b.exchange(comm.NewPingPacket(addr))
	return err == nil
}

// Scan pings addresses in [begin, end] with a single attempt each and
// returns responding addresses in ascending order.
func (b *Bus) Scan(begin, end int) []comm.Address {
	if begin < 0 {
		begin = 0
	}
	if end > int(comm.MaxAddress) {
		end = int(comm.MaxAddress)
	}
	var found []comm.Address
	for addr := begin; addr <= end; addr++ {
		if _, err := b.transport.Exchange(comm.NewPingPacket(comm.Address(addr)), 1); err == nil {
			found = append(found, comm.Address(addr))
		}
	}
	return found
}

// ReadData reads count bytes starting at register address regAddr.
func (b *Bus) ReadData(addr comm.Address, regAddr byte, count int) ([]byte, error) {
	if !addr.IsValid() {
		return nil, fmt.Errorf("read from %d: %w", addr, ErrNoReply)
	}
	st, err := b.exchange(comm.NewReadPacket(addr, regAddr, byte(count)))
	if err != nil {
		return nil, err
	}
	if len(st.Data) != count {
		return nil, &LengthError{Address: addr, Expect: count, Actual: len(st.Data)}
	}
	return st.Data, nil
}

// ReadByte reads a 1-byte register.
func (b *Bus) ReadByte(addr comm.Address, r reg.Register) (byte, error) {
	if err := r.ValidateWidth(1); err != nil {
		return 0, err
	}
	data, err := b.ReadData(addr, r.Address, 1)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

// ReadWord reads a 2-byte register.
func (b *Bus) ReadWord(addr comm.Address, r reg.Register) (uint16, error) {
	if err := r.ValidateWidth(2); err != nil {
		return 0, err
	}
	data, err := b.ReadData(addr, r.Address, 2)
	if err != nil {
		return 0, err
	}
	return comm.Word(data), nil
}

// Read reads a register according to its width.
func (b *Bus) Read(addr comm.Address, r reg.Register) (int, error) {
	if r.Width == 2 {
		v, err := b.ReadWord(addr, r)
		return int(v), err
	}
	v, err := b.ReadByte(addr, r)
	return int(v), err
}

// WriteByte writes a 1-byte register.
// When deferred, the value is staged until Trigger.
func (b *Bus) WriteByte(addr comm.Address, r reg.Register, value int, deferred bool) error {
	if err := r.ValidateWidth(1); err != nil {
		return err
	}
	if err := r.Validate(value); err != nil {
		return err
	}
	_, err := b.exchange(comm.NewWritePacket(addr, r.Address, []byte{byte(value)}, deferred))
	return err
}

// WriteWord writes a 2-byte register.
// When deferred, the value is staged until Trigger.
func (b *Bus) WriteWord(addr comm.Address, r reg.Register, value int, deferred bool) error {
	if err := r.ValidateWidth(2); err != nil {
		return err
	}
	if err := r.Validate(value); err != nil {
		return err
	}
	_, err := b.exchange(comm.NewWritePacket(addr, r.Address, comm.PutWord(nil, uint16(value)), deferred))
	return err
}

// Write writes a register according to its width.
func (b *Bus) Write(addr comm.Address, r reg.Register, value int, deferred bool) error {
	if r.Width == 2 {
		return b.WriteWord(addr, r, value, deferred)
	}
	return b.WriteByte(addr, r, value, deferred)
}

// Trigger broadcasts ACTION to apply all staged writes at once.
func (b *Bus) Trigger() error {
	_, err := b.exchange(comm.NewActionPacket())
	return err
}

// Reset restores the factory settings of a device.
func (b *Bus) Reset(addr comm.Address) error {
	_, err := b.exchange(comm.NewResetPacket(addr))
	return err
}
