// Package dxltest provides an in-memory chain of devices for tests.
package dxltest

import (
	"bytes"
	"sync"
	"time"

	"github.com/robotalks/dxl.go/pkg/dxl/comm"
	"github.com/robotalks/dxl.go/pkg/dxl/reg"
)

// Device is a register file answering instruction packets.
type Device struct {
	Address comm.Address
	Regs    []byte
	// Fault is reported in every status packet.
	Fault comm.ErrorBits
	// MovingPolls is how many reads of the moving flag report 1 after
	// a new goal is applied.
	MovingPolls int
	// LoadAt computes the present load when a goal position is reached.
	LoadAt func(position int) int

	staged  [][]byte
	pending int
}

// NewDevice creates an AX-12 device with defaults.
func NewDevice(addr comm.Address) *Device {
	d := &Device{Address: addr}
	d.reset()
	return d
}

func (d *Device) reset() {
	d.Regs = make([]byte, reg.Size())
	d.set(reg.ModelNumber, 12)
	d.set(reg.Version, 24)
	d.set(reg.ID, int(d.Address))
	d.set(reg.BaudRate, 1)
	d.set(reg.ReturnDelay, 250)
	d.set(reg.CCWAngleLimit, reg.PositionMax)
	d.set(reg.TempLimit, 70)
	d.set(reg.MinVoltageLimit, 60)
	d.set(reg.MaxVoltageLimit, 140)
	d.set(reg.MaxTorque, 1023)
	d.set(reg.StatusReturnLevel, 2)
	d.set(reg.TorqueLimit, 1023)
	d.set(reg.PresentVoltage, 120)
	d.set(reg.PresentTemperature, 32)
	d.set(reg.Punch, 0x20)
	d.staged, d.pending = nil, 0
}

func (d *Device) set(r reg.Register, v int) {
	d.Regs[r.Address] = byte(v)
	if r.Width == 2 {
		d.Regs[r.Address+1] = byte(v >> 8)
	}
}

func (d *Device) get(r reg.Register) int {
	if r.Width == 2 {
		return int(comm.Word(d.Regs[r.Address:]))
	}
	return int(d.Regs[r.Address])
}

// Set sets a register value regardless of access.
func (d *Device) Set(r reg.Register, v int) {
	d.set(r, v)
}

// Get gets a register value.
func (d *Device) Get(r reg.Register) int {
	return d.get(r)
}

func (d *Device) write(data []byte) {
	if len(data) == 0 || int(data[0])+len(data)-1 > len(d.Regs) {
		return
	}
	start := data[0]
	copy(d.Regs[start:], data[1:])
	goal := reg.GoalPosition.Address
	if start <= goal+1 && int(start)+len(data)-1 > int(goal) {
		d.startMoving()
	}
}

func (d *Device) startMoving() {
	if d.MovingPolls > 0 {
		d.pending = d.MovingPolls
		d.set(reg.Moving, 1)
		return
	}
	d.arrive()
}

func (d *Device) arrive() {
	pos := d.get(reg.GoalPosition)
	d.set(reg.PresentPosition, pos)
	d.set(reg.Moving, 0)
	if d.LoadAt != nil {
		d.set(reg.PresentLoad, d.LoadAt(pos))
	}
}

func (d *Device) action() {
	for _, data := range d.staged {
		d.write(data)
	}
	d.staged = nil
	d.set(reg.Registered, 0)
}

func (d *Device) read(start, count byte) ([]byte, bool) {
	if int(start)+int(count) > len(d.Regs) {
		return nil, false
	}
	data := append([]byte{}, d.Regs[start:start+count]...)
	moving := reg.Moving.Address
	if start <= moving && start+count > moving && d.pending > 0 {
		if d.pending--; d.pending == 0 {
			d.arrive()
		}
	}
	return data, true
}

// handle returns the status packet replying req, or nil.
func (d *Device) handle(req *comm.Status) []byte {
	var data []byte
	switch comm.Instruction(req.Error) {
	case comm.Ping:
	case comm.ReadData:
		if len(req.Data) != 2 {
			return d.status(comm.ErrBitInstruction, nil)
		}
		var ok bool
		if data, ok = d.read(req.Data[0], req.Data[1]); !ok {
			return d.status(comm.ErrBitRange, nil)
		}
	case comm.WriteData:
		d.write(req.Data)
	case comm.RegWrite:
		d.staged = append(d.staged, append([]byte(nil), req.Data...))
		d.set(reg.Registered, 1)
	case comm.Action:
		d.action()
	case comm.Reset:
		d.reset()
	default:
		return d.status(comm.ErrBitInstruction, nil)
	}
	return d.status(d.Fault, data)
}

func (d *Device) status(bits comm.ErrorBits, data []byte) []byte {
	return (&comm.Packet{Address: d.Address, Instruction: comm.Instruction(bits), Params: data}).Bytes()
}

// Stream implements comm.Stream over a set of Devices.
type Stream struct {
	Devices map[comm.Address]*Device
	// Requests records every well-formed instruction packet written.
	Requests []*comm.Packet
	// Drop discards the next N replies.
	Drop int
	// Corrupt damages the checksum of the next N replies.
	Corrupt int
	// Resets counts input buffer resets.
	Resets int
	// ReadTimeout is the last timeout set.
	ReadTimeout time.Duration
	// Closed is set by Close.
	Closed bool

	rbuf   bytes.Buffer
	parser comm.Parser
	lock   sync.Mutex
}

// NewStream creates a Stream with devices.
func NewStream(devices ...*Device) *Stream {
	s := &Stream{Devices: make(map[comm.Address]*Device)}
	for _, d := range devices {
		s.Devices[d.Address] = d
	}
	return s
}

// Read implements io.Reader. It returns 0 bytes when nothing is pending,
// like a serial port whose read timed out.
func (s *Stream) Read(p []byte) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.rbuf.Len() == 0 {
		return 0, nil
	}
	return s.rbuf.Read(p)
}

// Write implements io.Writer.
func (s *Stream) Write(p []byte) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	for _, b := range p {
		req, err := s.parser.Parse(b)
		if err != nil || req == nil {
			continue
		}
		s.dispatch(req)
	}
	return len(p), nil
}

func (s *Stream) dispatch(req *comm.Status) {
	pkt := &comm.Packet{Address: req.Address, Instruction: comm.Instruction(req.Error), Params: req.Data}
	if !req.ChecksumOK {
		if d := s.Devices[req.Address]; d != nil {
			s.reply(d.status(comm.ErrBitChecksum, nil))
		}
		return
	}
	s.Requests = append(s.Requests, pkt)
	if req.Address == comm.Broadcast {
		for _, d := range s.Devices {
			d.handle(req)
		}
		return
	}
	if d := s.Devices[req.Address]; d != nil {
		s.reply(d.handle(req))
	}
}

func (s *Stream) reply(b []byte) {
	if s.Drop > 0 {
		s.Drop--
		return
	}
	if s.Corrupt > 0 {
		s.Corrupt--
		b[len(b)-1]++
	}
	s.rbuf.Write(b)
}

// SetReadTimeout implements comm.Stream.
func (s *Stream) SetReadTimeout(d time.Duration) error {
	s.lock.Lock()
	s.ReadTimeout = d
	s.lock.Unlock()
	return nil
}

// ResetInputBuffer implements comm.Stream.
func (s *Stream) ResetInputBuffer() error {
	s.lock.Lock()
	s.rbuf.Reset()
	s.Resets++
	s.lock.Unlock()
	return nil
}

// ResetOutputBuffer implements comm.Stream.
func (s *Stream) ResetOutputBuffer() error {
	return nil
}

// Close implements io.Closer.
func (s *Stream) Close() error {
	s.lock.Lock()
	s.Closed = true
	s.lock.Unlock()
	return nil
}

// Instructions lists the instructions written so far.
func (s *Stream) Instructions() []comm.Instruction {
	s.lock.Lock()
	defer s.lock.Unlock()
	instrs := make([]comm.Instruction, len(s.Requests))
	for n, pkt := range s.Requests {
		instrs[n] = pkt.Instruction
	}
	return instrs
}

// Count counts requests with the instruction.
func (s *Stream) Count(instr comm.Instruction) int {
	var n int
	for _, i := range s.Instructions() {
		if i == instr {
			n++
		}
	}
	return n
}

// ClearRequests forgets recorded requests.
func (s *Stream) ClearRequests() {
	s.lock.Lock()
	s.Requests = nil
	s.lock.Unlock()
}
