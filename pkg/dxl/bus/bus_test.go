package bus

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/dxl.go/pkg/dxl/comm"
	"github.com/robotalks/dxl.go/pkg/dxl/dxltest"
	"github.com/robotalks/dxl.go/pkg/dxl/reg"
)

func newTestBus(addrs ...comm.Address) (*Bus, *dxltest.Stream) {
	var devices []*dxltest.Device
	for _, addr := range addrs {
		devices = append(devices, dxltest.NewDevice(addr))
	}
	s := dxltest.NewStream(devices...)
	return New(s, Config{Timeout: time.Millisecond, Attempts: 3}), s
}

func TestNewDefaults(t *testing.T) {
	s := dxltest.NewStream()
	b := New(s, Config{})
	require.Equal(t, comm.DefaultAttempts, b.Attempts())
	b.Ping(1)
	require.Equal(t, comm.DefaultTimeout, s.ReadTimeout)
}

func TestPing(t *testing.T) {
	b, s := newTestBus(1, 5)
	require.True(t, b.Ping(1))
	require.True(t, b.Ping(5))
	require.False(t, b.Ping(2))
	// an absent device uses all attempts.
	require.Equal(t, 1+1+3, s.Count(comm.Ping))

	s.Devices[5].Fault = comm.ErrBitOverheating
	s.ClearRequests()
	require.False(t, b.Ping(5))
	require.Equal(t, 1, s.Count(comm.Ping))
}

func TestPingRecoversFromLostReply(t *testing.T) {
	b, s := newTestBus(1)
	s.Drop = 2
	require.True(t, b.Ping(1))
	require.Equal(t, 3, s.Count(comm.Ping))

	s.ClearRequests()
	s.Corrupt = 1
	require.True(t, b.Ping(1))
	require.Equal(t, 2, s.Count(comm.Ping))
}

func TestNonDeviceAddress(t *testing.T) {
	b, s := newTestBus()
	require.False(t, b.Ping(comm.Broadcast))
	require.False(t, b.Ping(comm.AnyAddress))

	_, err := b.ReadByte(comm.Broadcast, reg.Moving)
	require.ErrorIs(t, err, ErrNoReply)
	_, err = b.GetPosition(comm.Broadcast)
	require.ErrorIs(t, err, ErrNoReply)
	_, err = b.ReadData(comm.AnyAddress, 0, 1)
	require.ErrorIs(t, err, ErrNoReply)
	require.Empty(t, s.Requests)

	// writes to broadcast are fine.
	b, s = newTestBus(1, 2)
	require.NoError(t, b.SetLED(comm.Broadcast, true))
	require.Equal(t, 1, s.Devices[1].Get(reg.LED))
	require.Equal(t, 1, s.Devices[2].Get(reg.LED))
}

func TestWidthMismatch(t *testing.T) {
	b, s := newTestBus(1)
	d := s.Devices[1]
	d.Set(reg.GoalPosition, 100)
	d.Set(reg.CWComplianceMargin, 7)

	testCases := []struct {
		name string
		op   func() error
	}{
		{"write byte to word", func() error { return b.WriteByte(1, reg.GoalPosition, 512, false) }},
		{"write word to byte", func() error { return b.WriteWord(1, reg.LED, 1, false) }},
		{"read byte of word", func() error { _, err := b.ReadByte(1, reg.PresentPosition); return err }},
		{"read word of byte", func() error { _, err := b.ReadWord(1, reg.Moving); return err }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.op()
			require.ErrorIs(t, err, reg.ErrWidth)
			var verr *reg.ValidationError
			require.True(t, errors.As(err, &verr))
		})
	}
	require.Empty(t, s.Requests)
	require.Equal(t, 100, d.Get(reg.GoalPosition))
	require.Equal(t, 7, d.Get(reg.CWComplianceMargin))
}

func TestScan(t *testing.T) {
	b, s := newTestBus(3, 1, 9)
	found := b.Scan(0, 10)
	if diff := cmp.Diff([]comm.Address{1, 3, 9}, found); diff != "" {
		t.Errorf("scan mismatch (-want +got):\n%s", diff)
	}
	// one probe per address.
	require.Equal(t, 11, s.Count(comm.Ping))

	s.ClearRequests()
	require.Empty(t, b.Scan(10, 5))
	require.Empty(t, s.Requests)

	s.ClearRequests()
	require.Equal(t, []comm.Address{9}, b.Scan(9, 1000))
	require.Equal(t, int(comm.MaxAddress)-9+1, s.Count(comm.Ping))
}

func TestReadWrite(t *testing.T) {
	b, s := newTestBus(1)
	d := s.Devices[1]
	d.Set(reg.PresentPosition, 0x1ff)

	v, err := b.ReadWord(1, reg.PresentPosition)
	require.NoError(t, err)
	require.Equal(t, uint16(0x1ff), v)

	bv, err := b.ReadByte(1, reg.PresentTemperature)
	require.NoError(t, err)
	require.Equal(t, byte(32), bv)

	n, err := b.Read(1, reg.ModelNumber)
	require.NoError(t, err)
	require.Equal(t, 12, n)

	require.NoError(t, b.Write(1, reg.TorqueLimit, 600, false))
	require.Equal(t, 600, d.Get(reg.TorqueLimit))
	require.NoError(t, b.Write(1, reg.ReturnDelay, 10, false))
	require.Equal(t, 10, d.Get(reg.ReturnDelay))

	last := s.Requests[len(s.Requests)-1]
	require.Equal(t, &comm.Packet{Address: 1, Instruction: comm.WriteData, Params: []byte{0x05, 10}}, last)
}

func TestDeferredWrite(t *testing.T) {
	b, s := newTestBus(1)
	d := s.Devices[1]
	require.NoError(t, b.WriteWord(1, reg.GoalPosition, 300, true))
	require.Equal(t, comm.RegWrite, s.Requests[0].Instruction)
	require.Equal(t, []byte{0x1e, 0x2c, 0x01}, s.Requests[0].Params)
	require.Equal(t, 0, d.Get(reg.GoalPosition))
	require.Equal(t, 1, d.Get(reg.Registered))

	require.NoError(t, b.Trigger())
	require.Equal(t, 300, d.Get(reg.GoalPosition))
	require.Equal(t, 300, d.Get(reg.PresentPosition))
	last := s.Requests[len(s.Requests)-1]
	require.Equal(t, comm.Broadcast, last.Address)
	require.Equal(t, comm.Action, last.Instruction)
}

func TestWriteValidation(t *testing.T) {
	b, s := newTestBus(1)
	for _, v := range []int{-1, reg.PositionMax + 1} {
		err := b.SetPosition(1, v)
		var verr *reg.ValidationError
		require.True(t, errors.As(err, &verr))
		require.Equal(t, v, verr.Value)
	}
	require.Error(t, b.SetVelocity(1, 2048))
	require.ErrorIs(t, b.Write(1, reg.PresentPosition, 1, false), reg.ErrReadOnly)
	require.Empty(t, s.Requests)
	require.Zero(t, s.Resets)
}

func TestReadOutOfRange(t *testing.T) {
	b, s := newTestBus(1)
	s.Devices[1].Regs = s.Devices[1].Regs[:0x2e]
	_, err := b.IsMoving(1)
	var fault *comm.DeviceFault
	require.True(t, errors.As(err, &fault))
	require.Equal(t, comm.ErrBitRange, fault.Bits)

	_, err = b.ReadData(1, 0x00, 0)
	require.NoError(t, err)
}

func TestReadLengthError(t *testing.T) {
	s := &shortStream{Stream: dxltest.NewStream(dxltest.NewDevice(2))}
	b := New(s, Config{Timeout: time.Millisecond, Attempts: 1})
	_, err := b.ReadWord(2, reg.PresentPosition)
	var lerr *LengthError
	require.True(t, errors.As(err, &lerr))
	require.Equal(t, &LengthError{Address: 2, Expect: 2, Actual: 1}, lerr)
}

// shortStream answers every read with a single data byte.
type shortStream struct {
	*dxltest.Stream
	reply []byte
}

func (s *shortStream) Write(p []byte) (int, error) {
	s.reply = (&comm.Packet{Address: comm.Address(p[2]), Params: []byte{7}}).Bytes()
	return len(p), nil
}

func (s *shortStream) Read(p []byte) (int, error) {
	n := copy(p, s.reply)
	s.reply = s.reply[n:]
	return n, nil
}

func TestDeviceFaultSurfaces(t *testing.T) {
	b, s := newTestBus(4)
	s.Devices[4].Fault = comm.ErrBitOverheating | comm.ErrBitOverload
	_, err := b.GetPosition(4)
	require.EqualError(t, err, "device 4: Motor overheating and motor overloaded")
	require.Equal(t, 1, s.Count(comm.ReadData))
}

func TestProtocolError(t *testing.T) {
	b, s := newTestBus()
	_, err := b.GetTorque(8)
	var perr *comm.ProtocolError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, comm.Address(8), perr.Address)
	require.Equal(t, 3, perr.Attempts)
	require.Equal(t, 3, s.Count(comm.ReadData))
}

func TestConvenience(t *testing.T) {
	b, s := newTestBus(2)
	d := s.Devices[2]

	require.NoError(t, b.SetLED(2, true))
	require.Equal(t, 1, d.Get(reg.LED))
	require.NoError(t, b.SetLED(2, false))
	require.Equal(t, 0, d.Get(reg.LED))

	require.NoError(t, b.SetTorqueEnable(2, true))
	require.Equal(t, 1, d.Get(reg.TorqueEnable))

	d.Set(reg.PresentLoad, 432)
	load, err := b.GetTorque(2)
	require.NoError(t, err)
	require.Equal(t, 432, load)

	volt, err := b.GetVoltage(2)
	require.NoError(t, err)
	require.Equal(t, 120, volt)
	temp, err := b.GetTemperature(2)
	require.NoError(t, err)
	require.Equal(t, 32, temp)

	moving, err := b.IsMoving(2)
	require.NoError(t, err)
	require.False(t, moving)
	d.Set(reg.Moving, 1)
	moving, err = b.IsMoving(2)
	require.NoError(t, err)
	require.True(t, moving)

	require.NoError(t, b.SetPosition(2, 700))
	require.NoError(t, b.SetVelocity(2, 100))
	require.Equal(t, 0, d.Get(reg.GoalPosition))
	require.NoError(t, b.Trigger())
	require.Equal(t, 700, d.Get(reg.GoalPosition))
	require.Equal(t, 100, d.Get(reg.MovingSpeed))
	pos, err := b.GetPosition(2)
	require.NoError(t, err)
	require.Equal(t, 700, pos)
}

func TestInitToCurrentPosition(t *testing.T) {
	b, s := newTestBus(3)
	d := s.Devices[3]
	d.Set(reg.PresentPosition, 411)
	d.Set(reg.GoalPosition, 900)
	require.NoError(t, b.InitToCurrentPosition(3))
	require.Equal(t, 411, d.Get(reg.GoalPosition))
	require.Equal(t, []comm.Instruction{comm.ReadData, comm.WriteData, comm.Action}, s.Instructions())
}

func TestReset(t *testing.T) {
	b, s := newTestBus(3)
	d := s.Devices[3]
	d.Set(reg.TorqueLimit, 10)
	require.NoError(t, b.Reset(3))
	require.Equal(t, 1023, d.Get(reg.TorqueLimit))
}
