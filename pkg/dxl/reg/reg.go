// Package reg defines the AX-12 control table.
package reg

import (
	"errors"
	"fmt"
	"sort"
)

// Access tells whether a register can be written.
type Access int

// Access modes.
const (
	ReadOnly Access = iota
	ReadWrite
)

// Register is an entry of the control table.
type Register struct {
	Name    string
	Address byte
	// Width is 1 or 2 bytes.
	Width  int
	Access Access
	// Min and Max are the inclusive legal range for writes.
	Min int
	Max int
}

// Writable indicates the register accepts writes.
func (r Register) Writable() bool {
	return r.Access == ReadWrite
}

func (r Register) String() string {
	return r.Name
}

var (
	// ErrReadOnly indicates a write to a read-only register.
	ErrReadOnly = errors.New("read-only register")
	// ErrWidth indicates a register accessed with the wrong number of bytes.
	ErrWidth = errors.New("register width mismatch")
)

// ValidationError is returned when a value can't be written to a register.
type ValidationError struct {
	Register Register
	Value    int
	// Err wraps ErrReadOnly or ErrWidth, nil for range errors.
	Err error
}

// Error implements error.
func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Register.Name, e.Err)
	}
	return fmt.Sprintf("%s must be in range [%d, %d], got %d",
		e.Register.Name, e.Register.Min, e.Register.Max, e.Value)
}

// Unwrap returns the cause.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validate checks value can be written to the register.
func (r Register) Validate(value int) error {
	if !r.Writable() {
		return &ValidationError{Register: r, Value: value, Err: ErrReadOnly}
	}
	if value < r.Min || value > r.Max {
		return &ValidationError{Register: r, Value: value}
	}
	return nil
}

// ValidateWidth checks the register is width bytes wide.
func (r Register) ValidateWidth(width int) error {
	if r.Width != width {
		return &ValidationError{Register: r, Err: fmt.Errorf("%w: %d bytes, accessed as %d", ErrWidth, r.Width, width)}
	}
	return nil
}

func ro(name string, addr byte, width int) Register {
	return Register{Name: name, Address: addr, Width: width, Access: ReadOnly}
}

func rw(name string, addr byte, width int, min, max int) Register {
	return Register{Name: name, Address: addr, Width: width, Access: ReadWrite, Min: min, Max: max}
}

// Limits of goal registers.
const (
	PositionMin = 0
	PositionMax = 1023
	SpeedMin    = 0
	SpeedMax    = 1023
)

// EEPROM area.
var (
	ModelNumber       = ro("model_number", 0x00, 2)
	Version           = ro("version", 0x02, 1)
	ID                = rw("id", 0x03, 1, 0, 253)
	BaudRate          = rw("baud_rate", 0x04, 1, 0, 254)
	ReturnDelay       = rw("return_delay", 0x05, 1, 0, 254)
	CWAngleLimit      = rw("cw_angle_limit", 0x06, 2, PositionMin, PositionMax)
	CCWAngleLimit     = rw("ccw_angle_limit", 0x08, 2, PositionMin, PositionMax)
	TempLimit         = rw("temp_limit", 0x0b, 1, 0, 150)
	MinVoltageLimit   = rw("min_voltage_limit", 0x0c, 1, 50, 250)
	MaxVoltageLimit   = rw("max_voltage_limit", 0x0d, 1, 50, 250)
	MaxTorque         = rw("max_torque", 0x0e, 2, 0, 1023)
	StatusReturnLevel = rw("status_return_level", 0x10, 1, 0, 2)
	AlarmLED          = rw("alarm_led", 0x11, 1, 0, 127)
	AlarmShutdown     = rw("alarm_shutdown", 0x12, 1, 0, 127)
)

// RAM area.
var (
	TorqueEnable        = rw("torque_enable", 0x18, 1, 0, 1)
	LED                 = rw("led", 0x19, 1, 0, 1)
	CWComplianceMargin  = rw("cw_compliance_margin", 0x1a, 1, 0, 255)
	CCWComplianceMargin = rw("ccw_compliance_margin", 0x1b, 1, 0, 255)
	CWComplianceSlope   = rw("cw_compliance_slope", 0x1c, 1, 1, 254)
	CCWComplianceSlope  = rw("ccw_compliance_slope", 0x1d, 1, 1, 254)
	GoalPosition        = rw("goal_position", 0x1e, 2, PositionMin, PositionMax)
	MovingSpeed         = rw("moving_speed", 0x20, 2, SpeedMin, SpeedMax)
	TorqueLimit         = rw("torque_limit", 0x22, 2, 0, 1023)
	PresentPosition     = ro("present_position", 0x24, 2)
	PresentSpeed        = ro("present_speed", 0x26, 2)
	PresentLoad         = ro("present_load", 0x28, 2)
	PresentVoltage      = ro("present_voltage", 0x2a, 1)
	PresentTemperature  = ro("present_temperature", 0x2b, 1)
	Registered          = ro("registered", 0x2c, 1)
	Moving              = ro("moving", 0x2e, 1)
	Lock                = rw("lock", 0x2f, 1, 0, 1)
	Punch               = rw("punch", 0x30, 2, 0x20, 0x3ff)
)

var (
	table = []Register{
		ModelNumber, Version, ID, BaudRate, ReturnDelay,
		CWAngleLimit, CCWAngleLimit, TempLimit, MinVoltageLimit, MaxVoltageLimit,
		MaxTorque, StatusReturnLevel, AlarmLED, AlarmShutdown,
		TorqueEnable, LED, CWComplianceMargin, CCWComplianceMargin,
		CWComplianceSlope, CCWComplianceSlope, GoalPosition, MovingSpeed,
		TorqueLimit, PresentPosition, PresentSpeed, PresentLoad,
		PresentVoltage, PresentTemperature, Registered, Moving, Lock, Punch,
	}
	byName    = make(map[string]Register, len(table))
	byAddress = make(map[byte]Register, len(table))
)

func init() {
	sort.Slice(table, func(i, j int) bool { return table[i].Address < table[j].Address })
	for _, r := range table {
		byName[r.Name] = r
		byAddress[r.Address] = r
	}
}

// Lookup finds a register by name.
func Lookup(name string) (Register, bool) {
	r, ok := byName[name]
	return r, ok
}

// ByAddress finds a register by its first byte address.
func ByAddress(addr byte) (Register, bool) {
	r, ok := byAddress[addr]
	return r, ok
}

// All returns all registers ordered by address.
func All() []Register {
	return append([]Register(nil), table...)
}

// Size is the number of bytes covered by the control table.
func Size() int {
	last := table[len(table)-1]
	return int(last.Address) + last.Width
}
