package bus

import (
	"github.com/robotalks/dxl.go/pkg/dxl/comm"
	"github.com/robotalks/dxl.go/pkg/dxl/reg"
)

func boolValue(on bool) int {
	if on {
		return 1
	}
	return 0
}

// SetLED turns the LED on or off.
func (b *Bus) SetLED(addr comm.Address, on bool) error {
	return b.WriteByte(addr, reg.LED, boolValue(on), false)
}

// SetTorqueEnable enables or disables the motor torque.
func (b *Bus) SetTorqueEnable(addr comm.Address, enabled bool) error {
	return b.WriteByte(addr, reg.TorqueEnable, boolValue(enabled), false)
}

// GetPosition reads the present position.
func (b *Bus) GetPosition(addr comm.Address) (int, error) {
	return b.Read(addr, reg.PresentPosition)
}

// SetPosition stages the goal position, applied on Trigger.
func (b *Bus) SetPosition(addr comm.Address, position int) error {
	return b.WriteWord(addr, reg.GoalPosition, position, true)
}

// SetVelocity stages the moving speed, applied on Trigger.
func (b *Bus) SetVelocity(addr comm.Address, velocity int) error {
	return b.WriteWord(addr, reg.MovingSpeed, velocity, true)
}

// IsMoving reads the moving flag.
func (b *Bus) IsMoving(addr comm.Address) (bool, error) {
	v, err := b.ReadByte(addr, reg.Moving)
	return v != 0, err
}

// GetTorque reads the present load.
func (b *Bus) GetTorque(addr comm.Address) (int, error) {
	return b.Read(addr, reg.PresentLoad)
}

// GetVoltage reads the present voltage in 0.1V.
func (b *Bus) GetVoltage(addr comm.Address) (int, error) {
	return b.Read(addr, reg.PresentVoltage)
}

// GetTemperature reads the present temperature in Celsius.
func (b *Bus) GetTemperature(addr comm.Address) (int, error) {
	return b.Read(addr, reg.PresentTemperature)
}

// InitToCurrentPosition writes the present position back as the goal so
// enabling torque won't jump to a stale goal.
func (b *Bus) InitToCurrentPosition(addr comm.Address) error {
	pos, err := b.GetPosition(addr)
	if err != nil {
		return err
	}
	if err := b.WriteWord(addr, reg.GoalPosition, pos, false); err != nil {
		return err
	}
	return b.Trigger()
}
