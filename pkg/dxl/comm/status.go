package comm

import (
	"strings"
)

// ErrorBits is the error byte of a status packet.
// Any combination of bits may be set.
type ErrorBits byte

// Error bits.
const (
	ErrBitInputVoltage ErrorBits = 0x01
	ErrBitAngleLimit   ErrorBits = 0x02
	ErrBitOverheating  ErrorBits = 0x04
	ErrBitRange        ErrorBits = 0x08
	ErrBitChecksum     ErrorBits = 0x10
	ErrBitOverload     ErrorBits = 0x20
	ErrBitInstruction  ErrorBits = 0x40
)

var errorBitNames = []struct {
	bit  ErrorBits
	name string
}{
	{ErrBitInputVoltage, "input voltage error"},
	{ErrBitAngleLimit, "angle limit error"},
	{ErrBitOverheating, "motor overheating"},
	{ErrBitRange, "range error"},
	{ErrBitChecksum, "checksum mismatch"},
	{ErrBitOverload, "motor overloaded"},
	{ErrBitInstruction, "instruction error"},
}

// Has checks if all bits in mask are set.
func (b ErrorBits) Has(mask ErrorBits) bool {
	return b&mask == mask
}

// String renders the set bits as a sentence,
// e.g. "Motor overheating and motor overloaded".
func (b ErrorBits) String() string {
	var names []string
	for _, n := range errorBitNames {
		if b&n.bit != 0 {
			names = append(names, n.name)
		}
	}
	var msg string
	switch len(names) {
	case 0:
		if b == 0 {
			return "No error"
		}
		return "Unknown error"
	case 1:
		msg = names[0]
	default:
		msg = strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

// Status is a decoded status packet.
type Status struct {
	Address    Address
	Error      ErrorBits
	Data       []byte
	ChecksumOK bool
}
