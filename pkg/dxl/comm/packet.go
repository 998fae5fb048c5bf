package comm

import (
	"fmt"
	"io"
)

// Address identifies a device on the chain.
type Address byte

// Reserved addresses.
const (
	// MaxAddress is the largest assignable device address.
	MaxAddress Address = 253
	// Broadcast is received by all devices and never replied.
	Broadcast Address = 254
	// AnyAddress is never assigned to a device (it's the header byte),
	// when used as the expected address, a reply from any device is accepted.
	AnyAddress Address = 0xff
)

// IsValid checks if it's an assignable device address.
func (a Address) IsValid() bool {
	return a <= MaxAddress
}

// Instruction is the instruction code of a request.
type Instruction byte

// Instructions.
const (
	Ping      Instruction = 0x01
	ReadData  Instruction = 0x02
	WriteData Instruction = 0x03
	RegWrite  Instruction = 0x04
	Action    Instruction = 0x05
	Reset     Instruction = 0x06
	SyncWrite Instruction = 0x83
)

var instructionNames = map[Instruction]string{
	Ping:      "PING",
	ReadData:  "READ_DATA",
	WriteData: "WRITE_DATA",
	RegWrite:  "REG_WRITE",
	Action:    "ACTION",
	Reset:     "RESET",
	SyncWrite: "SYNC_WRITE",
}

func (i Instruction) String() string {
	if name, ok := instructionNames[i]; ok {
		return name
	}
	return fmt.Sprintf("INSTR_%02x", byte(i))
}

const header = 0xff

// Packet is an instruction packet sent to devices.
type Packet struct {
	Address     Address
	Instruction Instruction
	Params      []byte
}

// Checksum calculates the checksum of bytes from address to the last param.
func Checksum(b ...byte) byte {
	var sum byte
	for _, v := range b {
		sum += v
	}
	return ^sum
}

// Bytes returns encoded bytes for sending.
func (p *Packet) Bytes() []byte {
	b := make([]byte, len(p.Params)+6)
	b[0], b[1] = header, header
	b[2], b[3], b[4] = byte(p.Address), byte(len(p.Params)+2), byte(p.Instruction)
	copy(b[5:], p.Params)
	b[len(b)-1] = Checksum(b[2 : len(b)-1]...)
	return b
}

// WriteTo writes encoded bytes.
func (p *Packet) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(p.Bytes())
	return int64(n), err
}

// PutWord appends a 16-bit value in wire order (low byte first).
func PutWord(b []byte, v uint16) []byte {
	return append(b, byte(v), byte(v>>8))
}

// Word decodes a 16-bit value in wire order.
func Word(b []byte) uint16 {
	return uint16(b[1])<<8 | uint16(b[0])
}

// NewPingPacket creates a PING packet.
func NewPingPacket(addr Address) *Packet {
	return &Packet{Address: addr, Instruction: Ping}
}

// NewReadPacket creates a READ_DATA packet for count bytes starting at reg.
func NewReadPacket(addr Address, reg byte, count byte) *Packet {
	return &Packet{Address: addr, Instruction: ReadData, Params: []byte{reg, count}}
}

// NewWritePacket creates a WRITE_DATA packet, or REG_WRITE if deferred.
func NewWritePacket(addr Address, reg byte, data []byte, deferred bool) *Packet {
	pkt := &Packet{Address: addr, Instruction: WriteData}
	if deferred {
		pkt.Instruction = RegWrite
	}
	pkt.Params = append([]byte{reg}, data...)
	return pkt
}

// NewActionPacket creates the broadcast ACTION packet.
func NewActionPacket() *Packet {
	return &Packet{Address: Broadcast, Instruction: Action}
}

// NewResetPacket creates a RESET packet.
func NewResetPacket(addr Address) *Packet {
	return &Packet{Address: addr, Instruction: Reset}
}
