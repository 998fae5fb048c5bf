package comm

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestChecksum(t *testing.T) {
	require.Equal(t, byte(249), Checksum(3, 2, 1))
	require.Equal(t, byte(0xff), Checksum())
	require.Equal(t, byte(0xfa), Checksum(0xfe, 2, 5))
}

func TestPacket(t *testing.T) {
	testCases := []struct {
		name   string
		packet *Packet
		expect []byte
	}{
		{"ping", NewPingPacket(1), []byte{0xff, 0xff, 1, 2, 1, 0xfb}},
		{"read position", NewReadPacket(1, 0x24, 2), []byte{0xff, 0xff, 1, 4, 2, 0x24, 2, 0xd2}},
		{"write goal", NewWritePacket(1, 0x1e, PutWord(nil, 512), false), []byte{0xff, 0xff, 1, 5, 3, 0x1e, 0, 2, 0xd6}},
		{"reg write goal", NewWritePacket(1, 0x1e, PutWord(nil, 512), true), []byte{0xff, 0xff, 1, 5, 4, 0x1e, 0, 2, 0xd5}},
		{"action", NewActionPacket(), []byte{0xff, 0xff, 0xfe, 2, 5, 0xfa}},
		{"reset", NewResetPacket(0), []byte{0xff, 0xff, 0, 2, 6, 0xf7}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expect, tc.packet.Bytes())
			var buf bytes.Buffer
			n, err := tc.packet.WriteTo(&buf)
			require.NoError(t, err)
			require.Equal(t, tc.expect, buf.Bytes())
			require.Equal(t, int64(len(tc.expect)), n)
		})
	}
}

func TestWord(t *testing.T) {
	require.Equal(t, []byte{0xff, 0x03}, PutWord(nil, 1023))
	require.Equal(t, uint16(1023), Word([]byte{0xff, 0x03}))
	require.Equal(t, uint16(0x1234), Word(PutWord(nil, 0x1234)))
}

func TestPacketRoundTrip(t *testing.T) {
	instructions := []Instruction{Ping, ReadData, WriteData, RegWrite, Action, Reset}
	for addr := 0; addr <= int(MaxAddress); addr += 11 {
		for _, instr := range instructions {
			for l := 0; l <= 16; l++ {
				params := make([]byte, l)
				for i := range params {
					params[i] = byte(addr*31 + i*7 + l)
				}
				pkt := &Packet{Address: Address(addr), Instruction: instr, Params: params}
				st, err := ReadStatus(bytes.NewReader(pkt.Bytes()), time.Millisecond)
				require.NoError(t, err)
				require.True(t, st.ChecksumOK)
				require.Equal(t, pkt.Address, st.Address)
				require.Equal(t, byte(instr), byte(st.Error))
				require.Equal(t, params, st.Data)
			}
		}
	}
}

func TestInstructionString(t *testing.T) {
	require.Equal(t, "REG_WRITE", RegWrite.String())
	require.Equal(t, "INSTR_7f", Instruction(0x7f).String())
}

func TestAddress(t *testing.T) {
	require.True(t, Address(0).IsValid())
	require.True(t, MaxAddress.IsValid())
	require.False(t, Broadcast.IsValid())
	require.False(t, AnyAddress.IsValid())
}
