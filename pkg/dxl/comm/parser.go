package comm

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// Parser parses bytes of status packets.
type Parser struct {
	state   parseState
	status  *Status
	length  byte
	sum     byte
	recvLen int
	skipped int
}

type parseState int

const (
	stateHeader   parseState = iota // waiting for the first 0xff
	stateHeader2                    // waiting for the second 0xff
	stateAddress                    // waiting for address, extra 0xff skipped
	stateLength                     // waiting for length
	stateError                      // waiting for error (instruction) byte
	stateData                       // waiting for params
	stateChecksum                   // waiting for checksum
)

// maxSkipped bounds the garbage consumed while looking for a header.
const maxSkipped = 512

// Synced indicates the header has been seen and a packet is being received.
func (p *Parser) Synced() bool {
	return p.state >= stateAddress
}

// Skipped returns the number of bytes discarded before the current header.
func (p *Parser) Skipped() int {
	return p.skipped
}

// Pending returns how many bytes the parser needs before it can make
// progress beyond the current field.
func (p *Parser) Pending() int {
	switch p.state {
	case stateError:
		return len(p.status.Data) + 2
	case stateData:
		return len(p.status.Data) - p.recvLen + 1
	default:
		return 1
	}
}

// Reset resets the internal state of parser.
func (p *Parser) Reset() {
	*p = Parser{}
}

// Parse consumes one byte.
// It returns the status once the checksum byte is consumed, or ErrMalformed
// when the length byte is impossible. In both cases the parser is ready
// for the next packet.
func (p *Parser) Parse(b byte) (*Status, error) {
	switch p.state {
	case stateHeader:
		if b == header {
			p.state = stateHeader2
		} else {
			p.skipped++
		}
	case stateHeader2:
		if b == header {
			p.state = stateAddress
		} else {
			p.skipped += 2
			p.state = stateHeader
		}
	case stateAddress:
		if b == header {
			p.skipped++
			return nil, nil
		}
		p.status = &Status{Address: Address(b)}
		p.sum = b
		p.state = stateLength
	case stateLength:
		if b < 2 {
			p.resync()
			return nil, fmt.Errorf("%w: length %d", ErrMalformed, b)
		}
		p.length, p.sum = b, p.sum+b
		p.status.Data = make([]byte, b-2)
		p.state = stateError
	case stateError:
		p.status.Error = ErrorBits(b)
		p.sum += b
		p.recvLen = 0
		if len(p.status.Data) == 0 {
			p.state = stateChecksum
		} else {
			p.state = stateData
		}
	case stateData:
		p.status.Data[p.recvLen] = b
		p.sum += b
		p.recvLen++
		if p.recvLen >= len(p.status.Data) {
			p.state = stateChecksum
		}
	case stateChecksum:
		p.status.ChecksumOK = ^p.sum == b
		return p.packetReady(), nil
	}
	return nil, nil
}

func (p *Parser) resync() {
	p.state, p.status = stateHeader, nil
}

func (p *Parser) packetReady() (st *Status) {
	st, p.status = p.status, nil
	p.state, p.skipped = stateHeader, 0
	return
}

// ReadStatus reads one status packet from r.
// Bytes before the FF FF header are discarded. Every read must return the
// requested count within timeout, otherwise ErrTimeout is returned.
// A bad checksum is reported through Status.ChecksumOK.
func ReadStatus(r io.Reader, timeout time.Duration) (*Status, error) {
	var p Parser
	buf := make([]byte, 0, 256)
	for {
		buf = buf[:p.Pending()]
		if err := readFull(r, buf, timeout); err != nil {
			return nil, err
		}
		for _, b := range buf {
			st, err := p.Parse(b)
			if err != nil || st != nil {
				return st, err
			}
		}
		if p.Skipped() > maxSkipped {
			return nil, fmt.Errorf("%w: no header in %d bytes", ErrMalformed, p.Skipped())
		}
	}
}

func readFull(r io.Reader, buf []byte, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for n := 0; n < len(buf); {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			if os.IsTimeout(err) || errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: got %d of %d bytes", ErrTimeout, n, len(buf))
			}
			return err
		}
		if n < len(buf) && (m == 0 || !time.Now().Before(deadline)) {
			return fmt.Errorf("%w: got %d of %d bytes", ErrTimeout, n, len(buf))
		}
	}
	return nil
}
