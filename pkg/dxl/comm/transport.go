package comm

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"
)

// Stream is the byte stream of a half-duplex bus.
// Read returns 0 bytes with nil error when the read timeout elapses.
// go.bug.st/serial.Port satisfies this interface.
type Stream interface {
	io.ReadWriter
	SetReadTimeout(time.Duration) error
	ResetInputBuffer() error
	ResetOutputBuffer() error
}

// Default transport settings.
const (
	DefaultTimeout  = 100 * time.Millisecond
	DefaultAttempts = 10
)

// Transport executes request/response exchanges over a Stream.
type Transport struct {
	Stream  Stream
	Timeout time.Duration
	Verbose bool

	lock        sync.Mutex
	readTimeout time.Duration
}

// NewTransport creates a Transport.
func NewTransport(s Stream) *Transport {
	return &Transport{Stream: s, Timeout: DefaultTimeout}
}

// Exchange sends pkt and waits for the status from pkt.Address.
func (t *Transport) Exchange(pkt *Packet, attempts int) (*Status, error) {
	return t.Execute(pkt.Bytes(), pkt.Address, attempts)
}

// Execute writes req and waits for a valid status packet from expect,
// retrying transient failures up to attempts times.
// If expect is Broadcast, no reply is read and nil status is returned.
// If expect is AnyAddress, a reply from any device is accepted.
// A DeviceFault is returned immediately unless only the checksum bit is
// set, which means the device received a corrupted request.
func (t *Transport) Execute(req []byte, expect Address, attempts int) (*Status, error) {
	if attempts < 1 {
		attempts = 1
	}
	t.lock.Lock()
	defer t.lock.Unlock()

	var lastErr error
	for i := 1; i <= attempts; i++ {
		st, err := t.attempt(req, expect)
		if err == nil {
			if glog.V(2) {
				glog.Infof("exchange %d: ok on attempt %d", expect, i)
			}
			return st, nil
		}
		if fault, ok := err.(*DeviceFault); ok {
			if fault.Bits != ErrBitChecksum {
				return nil, err
			}
			err = fmt.Errorf("device %d: %w", fault.Address, ErrRequestCorrupted)
		}
		lastErr = err
		if t.Verbose {
			glog.Warningf("Got error when waiting for response from %d on attempt %d: %v", expect, i, err)
		}
	}
	return nil, &ProtocolError{Address: expect, Attempts: attempts, Err: lastErr}
}

func (t *Transport) attempt(req []byte, expect Address) (*Status, error) {
	if err := t.flush(); err != nil {
		return nil, err
	}
	if _, err := t.Stream.Write(req); err != nil {
		return nil, err
	}
	if expect == Broadcast {
		return nil, nil
	}
	st, err := ReadStatus(t.Stream, t.timeout())
	if err != nil {
		return nil, err
	}
	if expect != AnyAddress && st.Address != expect {
		return nil, &AddressMismatchError{Expect: expect, Actual: st.Address}
	}
	if !st.ChecksumOK {
		return nil, ErrChecksumMismatch
	}
	if st.Error != 0 {
		return nil, &DeviceFault{Address: st.Address, Bits: st.Error}
	}
	return st, nil
}

func (t *Transport) flush() error {
	if err := t.Stream.ResetInputBuffer(); err != nil {
		return fmt.Errorf("reset input buffer: %w", err)
	}
	if err := t.Stream.ResetOutputBuffer(); err != nil {
		return fmt.Errorf("reset output buffer: %w", err)
	}
	if timeout := t.timeout(); timeout != t.readTimeout {
		if err := t.Stream.SetReadTimeout(timeout); err != nil {
			return fmt.Errorf("set read timeout: %w", err)
		}
		t.readTimeout = timeout
	}
	return nil
}

func (t *Transport) timeout() time.Duration {
	if t.Timeout <= 0 {
		return DefaultTimeout
	}
	return t.Timeout
}
