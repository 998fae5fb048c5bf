package comm

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout indicates a read didn't get all requested bytes in time.
	ErrTimeout = errors.New("timeout")
	// ErrChecksumMismatch indicates the status packet failed checksum verification.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrMalformed indicates a status packet with an impossible length.
	ErrMalformed = errors.New("malformed packet")
	// ErrRequestCorrupted indicates a device replied with only the checksum
	// error bit, so the request got damaged on the way.
	ErrRequestCorrupted = errors.New("device received a corrupted request")
)

// AddressMismatchError is returned when a reply comes from another device.
type AddressMismatchError struct {
	Expect Address
	Actual Address
}

// Error implements error.
func (e *AddressMismatchError) Error() string {
	return fmt.Sprintf("got packet from %d, expected %d", e.Actual, e.Expect)
}

// DeviceFault wraps error bits reported by a device.
// It's never retried.
type DeviceFault struct {
	Address Address
	Bits    ErrorBits
}

// Error implements error.
func (e *DeviceFault) Error() string {
	return fmt.Sprintf("device %d: %s", e.Address, e.Bits)
}

// ProtocolError is returned when all attempts of an exchange failed.
// Err never holds a *DeviceFault: a checksum-only fault is recorded as
// ErrRequestCorrupted, other faults are returned without retrying.
type ProtocolError struct {
	Address  Address
	Attempts int
	// Err is the failure of the last attempt.
	Err error
}

// Error implements error.
func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("unable to read response for device %d after %d attempts", e.Address, e.Attempts)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the last failure.
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsRetryable tells whether err is a transient transport failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var fault *DeviceFault
	if errors.As(err, &fault) {
		return fault.Bits == ErrBitChecksum
	}
	var mismatch *AddressMismatchError
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRequestCorrupted) ||
		errors.Is(err, ErrChecksumMismatch) ||
		errors.Is(err, ErrMalformed) ||
		errors.As(err, &mismatch)
}
