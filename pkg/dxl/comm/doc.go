// Package comm provides Dynamixel protocol 1.0 support.
package comm

// Protocol 1.0 is communicated between a host and a chain of actuators
// sharing a single half-duplex serial line. Every frame looks like
//
//	FF FF <addr> <len> <instr|err> <params...> <checksum>
//
// where len counts the params plus the instruction/error byte and the
// checksum, and the checksum is the one's-complement of the byte sum from
// addr through the last param.
//
// The host writes an instruction packet and the addressed device replies
// with a status packet. The bus is noisy and both directions share the same
// wire, so this package flushes stale bytes before every request,
// resynchronizes on the FF FF header and retries a bounded number of times.
// Errors reported by the device itself (overheating, overload, ...) are not
// retried.
//
// Producer: host
// Consumer: actuators on the chain
