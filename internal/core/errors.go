// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors following ADR-021 error handling pattern.
var (
	// Packet decoding errors
	ErrPacketTooShort   = errors.New("otus: packet too short")
	ErrUnsupportedLink  = errors.New("otus: unsupported link type")
	ErrUnsupportedProto = errors.New("otus: unsupported protocol")

	// IP reassembly errors
	ErrReassemblyTimeout = errors.New("otus: fragment reassembly timeout")
	ErrReassemblyLimit   = errors.New("otus: fragment reassembly limit exceeded")

	// Source errors
	ErrSourceNotStarted = errors.New("otus: source not started")

	// Configuration errors
	ErrConfigInvalid = errors.New("otus: invalid configuration")
)
