package packet

import (
	"errors"
	"fmt"
)

var (
	ErrShortBuffer = errors.New("packet: buffer shorter than header")
	ErrUnknownKind = errors.New("packet: unknown packet kind")
	ErrNilPacket   = errors.New("packet: nil packet")

	errLengthMismatch = errors.New("length field mismatch")
)

// Class tags a structural Error.
type Class uint8

const (
	// ClassInternal marks decode failures: the buffer cannot hold the header.
	ClassInternal Class = iota + 1
	// ClassOverflow marks encode failures: a field value does not fit its width.
	ClassOverflow
)

func (c Class) String() string {
	switch c {
	case ClassInternal:
		return "internal"
	case ClassOverflow:
		return "overflow"
	default:
		return fmt.Sprintf("class(%d)", uint8(c))
	}
}

// Error is a structural failure. Checksum mismatches are never reported as
// errors; see Packet.Corrupted.
type Error struct {
	Kind  Kind
	Class Class
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("packet: %s: %s (%s): %v", e.Kind, e.Msg, e.Class, e.Err)
	}
	return fmt.Sprintf("packet: %s: %s (%s)", e.Kind, e.Msg, e.Class)
}

func (e *Error) Unwrap() error { return e.Err }

func shortBuffer(k Kind, need, have int) error {
	return &Error{
		Kind:  k,
		Class: ClassInternal,
		Msg:   fmt.Sprintf("need %d bits, have %d", need, have),
		Err:   ErrShortBuffer,
	}
}

func decodeFailed(k Kind, err error) error {
	return &Error{Kind: k, Class: ClassInternal, Msg: "decode header", Err: err}
}

func encodeFailed(k Kind, err error) error {
	return &Error{Kind: k, Class: ClassOverflow, Msg: "encode header", Err: err}
}
