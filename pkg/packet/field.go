package packet

import (
	"fmt"

	"firestige.xyz/otus-codec/pkg/bitfield"
)

// FieldDescriptor places a named header field. Offsets are relative to the
// first bit of the header.
type FieldDescriptor struct {
	Name      string
	BitOffset int
	BitWidth  int
}

func copyFields(fs []FieldDescriptor) []FieldDescriptor {
	return append([]FieldDescriptor(nil), fs...)
}

// fieldWriter encodes fields into a header buffer. The first failure sticks.
type fieldWriter struct {
	buf []byte
	err error
}

func (w *fieldWriter) put(f FieldDescriptor, v uint64) {
	if w.err != nil {
		return
	}
	if err := bitfield.Write(w.buf, f.BitOffset, f.BitWidth, v); err != nil {
		w.err = fmt.Errorf("%s: %w", f.Name, err)
	}
}

func (w *fieldWriter) putBytes(f FieldDescriptor, b []byte) {
	if w.err != nil {
		return
	}
	if err := bitfield.WriteBytes(w.buf, f.BitOffset, f.BitWidth, b); err != nil {
		w.err = fmt.Errorf("%s: %w", f.Name, err)
	}
}

// fieldReader decodes fields of a header starting at base. The first
// failure sticks.
type fieldReader struct {
	buf  []byte
	base int
	err  error
}

func (r *fieldReader) get(f FieldDescriptor) uint64 {
	if r.err != nil {
		return 0
	}
	v, err := bitfield.Read(r.buf, r.base+f.BitOffset, f.BitWidth)
	if err != nil {
		r.err = fmt.Errorf("%s: %w", f.Name, err)
	}
	return v
}

func (r *fieldReader) bytes(f FieldDescriptor) []byte {
	if r.err != nil {
		return nil
	}
	b, err := bitfield.ReadBytes(r.buf, r.base+f.BitOffset, f.BitWidth)
	if err != nil {
		r.err = fmt.Errorf("%s: %w", f.Name, err)
	}
	return b
}

func readBytes(data []byte, bitOffset, bitWidth int) ([]byte, error) {
	return bitfield.ReadBytes(data, bitOffset, bitWidth)
}
