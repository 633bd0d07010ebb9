package filter

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/bpf"

	"firestige.xyz/otus-codec/internal/core"
)

// ParseProgram reads a classic BPF program in the decimal format printed by
// `tcpdump -ddd`: an instruction count followed by one "code jt jf k"
// quadruple per instruction. Commas are treated as whitespace so a program
// can be given on one line.
func ParseProgram(text string) ([]bpf.RawInstruction, error) {
	fields := strings.Fields(strings.ReplaceAll(text, ",", " "))
	if len(fields) == 0 {
		return nil, fmt.Errorf("filter: empty BPF program")
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("filter: invalid instruction count %q", fields[0])
	}
	if len(fields)-1 != 4*n {
		return nil, fmt.Errorf("filter: expected %d instructions, got %d values", n, len(fields)-1)
	}

	parse := func(s string, bits int) (uint64, error) {
		v, err := strconv.ParseUint(s, 0, bits)
		if err != nil {
			return 0, fmt.Errorf("filter: invalid BPF value %q: %w", s, err)
		}
		return v, nil
	}

	prog := make([]bpf.RawInstruction, n)
	for i := range prog {
		q := fields[1+4*i : 5+4*i]
		op, err := parse(q[0], 16)
		if err != nil {
			return nil, err
		}
		jt, err := parse(q[1], 8)
		if err != nil {
			return nil, err
		}
		jf, err := parse(q[2], 8)
		if err != nil {
			return nil, err
		}
		k, err := parse(q[3], 32)
		if err != nil {
			return nil, err
		}
		prog[i] = bpf.RawInstruction{Op: uint16(op), Jt: uint8(jt), Jf: uint8(jf), K: uint32(k)}
	}
	return prog, nil
}

// BPF runs a classic BPF program over each frame in the pure Go virtual
// machine. A frame matches when the program returns a non-zero length.
type BPF struct {
	vm *bpf.VM
}

func NewBPF(prog []bpf.RawInstruction) (*BPF, error) {
	insts, ok := bpf.Disassemble(prog)
	if !ok {
		return nil, fmt.Errorf("filter: BPF program has unknown instructions")
	}
	vm, err := bpf.NewVM(insts)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	return &BPF{vm: vm}, nil
}

// Compile parses and loads a program given as tcpdump -ddd text.
func Compile(text string) (*BPF, error) {
	prog, err := ParseProgram(text)
	if err != nil {
		return nil, err
	}
	return NewBPF(prog)
}

func (f *BPF) Match(raw core.RawPacket) bool {
	n, err := f.vm.Run(raw.Data)
	return err == nil && n > 0
}
