package decoder

import (
	"bytes"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"firestige.xyz/otus-codec/internal/core"
	"firestige.xyz/otus-codec/internal/metrics"
	"firestige.xyz/otus-codec/pkg/packet"
)

// testFragment is an IPv4 header plus the payload bytes that follow it.
type testFragment struct {
	ip      *packet.IPv4
	payload []byte
}

// buildIPv4Fragment describes an IPv4 fragment. fragOffset is in 8-byte units.
func buildIPv4Fragment(src, dst string, protocol uint8, fragID uint16, fragOffset uint16, moreFragments bool, payload []byte) testFragment {
	var flags uint8
	if moreFragments {
		flags = packet.IPv4FlagMoreFragments
	}
	ip := packet.NewIPv4().
		SetTotalLength(uint16(20 + len(payload))).
		SetIdentification(fragID).
		SetFlags(flags).
		SetFragmentOffset(fragOffset).
		SetTTL(64).
		SetProtocol(protocol).
		SetSourceAddress(netip.MustParseAddr(src)).
		SetDestinationAddress(netip.MustParseAddr(dst))
	return testFragment{ip: ip, payload: payload}
}

func (f testFragment) process(r *Reassembler, now time.Time) ([]byte, bool, error) {
	return r.Process(f.ip, f.payload, now)
}

func TestReassembler_NonFragment(t *testing.T) {
	r := NewReassembler(ReassemblyConfig{})
	now := time.Now()

	payload := []byte("hello, world")
	f := buildIPv4Fragment("10.0.0.1", "10.0.0.2", 17, 0, 0, false, payload)
	f.ip.SetFlags(packet.IPv4FlagDontFragment)

	result, complete, err := f.process(r, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !complete {
		t.Fatal("non-fragmented packet should be complete")
	}
	if !bytes.Equal(result, payload) {
		t.Fatalf("expected payload %q, got %q", payload, result)
	}
	if r.Pending() != 0 {
		t.Fatalf("non-fragmented packet must not create a flow")
	}
}

func TestReassembler_TwoFragments(t *testing.T) {
	r := NewReassembler(ReassemblyConfig{})
	now := time.Now()

	// Fragment 1: offset 0, MF=1, bytes 0..79
	frag1Payload := make([]byte, 80)
	for i := range frag1Payload {
		frag1Payload[i] = byte(i)
	}
	// Fragment 2: offset 10 (80 bytes), MF=0, bytes 80..159
	frag2Payload := make([]byte, 80)
	for i := range frag2Payload {
		frag2Payload[i] = byte(80 + i)
	}
	frag1 := buildIPv4Fragment("192.168.1.1", "192.168.1.2", 17, 0x1234, 0, true, frag1Payload)
	frag2 := buildIPv4Fragment("192.168.1.1", "192.168.1.2", 17, 0x1234, 10, false, frag2Payload)

	result, complete, err := frag1.process(r, now)
	if err != nil {
		t.Fatalf("fragment 1 error: %v", err)
	}
	if complete || result != nil {
		t.Fatal("fragment 1 should not complete")
	}
	if r.Pending() != 1 {
		t.Fatalf("expected 1 pending flow, got %d", r.Pending())
	}

	result, complete, err = frag2.process(r, now)
	if err != nil {
		t.Fatalf("fragment 2 error: %v", err)
	}
	if !complete {
		t.Fatal("fragment 2 should complete reassembly")
	}

	expected := append(append([]byte(nil), frag1Payload...), frag2Payload...)
	if !bytes.Equal(result, expected) {
		t.Fatal("reassembled payload mismatch")
	}
}

func TestReassembler_CopiesFragmentPayload(t *testing.T) {
	r := NewReassembler(ReassemblyConfig{})
	now := time.Now()

	buf := bytes.Repeat([]byte{0xAA}, 16)
	frag1 := buildIPv4Fragment("10.0.0.1", "10.0.0.2", 17, 7, 0, true, buf)
	if _, _, err := frag1.process(r, now); err != nil {
		t.Fatalf("frag1: %v", err)
	}
	// The capture buffer is reused.
	for i := range buf {
		buf[i] = 0
	}

	frag2 := buildIPv4Fragment("10.0.0.1", "10.0.0.2", 17, 7, 2, false, []byte{0xBB})
	result, complete, err := frag2.process(r, now)
	if err != nil || !complete {
		t.Fatalf("frag2: complete=%v err=%v", complete, err)
	}
	if result[0] != 0xAA {
		t.Fatalf("fragment payload was not copied, got 0x%02X", result[0])
	}
}

func TestReassembler_SIPFragment(t *testing.T) {
	// A 3000-byte SIP INVITE split at an MTU of 1500.
	r := NewReassembler(ReassemblyConfig{})
	now := time.Now()

	totalPayload := make([]byte, 3000)
	for i := range totalPayload {
		totalPayload[i] = byte(i % 256)
	}

	frags := []testFragment{
		buildIPv4Fragment("10.1.1.100", "10.1.1.200", 17, 0xABCD, 0, true, totalPayload[0:1480]),
		buildIPv4Fragment("10.1.1.100", "10.1.1.200", 17, 0xABCD, 185, true, totalPayload[1480:2960]),
		buildIPv4Fragment("10.1.1.100", "10.1.1.200", 17, 0xABCD, 370, false, totalPayload[2960:3000]),
	}

	var result []byte
	for i, f := range frags {
		out, complete, err := f.process(r, now)
		if err != nil {
			t.Fatalf("frag%d: %v", i+1, err)
		}
		if complete != (i == len(frags)-1) {
			t.Fatalf("frag%d: unexpected complete=%v", i+1, complete)
		}
		result = out
	}
	if !bytes.Equal(result, totalPayload) {
		t.Fatalf("reassembled payload mismatch: got %d bytes, want %d bytes", len(result), len(totalPayload))
	}
}

func TestReassembler_OutOfOrder(t *testing.T) {
	r := NewReassembler(ReassemblyConfig{})
	now := time.Now()

	payload := make([]byte, 240)
	for i := range payload {
		payload[i] = byte(i % 256)
	}

	// Three 80-byte fragments in reverse order.
	frags := []testFragment{
		buildIPv4Fragment("10.0.0.1", "10.0.0.2", 17, 0x5678, 20, false, payload[160:240]),
		buildIPv4Fragment("10.0.0.1", "10.0.0.2", 17, 0x5678, 10, true, payload[80:160]),
		buildIPv4Fragment("10.0.0.1", "10.0.0.2", 17, 0x5678, 0, true, payload[0:80]),
	}

	for i, f := range frags[:2] {
		_, complete, err := f.process(r, now)
		if err != nil {
			t.Fatalf("fragment %d: %v", i, err)
		}
		if complete {
			t.Fatalf("fragment %d should not complete", i)
		}
	}

	result, complete, err := frags[2].process(r, now)
	if err != nil {
		t.Fatalf("first fragment: %v", err)
	}
	if !complete {
		t.Fatal("first fragment should complete reassembly")
	}
	if !bytes.Equal(result, payload) {
		t.Fatal("reassembled payload mismatch")
	}
}

func TestReassembler_OverlappingFragments(t *testing.T) {
	// Earlier-arrived data wins on overlap.
	r := NewReassembler(ReassemblyConfig{})
	now := time.Now()

	frag1 := buildIPv4Fragment("10.0.0.1", "10.0.0.2", 17, 0x9999, 0, true, bytes.Repeat([]byte{0xAA}, 80))
	// Offset 5 (40 bytes) overlaps frag1 at bytes 40-79.
	frag2 := buildIPv4Fragment("10.0.0.1", "10.0.0.2", 17, 0x9999, 5, false, bytes.Repeat([]byte{0xBB}, 80))

	if _, complete, err := frag1.process(r, now); err != nil || complete {
		t.Fatalf("frag1: complete=%v err=%v", complete, err)
	}

	result, complete, err := frag2.process(r, now)
	if err != nil {
		t.Fatalf("frag2: %v", err)
	}
	if !complete {
		t.Fatal("fragments should be complete")
	}
	if len(result) != 120 {
		t.Fatalf("expected 120 bytes, got %d", len(result))
	}
	for i := 0; i < 80; i++ {
		if result[i] != 0xAA {
			t.Fatalf("byte %d: expected 0xAA (from frag1), got 0x%02X", i, result[i])
		}
	}
	for i := 80; i < 120; i++ {
		if result[i] != 0xBB {
			t.Fatalf("byte %d: expected 0xBB (from frag2), got 0x%02X", i, result[i])
		}
	}
}

func TestReassembler_DuplicateFragment(t *testing.T) {
	r := NewReassembler(ReassemblyConfig{})
	now := time.Now()

	frag1 := buildIPv4Fragment("10.0.0.1", "10.0.0.2", 17, 0x1111, 0, true, bytes.Repeat([]byte{0xAA}, 80))
	frag1Dup := buildIPv4Fragment("10.0.0.1", "10.0.0.2", 17, 0x1111, 0, true, bytes.Repeat([]byte{0xBB}, 80))
	frag2 := buildIPv4Fragment("10.0.0.1", "10.0.0.2", 17, 0x1111, 10, false, bytes.Repeat([]byte{0xCC}, 80))

	frag1.process(r, now)
	frag1Dup.process(r, now) // discarded

	result, complete, err := frag2.process(r, now)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if !complete {
		t.Fatal("should be complete")
	}
	for i := 0; i < 80; i++ {
		if result[i] != 0xAA {
			t.Fatalf("byte %d: expected 0xAA, got 0x%02X", i, result[i])
		}
	}
}

func TestReassembler_SecurityChecks(t *testing.T) {
	r := NewReassembler(ReassemblyConfig{})
	now := time.Now()

	t.Run("FragmentOffsetTooLarge", func(t *testing.T) {
		f := buildIPv4Fragment("10.0.0.1", "10.0.0.2", 17, 0x1234, 8184, true, []byte{0x01})
		if _, _, err := f.process(r, now); err == nil {
			t.Fatal("expected error for oversized fragment offset")
		}
	})

	t.Run("FragmentExceedsMaxIPSize", func(t *testing.T) {
		// 8183*8 + 80 = 65544 > 65535
		f := buildIPv4Fragment("10.0.0.1", "10.0.0.2", 17, 0x1234, 8183, true, make([]byte, 80))
		if _, _, err := f.process(r, now); err == nil {
			t.Fatal("expected error for fragment exceeding max IP size")
		}
	})

	t.Run("EmptyFragment", func(t *testing.T) {
		f := buildIPv4Fragment("10.0.0.1", "10.0.0.2", 17, 0x1234, 3, true, nil)
		if _, _, err := f.process(r, now); err == nil {
			t.Fatal("expected error for empty fragment")
		}
	})

	if r.Pending() != 0 {
		t.Fatalf("rejected fragments must not create flows, got %d", r.Pending())
	}
}

func TestReassembler_MaxFragListLen(t *testing.T) {
	r := NewReassembler(ReassemblyConfig{MaxFragments: 3})
	now := time.Now()

	for i := 0; i < 3; i++ {
		f := buildIPv4Fragment("10.0.0.1", "10.0.0.2", 17, 0x2222, uint16(i), true, make([]byte, 8))
		if _, _, err := f.process(r, now); err != nil {
			t.Fatalf("fragment %d: unexpected error: %v", i, err)
		}
	}

	f := buildIPv4Fragment("10.0.0.1", "10.0.0.2", 17, 0x2222, 3, false, make([]byte, 8))
	_, _, err := f.process(r, now)
	if !errors.Is(err, core.ErrReassemblyLimit) {
		t.Fatalf("expected ErrReassemblyLimit, got %v", err)
	}
	if r.Pending() != 0 {
		t.Fatal("flow should be evicted after exceeding the limit")
	}
}

func TestReassembler_MaxFlows(t *testing.T) {
	r := NewReassembler(ReassemblyConfig{MaxFlows: 2})
	now := time.Now()

	for id := uint16(1); id <= 2; id++ {
		f := buildIPv4Fragment("10.0.0.1", "10.0.0.2", 17, id, 0, true, make([]byte, 8))
		if _, _, err := f.process(r, now); err != nil {
			t.Fatalf("flow %d: %v", id, err)
		}
	}
	f := buildIPv4Fragment("10.0.0.1", "10.0.0.2", 17, 3, 0, true, make([]byte, 8))
	if _, _, err := f.process(r, now); !errors.Is(err, core.ErrReassemblyLimit) {
		t.Fatalf("expected ErrReassemblyLimit, got %v", err)
	}

	// Existing flows still accept fragments.
	f = buildIPv4Fragment("10.0.0.1", "10.0.0.2", 17, 1, 1, false, make([]byte, 8))
	if _, complete, err := f.process(r, now); err != nil || !complete {
		t.Fatalf("existing flow: complete=%v err=%v", complete, err)
	}
}

func TestReassembler_MaxReassembleSize(t *testing.T) {
	r := NewReassembler(ReassemblyConfig{MaxReassembleSize: 100})
	now := time.Now()

	buildIPv4Fragment("10.0.0.1", "10.0.0.2", 17, 9, 0, true, make([]byte, 80)).process(r, now)
	_, complete, err := buildIPv4Fragment("10.0.0.1", "10.0.0.2", 17, 9, 10, false, make([]byte, 80)).process(r, now)
	if complete || !errors.Is(err, core.ErrReassemblyLimit) {
		t.Fatalf("expected size limit error, got complete=%v err=%v", complete, err)
	}
	if r.Pending() != 0 {
		t.Fatal("flow should be evicted")
	}
}

func TestReassembler_DifferentFlows(t *testing.T) {
	r := NewReassembler(ReassemblyConfig{})
	now := time.Now()

	buildIPv4Fragment("10.0.0.1", "10.0.0.2", 17, 0x1111, 0, true, bytes.Repeat([]byte{0x11}, 80)).process(r, now)
	buildIPv4Fragment("10.0.0.3", "10.0.0.4", 17, 0x2222, 0, true, bytes.Repeat([]byte{0x22}, 80)).process(r, now)

	result1, complete1, err := buildIPv4Fragment("10.0.0.1", "10.0.0.2", 17, 0x1111, 10, false,
		bytes.Repeat([]byte{0x33}, 80)).process(r, now)
	if err != nil {
		t.Fatalf("flow1 frag2: %v", err)
	}
	if !complete1 || result1[0] != 0x11 {
		t.Fatal("flow1 should complete with its own data")
	}

	result2, complete2, err := buildIPv4Fragment("10.0.0.3", "10.0.0.4", 17, 0x2222, 10, false,
		bytes.Repeat([]byte{0x44}, 80)).process(r, now)
	if err != nil {
		t.Fatalf("flow2 frag2: %v", err)
	}
	if !complete2 || result2[0] != 0x22 {
		t.Fatal("flow2 should complete with its own data")
	}
}

func TestReassembler_FlowEvictionAfterComplete(t *testing.T) {
	r := NewReassembler(ReassemblyConfig{})
	now := time.Now()

	buildIPv4Fragment("10.0.0.1", "10.0.0.2", 17, 0x3333, 0, true, make([]byte, 80)).process(r, now)
	buildIPv4Fragment("10.0.0.1", "10.0.0.2", 17, 0x3333, 10, false, make([]byte, 80)).process(r, now)

	r.mu.Lock()
	key := fragmentKey{
		src:      netip.MustParseAddr("10.0.0.1"),
		dst:      netip.MustParseAddr("10.0.0.2"),
		protocol: 17,
		id:       0x3333,
	}
	_, exists := r.flows[key]
	r.mu.Unlock()

	if exists {
		t.Fatal("flow should be evicted after successful reassembly")
	}
}

func TestReassembler_ExpireByCaptureTime(t *testing.T) {
	r := NewReassembler(ReassemblyConfig{Timeout: 30 * time.Second})
	// Capture timestamps from a file recorded long ago.
	then := time.Date(2019, 5, 1, 12, 0, 0, 0, time.UTC)

	buildIPv4Fragment("10.0.0.1", "10.0.0.2", 17, 1, 0, true, make([]byte, 8)).process(r, then)
	buildIPv4Fragment("10.0.0.1", "10.0.0.2", 17, 2, 0, true, make([]byte, 8)).process(r, then.Add(20*time.Second))

	if n := r.Expire(then.Add(40 * time.Second)); n != 1 {
		t.Fatalf("expected 1 expired flow, got %d", n)
	}
	if r.Pending() != 1 {
		t.Fatalf("expected 1 pending flow, got %d", r.Pending())
	}

	// A fragment far later in capture time sweeps the rest.
	buildIPv4Fragment("10.0.0.9", "10.0.0.2", 17, 3, 0, true, make([]byte, 8)).process(r, then.Add(5*time.Minute))
	if r.Pending() != 1 {
		t.Fatalf("expected only the new flow, got %d", r.Pending())
	}

	flushedBefore := testutil.ToFloat64(metrics.FragmentsRejectedTotal.WithLabelValues("flush"))
	timedOutBefore := testutil.ToFloat64(metrics.FragmentsRejectedTotal.WithLabelValues("timeout"))
	if n := r.Flush(); n != 1 {
		t.Fatalf("expected flush to drop 1 flow, got %d", n)
	}
	if r.Pending() != 0 {
		t.Fatal("flush should drop every flow")
	}
	if got := testutil.ToFloat64(metrics.FragmentsRejectedTotal.WithLabelValues("flush")) - flushedBefore; got != 1 {
		t.Fatalf("expected 1 flushed flow counted, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.FragmentsRejectedTotal.WithLabelValues("timeout")) - timedOutBefore; got != 0 {
		t.Fatalf("flush must not count as timeout, got %v", got)
	}
}

func TestReassembler_FragmentsOutsideDatagram(t *testing.T) {
	frag := func(offset uint16, more bool, fill byte) testFragment {
		return buildIPv4Fragment("10.0.0.1", "10.0.0.2", 17, 0x4242, offset, more, bytes.Repeat([]byte{fill}, 8))
	}

	tests := []struct {
		name     string
		accepted []testFragment
		rejected testFragment
	}{
		{
			name:     "fragment beyond final end",
			accepted: []testFragment{frag(1, false, 0xAA)},
			rejected: frag(3, true, 0xBB),
		},
		{
			name:     "final fragment shorter than highest seen",
			accepted: []testFragment{frag(2, true, 0xAA)},
			rejected: frag(1, false, 0xBB),
		},
		{
			name:     "gap left when last byte arrives",
			accepted: []testFragment{frag(2, false, 0xAA), frag(0, true, 0xBB)},
			rejected: frag(3, true, 0xCC),
		},
		{
			name:     "second final with different end",
			accepted: []testFragment{frag(1, false, 0xAA)},
			rejected: frag(2, false, 0xBB),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReassembler(ReassemblyConfig{})
			now := time.Now()
			before := testutil.ToFloat64(metrics.FragmentsRejectedTotal.WithLabelValues("overlap"))

			for i, f := range tt.accepted {
				if _, complete, err := f.process(r, now); err != nil || complete {
					t.Fatalf("fragment %d: complete=%v err=%v", i, complete, err)
				}
			}

			result, complete, err := tt.rejected.process(r, now)
			if err == nil {
				t.Fatal("expected the out-of-range fragment to be rejected")
			}
			if complete || result != nil {
				t.Fatalf("datagram must not complete, got %d bytes", len(result))
			}
			if got := testutil.ToFloat64(metrics.FragmentsRejectedTotal.WithLabelValues("overlap")) - before; got != 1 {
				t.Fatalf("expected 1 rejected fragment counted, got %v", got)
			}
			if r.Pending() != 1 {
				t.Fatalf("flow should still await its missing data, pending=%d", r.Pending())
			}
		})
	}
}

func TestReassembler_GapFilledAfterRejection(t *testing.T) {
	r := NewReassembler(ReassemblyConfig{})
	now := time.Now()
	frag := func(offset uint16, more bool, fill byte) testFragment {
		return buildIPv4Fragment("10.0.0.1", "10.0.0.2", 6, 0x7777, offset, more, bytes.Repeat([]byte{fill}, 8))
	}

	for i, f := range []testFragment{frag(2, false, 0xCC), frag(0, true, 0xAA)} {
		if _, complete, err := f.process(r, now); err != nil || complete {
			t.Fatalf("fragment %d: complete=%v err=%v", i, complete, err)
		}
	}
	if _, complete, err := frag(3, true, 0xFF).process(r, now); err == nil || complete {
		t.Fatalf("stray fragment: complete=%v err=%v", complete, err)
	}

	result, complete, err := frag(1, true, 0xBB).process(r, now)
	if err != nil {
		t.Fatalf("middle fragment: %v", err)
	}
	if !complete {
		t.Fatal("middle fragment should complete reassembly")
	}
	want := append(append(bytes.Repeat([]byte{0xAA}, 8), bytes.Repeat([]byte{0xBB}, 8)...), bytes.Repeat([]byte{0xCC}, 8)...)
	if !bytes.Equal(result, want) {
		t.Fatalf("expected %x, got %x", want, result)
	}
	if r.Pending() != 0 {
		t.Fatal("completed flow should be evicted")
	}
}
