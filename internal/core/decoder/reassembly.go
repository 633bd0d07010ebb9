package decoder

import (
	"container/list"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"firestige.xyz/otus-codec/internal/core"
	"firestige.xyz/otus-codec/internal/metrics"
	"firestige.xyz/otus-codec/pkg/packet"
)

// Reassembly limits from RFC 791.
const (
	ipv4MinFragSize    = 1     // Minimum valid fragment payload size
	ipv4MaxSize        = 65535 // Maximum IPv4 datagram size
	ipv4MaxFragOffset  = 8183  // Maximum valid fragment offset (in 8-byte units)
	ipv4MaxFragListLen = 8192  // Maximum fragments per flow before eviction

	defaultSweepInterval = 10 * time.Second
)

// ReassemblyConfig contains configuration for IPv4 reassembly.
type ReassemblyConfig struct {
	MaxFragments      int           // Maximum fragments per flow (default 100)
	MaxFlows          int           // Maximum flows awaiting completion (default 10000)
	MaxReassembleSize int           // Maximum reassembled payload size (default 65535)
	Timeout           time.Duration // Flow idle timeout (default 60s)
	MaxFragsPerIP     int           // Per-source fragment limit per window (0 = disabled)
	RateLimitWindow   time.Duration // Rate limit window (default 10s)
}

// fragmentKey identifies a fragmented IPv4 datagram.
type fragmentKey struct {
	src      netip.Addr
	dst      netip.Addr
	protocol uint8
	id       uint16
}

type fragment struct {
	offset  uint16 // Byte offset (FragmentOffset * 8)
	length  uint16
	payload []byte // Owned copy
}

// fragmentList keeps fragments sorted by offset. On overlap the data that
// arrived first wins and the newcomer is trimmed (BSD-Right).
type fragmentList struct {
	mu            sync.Mutex
	list          list.List // *fragment, ascending offset
	highest       uint16    // datagram end once finalReceived, else max(offset + length)
	finalReceived bool      // last fragment (MF=0) seen
	lastSeen      time.Time
}

// Reassembler rebuilds IPv4 datagrams from fragments. Flows expire by the
// capture timestamps passed to Process, not by wall-clock time.
type Reassembler struct {
	mu          sync.Mutex
	flows       map[fragmentKey]*fragmentList
	config      ReassemblyConfig
	rateLimiter *FragmentRateLimiter // nil if rate limiting disabled
	lastSweep   time.Time
}

// NewReassembler creates a new IPv4 fragment reassembler.
func NewReassembler(cfg ReassemblyConfig) *Reassembler {
	if cfg.MaxFragments <= 0 {
		cfg.MaxFragments = 100
	}
	if cfg.MaxFlows <= 0 {
		cfg.MaxFlows = 10000
	}
	if cfg.MaxReassembleSize <= 0 || cfg.MaxReassembleSize > ipv4MaxSize {
		cfg.MaxReassembleSize = ipv4MaxSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &Reassembler{
		flows:  make(map[fragmentKey]*fragmentList),
		config: cfg,
		rateLimiter: NewFragmentRateLimiter(FragmentRateLimiterConfig{
			MaxFragsPerIP:   cfg.MaxFragsPerIP,
			RateLimitWindow: cfg.RateLimitWindow,
		}),
	}
}

// Process feeds one IPv4 packet and its payload bytes (header excluded,
// clamped to TotalLength) to the reassembler.
// Returns:
//   - Non-fragmented packet: (payload, true, nil), no copy
//   - Fragment not yet complete: (nil, false, nil)
//   - Fragment completing a datagram: (reassembled, true, nil)
//   - Rejected fragment: (nil, false, err)
func (r *Reassembler) Process(ip *packet.IPv4, payload []byte, timestamp time.Time) ([]byte, bool, error) {
	moreFragments := ip.Flags()&packet.IPv4FlagMoreFragments != 0
	fragOffset := ip.FragmentOffset()

	if !moreFragments && fragOffset == 0 {
		return payload, true, nil
	}

	r.sweep(timestamp)

	if len(payload) > ipv4MaxSize {
		return nil, false, r.reject("oversize", fmt.Errorf("fragment payload too large: %d bytes", len(payload)))
	}
	byteOffset := fragOffset * 8
	fragPayloadLen := uint16(len(payload))

	if err := r.securityChecks(fragPayloadLen, fragOffset); err != nil {
		return nil, false, err
	}

	src := ip.SourceAddress()
	if r.rateLimiter != nil && !r.rateLimiter.Allow(src, timestamp) {
		return nil, false, r.reject("rate_limit",
			fmt.Errorf("%w: fragment rate exceeded for source %s", core.ErrReassemblyLimit, src))
	}

	key := fragmentKey{
		src:      src,
		dst:      ip.DestinationAddress(),
		protocol: ip.Protocol(),
		id:       ip.Identification(),
	}

	r.mu.Lock()
	fl, exists := r.flows[key]
	if !exists {
		if len(r.flows) >= r.config.MaxFlows {
			r.mu.Unlock()
			return nil, false, r.reject("flows",
				fmt.Errorf("%w: %d flows awaiting reassembly", core.ErrReassemblyLimit, r.config.MaxFlows))
		}
		fl = &fragmentList{}
		r.flows[key] = fl
		metrics.ReassemblyActiveFragments.Inc()
	}
	r.mu.Unlock()

	// The capture buffer may be reused after this call returns.
	owned := make([]byte, fragPayloadLen)
	copy(owned, payload)

	fl.mu.Lock()
	if n := fl.list.Len(); n >= ipv4MaxFragListLen || n >= r.config.MaxFragments {
		fl.mu.Unlock()
		r.evictFlow(key)
		return nil, false, r.reject("flow_limit",
			fmt.Errorf("%w: fragment count exceeded limit %d", core.ErrReassemblyLimit, r.config.MaxFragments))
	}

	// The final fragment fixes the datagram length. Data past it, or a final
	// fragment ending before data already seen, cannot belong to the datagram.
	endPos := byteOffset + fragPayloadLen
	if fl.finalReceived && endPos > fl.highest {
		fl.mu.Unlock()
		return nil, false, r.reject("overlap",
			fmt.Errorf("fragment ends at %d past datagram end %d", endPos, fl.highest))
	}
	if !moreFragments {
		if fl.finalReceived && endPos != fl.highest {
			fl.mu.Unlock()
			return nil, false, r.reject("overlap",
				fmt.Errorf("final fragment ends at %d, earlier final ended at %d", endPos, fl.highest))
		}
		if endPos < fl.highest {
			fl.mu.Unlock()
			return nil, false, r.reject("overlap",
				fmt.Errorf("final fragment ends at %d before data seen up to %d", endPos, fl.highest))
		}
		fl.finalReceived = true
		fl.highest = endPos
	}

	fl.lastSeen = timestamp
	r.insertBSDRight(fl, &fragment{offset: byteOffset, length: fragPayloadLen, payload: owned})

	var (
		result   []byte
		err      error
		complete = fl.finalReceived && fl.covered()
	)
	if complete {
		result, err = r.build(fl)
	}
	fl.mu.Unlock()

	if !complete {
		return nil, false, nil
	}
	r.evictFlow(key)
	if err != nil {
		return nil, false, r.reject("oversize", err)
	}
	metrics.ReassembledPacketsTotal.Inc()
	return result, true, nil
}

// securityChecks validates fragment parameters to prevent attacks.
func (r *Reassembler) securityChecks(fragSize, fragOffset uint16) error {
	if fragSize < ipv4MinFragSize {
		return r.reject("too_small", fmt.Errorf("fragment too small: %d bytes", fragSize))
	}
	if fragOffset > ipv4MaxFragOffset {
		return r.reject("offset", fmt.Errorf("fragment offset too large: %d", fragOffset))
	}
	endPos := uint32(fragOffset)*8 + uint32(fragSize)
	if endPos > ipv4MaxSize {
		return r.reject("oversize", fmt.Errorf("fragment would exceed max IP size: offset=%d size=%d end=%d",
			uint32(fragOffset)*8, fragSize, endPos))
	}
	return nil
}

func (r *Reassembler) reject(reason string, err error) error {
	metrics.FragmentsRejectedTotal.WithLabelValues(reason).Inc()
	return err
}

// covered reports whether the sorted fragments cover [0, highest) without a
// gap. Must be called with fl.mu held.
func (fl *fragmentList) covered() bool {
	var next uint16
	for e := fl.list.Front(); e != nil; e = e.Next() {
		frag := e.Value.(*fragment)
		if frag.offset > next {
			return false
		}
		if end := frag.offset + frag.length; end > next {
			next = end
		}
	}
	return next == fl.highest
}

// insertBSDRight inserts a fragment keeping earlier data on overlap.
// Must be called with fl.mu held.
func (r *Reassembler) insertBSDRight(fl *fragmentList, frag *fragment) {
	fragEnd := frag.offset + frag.length

	if fragEnd > fl.highest && !fl.finalReceived {
		fl.highest = fragEnd
	}

	// First element with offset >= frag.offset.
	var insertBefore *list.Element
	for e := fl.list.Front(); e != nil; e = e.Next() {
		if e.Value.(*fragment).offset >= frag.offset {
			insertBefore = e
			break
		}
	}

	startAt := frag.offset
	var prev *list.Element
	if insertBefore != nil {
		prev = insertBefore.Prev()
	} else {
		prev = fl.list.Back()
	}
	if prev != nil {
		prevFrag := prev.Value.(*fragment)
		if prevEnd := prevFrag.offset + prevFrag.length; prevEnd > startAt {
			startAt = prevEnd
		}
	}

	endAt := fragEnd
	if insertBefore != nil {
		if next := insertBefore.Value.(*fragment); next.offset < endAt {
			endAt = next.offset
		}
	}

	if startAt >= endAt {
		return // fully overlapped
	}

	trimmed := &fragment{
		offset:  startAt,
		length:  endAt - startAt,
		payload: frag.payload[startAt-frag.offset : endAt-frag.offset],
	}
	if insertBefore != nil {
		fl.list.InsertBefore(trimmed, insertBefore)
	} else {
		fl.list.PushBack(trimmed)
	}
}

// build concatenates the fragments. Must be called with fl.mu held.
func (r *Reassembler) build(fl *fragmentList) ([]byte, error) {
	totalSize := int(fl.highest)
	if totalSize > r.config.MaxReassembleSize {
		return nil, fmt.Errorf("%w: reassembled size %d exceeds limit %d",
			core.ErrReassemblyLimit, totalSize, r.config.MaxReassembleSize)
	}

	result := make([]byte, totalSize)
	for e := fl.list.Front(); e != nil; e = e.Next() {
		frag := e.Value.(*fragment)
		copy(result[frag.offset:frag.offset+frag.length], frag.payload)
	}
	return result, nil
}

func (r *Reassembler) evictFlow(key fragmentKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.flows[key]; exists {
		delete(r.flows, key)
		metrics.ReassemblyActiveFragments.Dec()
	}
}

// sweep expires idle flows at most once per sweep interval of capture time.
func (r *Reassembler) sweep(now time.Time) {
	r.mu.Lock()
	due := r.lastSweep.IsZero() || now.Sub(r.lastSweep) >= defaultSweepInterval
	r.mu.Unlock()
	if due {
		r.Expire(now)
	}
}

// Expire drops flows idle for longer than the configured timeout as of now
// and returns how many were dropped.
func (r *Reassembler) Expire(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSweep = now

	expired := 0
	for key, fl := range r.flows {
		fl.mu.Lock()
		if now.Sub(fl.lastSeen) > r.config.Timeout {
			delete(r.flows, key)
			expired++
		}
		fl.mu.Unlock()
	}
	if expired > 0 {
		metrics.ReassemblyActiveFragments.Sub(float64(expired))
		metrics.FragmentsRejectedTotal.WithLabelValues("timeout").Add(float64(expired))
	}
	return expired
}

// Flush drops every pending flow and returns how many were dropped.
func (r *Reassembler) Flush() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.flows)
	if n > 0 {
		metrics.ReassemblyActiveFragments.Sub(float64(n))
		metrics.FragmentsRejectedTotal.WithLabelValues("flush").Add(float64(n))
	}
	r.flows = make(map[fragmentKey]*fragmentList)
	return n
}

// Pending returns the number of flows awaiting completion.
func (r *Reassembler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.flows)
}
