package decoder

import (
	"errors"
	"net/netip"
	"testing"
	"time"

	"firestige.xyz/otus-codec/internal/core"
)

func TestFragmentRateLimiter_NilWhenDisabled(t *testing.T) {
	l := NewFragmentRateLimiter(FragmentRateLimiterConfig{MaxFragsPerIP: 0})
	if l != nil {
		t.Error("expected nil when MaxFragsPerIP = 0")
	}
}

func TestFragmentRateLimiter_AllowsWithinLimit(t *testing.T) {
	l := NewFragmentRateLimiter(FragmentRateLimiterConfig{
		MaxFragsPerIP:   5,
		RateLimitWindow: 10 * time.Second,
	})

	srcIP := netip.MustParseAddr("192.168.1.1")
	now := time.Now()

	for i := 0; i < 5; i++ {
		if !l.Allow(srcIP, now) {
			t.Fatalf("fragment %d should be allowed (within limit)", i)
		}
	}
}

func TestFragmentRateLimiter_RejectsOverLimit(t *testing.T) {
	l := NewFragmentRateLimiter(FragmentRateLimiterConfig{
		MaxFragsPerIP:   3,
		RateLimitWindow: 10 * time.Second,
	})

	srcIP := netip.MustParseAddr("10.0.0.1")
	now := time.Now()

	for i := 0; i < 3; i++ {
		l.Allow(srcIP, now)
	}
	if l.Allow(srcIP, now) {
		t.Error("4th fragment should be rejected")
	}
	if l.Rejected() != 1 {
		t.Errorf("expected 1 rejected, got %d", l.Rejected())
	}
}

func TestFragmentRateLimiter_DifferentIPsIndependent(t *testing.T) {
	l := NewFragmentRateLimiter(FragmentRateLimiterConfig{
		MaxFragsPerIP:   2,
		RateLimitWindow: 10 * time.Second,
	})

	ip1 := netip.MustParseAddr("1.1.1.1")
	ip2 := netip.MustParseAddr("2.2.2.2")
	now := time.Now()

	l.Allow(ip1, now)
	l.Allow(ip1, now)
	if l.Allow(ip1, now) {
		t.Error("ip1's 3rd fragment should be rejected")
	}
	if !l.Allow(ip2, now) {
		t.Error("ip2's 1st fragment should be allowed")
	}
}

func TestFragmentRateLimiter_WindowRotation(t *testing.T) {
	l := NewFragmentRateLimiter(FragmentRateLimiterConfig{
		MaxFragsPerIP:   2,
		RateLimitWindow: 1 * time.Second,
	})

	srcIP := netip.MustParseAddr("10.0.0.1")
	now := time.Now()

	l.Allow(srcIP, now)
	l.Allow(srcIP, now)
	if l.Allow(srcIP, now) {
		t.Error("should be rejected before window rotation")
	}

	later := now.Add(2 * time.Second)
	if !l.Allow(srcIP, later) {
		t.Error("should be allowed after window rotation")
	}
}

func TestFragmentRateLimiter_FollowsCaptureTime(t *testing.T) {
	l := NewFragmentRateLimiter(FragmentRateLimiterConfig{
		MaxFragsPerIP:   1,
		RateLimitWindow: time.Second,
	})

	srcIP := netip.MustParseAddr("10.0.0.1")
	then := time.Date(2019, 5, 1, 12, 0, 0, 0, time.UTC)

	if !l.Allow(srcIP, then) {
		t.Fatal("first fragment should be allowed")
	}
	if l.Allow(srcIP, then.Add(500*time.Millisecond)) {
		t.Fatal("second fragment in the same window should be rejected")
	}
	if !l.Allow(srcIP, then.Add(1500*time.Millisecond)) {
		t.Fatal("fragment in the next window should be allowed")
	}
}

func TestFragmentRateLimiter_ActiveIPs(t *testing.T) {
	l := NewFragmentRateLimiter(FragmentRateLimiterConfig{
		MaxFragsPerIP:   100,
		RateLimitWindow: 10 * time.Second,
	})

	now := time.Now()
	l.Allow(netip.MustParseAddr("1.0.0.1"), now)
	l.Allow(netip.MustParseAddr("2.0.0.1"), now)
	l.Allow(netip.MustParseAddr("3.0.0.1"), now)

	if got := l.ActiveIPs(); got != 3 {
		t.Errorf("expected 3 active IPs, got %d", got)
	}
}

func TestReassembler_RateLimitRejectsFragments(t *testing.T) {
	r := NewReassembler(ReassemblyConfig{
		MaxFragments:    100,
		MaxFragsPerIP:   2,
		RateLimitWindow: time.Minute,
	})

	now := time.Now()
	for i := 0; i < 3; i++ {
		f := buildIPv4Fragment("192.168.1.100", "10.0.0.1", 17, 1000, uint16(i)*10, i < 2, make([]byte, 80))
		_, _, err := f.process(r, now)
		if i < 2 && err != nil {
			t.Fatalf("fragment %d should be allowed, got error: %v", i, err)
		}
		if i == 2 && !errors.Is(err, core.ErrReassemblyLimit) {
			t.Fatalf("fragment 2 should be rejected by rate limiter, got %v", err)
		}
	}
}

func TestReassembler_RateLimitDisabledByDefault(t *testing.T) {
	r := NewReassembler(ReassemblyConfig{MaxFlows: 100})

	now := time.Now()
	for i := 0; i < 50; i++ {
		f := buildIPv4Fragment("192.168.1.1", "10.0.0.1", 17, uint16(2000+i), 0, true, make([]byte, 24))
		if _, _, err := f.process(r, now); err != nil {
			t.Fatalf("fragment %d should be allowed (rate limiting disabled), got: %v", i, err)
		}
	}
}
