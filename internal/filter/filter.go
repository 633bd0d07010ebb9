// Package filter selects raw frames before they are decoded.
package filter

import (
	"firestige.xyz/otus-codec/internal/core"
	"firestige.xyz/otus-codec/internal/metrics"
)

// Filter reports whether a frame should be decoded.
type Filter interface {
	Match(raw core.RawPacket) bool
}

// Chain accepts a frame only if every filter accepts it. An empty chain
// accepts everything.
type Chain struct {
	filters  []Filter
	accepted int
	dropped  int
}

func NewChain(filters ...Filter) *Chain {
	all := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			all = append(all, f)
		}
	}
	return &Chain{filters: all}
}

func (c *Chain) Match(raw core.RawPacket) bool {
	for _, f := range c.filters {
		if !f.Match(raw) {
			c.dropped++
			metrics.FilteredPacketsTotal.WithLabelValues("dropped").Inc()
			return false
		}
	}
	c.accepted++
	metrics.FilteredPacketsTotal.WithLabelValues("accepted").Inc()
	return true
}

func (c *Chain) Len() int { return len(c.filters) }

// Counts returns the number of accepted and dropped frames.
func (c *Chain) Counts() (accepted, dropped int) {
	return c.accepted, c.dropped
}
