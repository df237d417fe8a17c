package peripheral

import (
	"testing"
	"time"

	"github.com/arloliu/go-turntable/logger"
	"github.com/arloliu/go-turntable/protocol"
)

// newTestEngine creates a booted engine resting at position.
func newTestEngine(t *testing.T, position uint16, opts ...Option) *Engine {
	t.Helper()

	cfg, err := NewConfig(append([]Option{WithLogger(logger.GetLogger())}, opts...)...)
	if err != nil {
		t.Fatalf("newTestEngine: %v", err)
	}

	e := NewEngine(cfg)
	e.Boot(position)

	return e
}

// newTestProcessor creates a processor over a booted engine resting at position.
func newTestProcessor(t *testing.T, position uint16) (*Processor, *Engine, *Metrics) {
	t.Helper()

	e := newTestEngine(t, position)
	m := &Metrics{}

	return NewProcessor(e, m, logger.GetLogger()), e, m
}

// corrupt returns a copy of f with one bit of the checksum flipped.
func corrupt(f protocol.Frame) protocol.Frame {
	out := append(protocol.Frame(nil), f...)
	out[len(out)-1] ^= 0x01

	return out
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: time.Unix(0, 0)} }

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }
