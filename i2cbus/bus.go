package i2cbus

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/arloliu/go-turntable/internal/queue"
	"github.com/arloliu/go-turntable/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"tinygo.org/x/drivers"
)

// MaxAddress is the highest 7-bit address.
const MaxAddress uint16 = 0x7F

// idleLine is what the master reads when no target drives the line.
const idleLine byte = 0xFF

var (
	ErrNoTarget       = errors.New("i2cbus: no target acknowledged the address")
	ErrInvalidAddress = errors.New("i2cbus: address exceeds 7 bits")
	ErrAddressInUse   = errors.New("i2cbus: address already in use")
	ErrInvalidSpeed   = errors.New("i2cbus: invalid bus speed")
	ErrClosed         = errors.New("i2cbus: bus closed")
)

// Target answers the transactions addressed to it. w is the data written by the
// master and r is the buffer to fill with the read phase.
type Target interface {
	Transact(w, r []byte) error
}

// TargetFunc adapts a function to the Target interface.
type TargetFunc func(w, r []byte) error

func (f TargetFunc) Transact(w, r []byte) error { return f(w, r) }

// Transaction is one recorded bus transaction, as seen by the master.
type Transaction struct {
	Addr uint16
	W    []byte // bytes the target received
	R    []byte // bytes the master received
	Err  error
	At   time.Time
	// Corrupted reports whether the bus altered either phase.
	Corrupted bool
}

// Bus is an in-memory addressed bus.
//
// Tx is serialized: at most one transaction is in flight.
type Bus struct {
	cfg     *Config
	targets *xsync.MapOf[uint16, Target]
	trace   *queue.Ring[Transaction]
	metrics Metrics

	mu           sync.Mutex // serializes Tx and guards the fields below
	speed        physic.Frequency
	corruptWrite int
	corruptRead  int
	noiseRate    float64
	rng          *rand.Rand
	closed       bool

	logger logger.Logger
}

var (
	_ drivers.I2C   = (*Bus)(nil)
	_ i2c.BusCloser = (*Bus)(nil)
)

// New creates an empty bus.
func New(opts ...Option) (*Bus, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	return &Bus{
		cfg:       cfg,
		targets:   xsync.NewMapOf[uint16, Target](),
		trace:     queue.NewRing[Transaction](cfg.traceSize),
		speed:     cfg.speed,
		noiseRate: cfg.noiseRate,
		rng:       rand.New(rand.NewSource(cfg.seed)), //nolint:gosec
		logger:    cfg.logger,
	}, nil
}

// Attach connects t at addr.
func (b *Bus) Attach(addr uint16, t Target) error {
	if addr > MaxAddress {
		return fmt.Errorf("%w: 0x%02X", ErrInvalidAddress, addr)
	}
	if t == nil {
		return errors.New("i2cbus: target must not be nil")
	}

	if _, loaded := b.targets.LoadOrStore(addr, t); loaded {
		return fmt.Errorf("%w: 0x%02X", ErrAddressInUse, addr)
	}
	b.logger.Debug("i2cbus: target attached", "bus", b.cfg.name, "address", addr)

	return nil
}

// Detach disconnects the target at addr. It reports whether a target was attached.
func (b *Bus) Detach(addr uint16) bool {
	_, ok := b.targets.LoadAndDelete(addr)
	return ok
}

// Addresses returns the number of attached targets.
func (b *Bus) Addresses() int {
	return b.targets.Size()
}

// Tx performs one write-then-read transaction with the target at addr.
// Without a target at addr the transaction is not acknowledged: r reads idle
// and ErrNoTarget is returned.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	if addr > MaxAddress {
		return fmt.Errorf("%w: 0x%02X", ErrInvalidAddress, addr)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	b.metrics.incTxCount()

	rec := Transaction{Addr: addr, At: time.Now()}
	defer func() {
		rec.R = append([]byte(nil), r...)
		b.trace.Enqueue(rec)
	}()

	t, ok := b.targets.Load(addr)
	if !ok {
		fill(r, idleLine)
		b.metrics.incNackCount()
		rec.W = append([]byte(nil), w...)
		rec.Err = fmt.Errorf("%w: 0x%02X", ErrNoTarget, addr)

		return rec.Err
	}

	wire := append([]byte(nil), w...)
	if b.corruptWrite > 0 && len(wire) > 0 {
		b.corruptWrite--
		flipLast(wire)
		rec.Corrupted = true
	}
	if b.addNoiseLocked(wire) {
		rec.Corrupted = true
	}
	rec.W = wire

	if err := t.Transact(wire, r); err != nil {
		rec.Err = err
		b.metrics.incTargetErrCount()

		return err
	}

	if b.corruptRead > 0 && len(r) > 0 {
		b.corruptRead--
		flipLast(r)
		rec.Corrupted = true
	}
	if b.addNoiseLocked(r) {
		rec.Corrupted = true
	}
	if rec.Corrupted {
		b.metrics.incCorruptCount()
		b.logger.Debug("i2cbus: transaction corrupted", "bus", b.cfg.name, "address", addr)
	}

	return nil
}

// CorruptNextWrites flips one bit of the checksum byte of the next n non-empty
// writes, so the target receives a frame that fails validation.
func (b *Bus) CorruptNextWrites(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.corruptWrite = max(n, 0)
}

// CorruptNextReads flips one bit of the last byte of the next n non-empty reads.
func (b *Bus) CorruptNextReads(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.corruptRead = max(n, 0)
}

// SetNoise sets the probability that each transferred bit is flipped.
func (b *Bus) SetNoise(rate float64) error {
	if rate < 0 || rate > MaxNoiseRate {
		return fmt.Errorf("i2cbus: noise rate %v out of range [0, %v]", rate, MaxNoiseRate)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.noiseRate = rate

	return nil
}

func (b *Bus) addNoiseLocked(data []byte) bool {
	if b.noiseRate == 0 {
		return false
	}

	flipped := false
	for i := range data {
		for bit := range 8 {
			if b.rng.Float64() < b.noiseRate {
				data[i] ^= 1 << bit
				flipped = true
			}
		}
	}

	return flipped
}

// Trace returns the recorded transactions, oldest first.
func (b *Bus) Trace() []Transaction {
	return b.trace.Snapshot()
}

// ResetTrace discards the recorded transactions.
func (b *Bus) ResetTrace() {
	b.trace.Reset()
}

// String implements i2c.Bus.
func (b *Bus) String() string {
	return b.cfg.name
}

// SetSpeed implements i2c.Bus. The speed is recorded only; transactions
// complete instantly.
func (b *Bus) SetSpeed(f physic.Frequency) error {
	if f <= 0 || f > MaxSpeed {
		return fmt.Errorf("%w: %s", ErrInvalidSpeed, f)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.speed = f

	return nil
}

// Speed returns the bus clock frequency.
func (b *Bus) Speed() physic.Frequency {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.speed
}

// Close detaches every target. Later transactions fail with ErrClosed.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	b.closed = true
	b.targets.Clear()

	return nil
}

// GetMetrics returns the bus counters.
func (b *Bus) GetMetrics() *Metrics {
	return &b.metrics
}

func flipLast(data []byte) {
	data[len(data)-1] ^= 0x01
}

func fill(data []byte, v byte) {
	for i := range data {
		data[i] = v
	}
}
