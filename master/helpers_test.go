package master

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/arloliu/go-turntable/i2cbus"
	"github.com/arloliu/go-turntable/logger"
	"github.com/arloliu/go-turntable/peripheral"
	"github.com/arloliu/go-turntable/protocol"
	"github.com/stretchr/testify/require"
)

var quietLogger = logger.NewSlogWriter(io.Discard, logger.ErrorLevel, false)

// rig is a session talking to a simulated turntable over an in-memory bus.
type rig struct {
	bus   *i2cbus.Bus
	motor *peripheral.SimMotor
	dev   *peripheral.Device
	sess  *Session
}

type rigConfig struct {
	degPerSec float64
	start     uint16
	devOpts   []peripheral.Option
	sessOpts  []Option
}

func newRig(t *testing.T, rc rigConfig) *rig {
	t.Helper()

	if rc.degPerSec == 0 {
		rc.degPerSec = 90
	}

	bus, err := i2cbus.New(i2cbus.WithTraceSize(4096), i2cbus.WithLogger(quietLogger))
	require.NoError(t, err)

	motor := peripheral.NewSimMotor(rc.degPerSec, rc.start)
	devOpts := append([]peripheral.Option{
		peripheral.WithTickInterval(2 * time.Millisecond),
		peripheral.WithLogger(quietLogger),
	}, rc.devOpts...)
	dev, err := peripheral.NewDevice(context.Background(), motor, motor, devOpts...)
	require.NoError(t, err)
	require.NoError(t, bus.Attach(dev.Address(), dev))
	require.NoError(t, dev.Start())
	t.Cleanup(func() { _ = dev.Close() })

	sessOpts := append([]Option{
		WithPollInterval(MinPollInterval),
		WithLogger(quietLogger),
	}, rc.sessOpts...)
	sess, err := NewSession(bus, sessOpts...)
	require.NoError(t, err)

	return &rig{bus: bus, motor: motor, dev: dev, sess: sess}
}

// writes returns the payloads of every frame with command cmd the bus carried.
func (r *rig) writes(cmd protocol.Command) [][]byte {
	var out [][]byte
	for _, tx := range r.bus.Trace() {
		f := protocol.Frame(tx.W)
		if len(f) > 0 && f.Command() == cmd {
			out = append(out, f.Payload(protocol.Outbound))
		}
	}

	return out
}

func testContext(t *testing.T, d time.Duration) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), d)
	t.Cleanup(cancel)

	return ctx
}

// fakePeripheral is a scripted turntable. onRotate and onStop run with the lock held.
type fakePeripheral struct {
	mu       sync.Mutex
	status   protocol.Status
	position uint16
	flags    protocol.ErrorFlags
	received []protocol.Command

	onRotate func(p *fakePeripheral, target uint16)
	onStop   func(p *fakePeripheral)
	// corruptFlagReads damages the next ReadError responses after clearing the flags.
	corruptFlagReads int
}

func newFakePeripheral() *fakePeripheral {
	return &fakePeripheral{status: protocol.StatusBoot}
}

func (p *fakePeripheral) Transact(w, r []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	f := protocol.Frame(w)
	p.received = append(p.received, f.Command())

	switch f.Command() {
	case protocol.CmdStatusAndPosition:
		st := p.status
		if p.flags != 0 {
			st |= protocol.StatusError
		}
		copy(r, protocol.EncodeStatus(protocol.StatusPosition{Status: st, Position: p.position}))
	case protocol.CmdReadError:
		resp := protocol.EncodeErrorFlags(p.flags)
		p.flags = 0
		if p.corruptFlagReads > 0 {
			p.corruptFlagReads--
			resp[len(resp)-1] ^= 0x01
		}
		copy(r, resp)
	case protocol.CmdRotateAbsolute:
		p.status |= protocol.StatusRotating
		if p.onRotate != nil {
			p.onRotate(p, protocol.DecodeAngle(f.Payload(protocol.Outbound)))
		}
	case protocol.CmdStop:
		p.status &^= protocol.StatusRotating
		if p.onStop != nil {
			p.onStop(p)
		}
	case protocol.CmdSetPosition:
		p.position = protocol.DecodeAngle(f.Payload(protocol.Outbound))
	}

	return nil
}

func (p *fakePeripheral) count(cmd protocol.Command) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, c := range p.received {
		if c == cmd {
			n++
		}
	}

	return n
}

func newFakeSession(t *testing.T, p *fakePeripheral, opts ...Option) *Session {
	t.Helper()

	bus, err := i2cbus.New(i2cbus.WithLogger(quietLogger))
	require.NoError(t, err)
	require.NoError(t, bus.Attach(protocol.DefaultAddress, p))

	opts = append([]Option{WithPollInterval(MinPollInterval), WithLogger(quietLogger)}, opts...)
	sess, err := NewSession(bus, opts...)
	require.NoError(t, err)

	return sess
}
