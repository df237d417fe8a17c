package peripheral

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-turntable/internal/task"
	"github.com/arloliu/go-turntable/logger"
	"github.com/arloliu/go-turntable/protocol"
)

// idleLine is what a master reads for bytes the device does not drive.
const idleLine byte = 0xFF

var (
	ErrAlreadyRunning = errors.New("peripheral: device already running")
	ErrNotRunning     = errors.New("peripheral: device not running")
	ErrNilMotor       = errors.New("peripheral: motor and encoder must not be nil")
)

// Device is a complete turntable peripheral: engine, command processor, motor
// and encoder, with its own tick loop.
type Device struct {
	cfg     *Config
	engine  *Engine
	proc    *Processor
	motor   Motor
	encoder Encoder
	taskMgr *task.Manager
	running atomic.Bool
	metrics Metrics
	logger  logger.Logger
}

// NewDevice creates a stopped device. Call Start to boot it and run the tick loop.
func NewDevice(ctx context.Context, motor Motor, encoder Encoder, opts ...Option) (*Device, error) {
	if motor == nil || encoder == nil {
		return nil, ErrNilMotor
	}

	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	l := cfg.logger.With("address", cfg.address)
	cfg.logger = l

	d := &Device{
		cfg:     cfg,
		motor:   motor,
		encoder: encoder,
		taskMgr: task.NewManager(ctx, l),
		logger:  l,
	}
	d.engine = NewEngine(cfg)
	d.proc = NewProcessor(d.engine, &d.metrics, l)

	return d, nil
}

// Start boots the device, after the configured boot delay, and starts the tick loop.
func (d *Device) Start() error {
	if !d.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	if d.cfg.bootDelay == 0 {
		d.boot()
	} else {
		err := d.taskMgr.StartInterval("boot", func(time.Duration) bool {
			d.boot()
			return false
		}, d.cfg.bootDelay)
		if err != nil {
			d.running.Store(false)
			return err
		}
	}

	if err := d.taskMgr.StartInterval("tick", d.tick, d.cfg.tickInterval); err != nil {
		d.taskMgr.Stop()
		d.taskMgr.Wait()
		d.running.Store(false)

		return err
	}

	return nil
}

// Close stops the tick loop and the motor.
func (d *Device) Close() error {
	if !d.running.CompareAndSwap(true, false) {
		return ErrNotRunning
	}

	d.taskMgr.Stop()
	d.taskMgr.Wait()
	d.engine.Stop()
	d.motor.Drive(Drive{})
	d.logger.Debug("peripheral: device closed")

	return nil
}

func (d *Device) boot() {
	pos := d.cfg.initialPos
	if abs, ok := d.encoder.(AbsoluteEncoder); ok {
		pos = abs.Angle()
	}
	_ = d.encoder.ReadDelta() // discard motion before boot
	d.engine.Boot(pos)
}

func (d *Device) tick(elapsed time.Duration) bool {
	drive := d.engine.Tick(elapsed, d.encoder.ReadDelta())
	d.motor.Drive(drive)
	d.metrics.incTickCount()

	return true
}

// Transact handles one bus transaction: w is the command frame written by the
// master and r receives the response. Bytes of r the device has nothing for
// read as an idle line.
func (d *Device) Transact(w, r []byte) error {
	resp := d.proc.Handle(protocol.Frame(w))

	n := copy(r, resp)
	for i := n; i < len(r); i++ {
		r[i] = idleLine
	}

	return nil
}

// Address returns the bus address of the device.
func (d *Device) Address() uint16 { return d.cfg.address }

// Engine returns the motion engine.
func (d *Device) Engine() *Engine { return d.engine }

// Running reports whether the tick loop is running.
func (d *Device) Running() bool { return d.running.Load() }

// GetMetrics returns the device counters.
func (d *Device) GetMetrics() *Metrics { return &d.metrics }
