package peripheral

import (
	"github.com/arloliu/go-turntable/logger"
	"github.com/arloliu/go-turntable/protocol"
)

// handlerFunc executes a validated command and returns its response frame,
// or nil for write commands.
type handlerFunc func(payload []byte) protocol.Frame

type route struct {
	spec   protocol.CommandSpec
	handle handlerFunc
	// reply answers a read command whose frame failed validation.
	reply func() protocol.Frame
}

// Processor validates command frames and dispatches them to an Engine.
type Processor struct {
	engine  *Engine
	routes  map[protocol.Command]route
	metrics *Metrics
	logger  logger.Logger
}

// NewProcessor creates a Processor bound to engine.
func NewProcessor(engine *Engine, metrics *Metrics, l logger.Logger) *Processor {
	p := &Processor{
		engine:  engine,
		metrics: metrics,
		logger:  l,
	}

	p.routes = map[protocol.Command]route{
		protocol.CmdStop:              {handle: p.handleStop},
		protocol.CmdStatusAndPosition: {handle: p.handleStatus, reply: p.statusFrame},
		protocol.CmdSetPosition:       {handle: p.handleSetPosition},
		protocol.CmdRotateAbsolute:    {handle: p.handleRotate},
		protocol.CmdSetRampDistance:   {handle: p.handleSetRamp},
		protocol.CmdReadError:         {handle: p.handleReadError, reply: p.peekErrorFrame},
	}
	for cmd, r := range p.routes {
		r.spec, _ = protocol.Lookup(cmd)
		p.routes[cmd] = r
	}

	return p
}

// Handle processes one command frame.
//
// Validation runs in order: frame length, then checksum, then dispatch. A failed
// validation never touches position, target or rotation; it only raises the
// matching error flag. Read commands are answered even when validation fails.
func (p *Processor) Handle(f protocol.Frame) protocol.Frame {
	p.metrics.incFrameRecvCount()

	if len(f) == 0 {
		p.reject(f, protocol.FlagParamCount)
		return nil
	}

	r, ok := p.routes[f.Command()]
	if !ok {
		// A command byte outside the table with a bad checksum was most likely
		// corrupted in transit.
		if protocol.ChecksumOK(f, protocol.Outbound) {
			p.reject(f, protocol.FlagUnrecognizedCommand)
		} else {
			p.reject(f, protocol.FlagBadCom)
		}

		return nil
	}

	if len(f) != r.spec.FrameLen() {
		p.reject(f, protocol.FlagParamCount)
		return r.fallback()
	}

	if !protocol.ChecksumOK(f, protocol.Outbound) {
		p.reject(f, protocol.FlagBadCom)
		return r.fallback()
	}

	return r.handle(f.Payload(protocol.Outbound))
}

func (r route) fallback() protocol.Frame {
	if r.reply == nil {
		return nil
	}
	return r.reply()
}

func (p *Processor) reject(f protocol.Frame, flag protocol.ErrorFlags) {
	p.metrics.incFrameErrCount()
	p.engine.RaiseError(flag)
	p.logger.Debug("peripheral: frame rejected",
		"frame", []byte(f),
		"flag", flag,
	)
}

func (p *Processor) handleStop(_ []byte) protocol.Frame {
	p.engine.Stop()
	return nil
}

func (p *Processor) handleStatus(_ []byte) protocol.Frame {
	return p.statusFrame()
}

func (p *Processor) statusFrame() protocol.Frame {
	status, pos := p.engine.ReadStatusAndPosition()
	return protocol.EncodeStatus(protocol.StatusPosition{Status: status, Position: pos})
}

func (p *Processor) handleSetPosition(payload []byte) protocol.Frame {
	p.engine.SetAbsolutePosition(protocol.DecodeAngle(payload))
	return nil
}

func (p *Processor) handleRotate(payload []byte) protocol.Frame {
	p.metrics.incRotationCount()
	p.engine.BeginRotation(protocol.DecodeAngle(payload))

	return nil
}

func (p *Processor) handleSetRamp(payload []byte) protocol.Frame {
	p.engine.SetRampDistance(payload[0])
	return nil
}

func (p *Processor) handleReadError(_ []byte) protocol.Frame {
	return protocol.EncodeErrorFlags(p.engine.ReadErrorAndClear())
}

// peekErrorFrame reports pending flags without clearing them, for a ReadError
// request that failed validation.
func (p *Processor) peekErrorFrame() protocol.Frame {
	return protocol.EncodeErrorFlags(p.engine.Snapshot().Flags)
}
