package peripheral

import (
	"testing"

	"github.com/arloliu/go-turntable/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessor_RotateAbsolute(t *testing.T) {
	p, e, m := newTestProcessor(t, 90)

	resp := p.Handle(protocol.EncodeCommand(protocol.CmdRotateAbsolute, protocol.EncodeAngle(180)...))
	assert.Nil(t, resp)

	st := e.Snapshot()
	assert.True(t, st.Rotating())
	assert.Equal(t, uint16(180), st.Target)
	assert.Equal(t, Forward, st.Direction)
	assert.Equal(t, uint64(1), m.RotationCount.Load())
	assert.Zero(t, m.FrameErrCount.Load())
}

func TestProcessor_CorruptedRotateIsIgnored(t *testing.T) {
	p, e, m := newTestProcessor(t, 90)
	before := e.Snapshot()

	resp := p.Handle(corrupt(protocol.EncodeCommand(protocol.CmdRotateAbsolute, protocol.EncodeAngle(180)...)))
	assert.Nil(t, resp)

	st := e.Snapshot()
	assert.Equal(t, before.Position, st.Position)
	assert.Equal(t, before.Target, st.Target)
	assert.Equal(t, before.HasTarget, st.HasTarget)
	assert.False(t, st.Rotating())
	assert.True(t, st.Flags.Has(protocol.FlagBadCom))
	assert.True(t, st.Status().HasError())
	assert.Zero(t, m.RotationCount.Load())
	assert.Equal(t, uint64(1), m.FrameErrCount.Load())
}

func TestProcessor_ParamCount(t *testing.T) {
	tests := []struct {
		name  string
		frame protocol.Frame
	}{
		{"empty", protocol.Frame{}},
		{"rotate short", protocol.EncodeCommand(protocol.CmdRotateAbsolute, 0xB4)},
		{"rotate long", protocol.EncodeCommand(protocol.CmdRotateAbsolute, 0xB4, 0x00, 0x00)},
		{"set ramp without payload", protocol.EncodeCommand(protocol.CmdSetRampDistance)},
		{"stop with payload", protocol.EncodeCommand(protocol.CmdStop, 0x01)},
		{"command byte only", protocol.Frame{byte(protocol.CmdSetPosition)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, e, _ := newTestProcessor(t, 45)

			assert.Nil(t, p.Handle(tt.frame))

			st := e.Snapshot()
			assert.Equal(t, protocol.FlagParamCount, st.Flags)
			assert.Equal(t, uint16(45), st.Position)
			assert.False(t, st.Rotating())
			assert.Equal(t, uint8(DefaultRampDistance), st.RampDistance)
		})
	}
}

func TestProcessor_UnknownCommand(t *testing.T) {
	p, e, _ := newTestProcessor(t, 0)

	assert.Nil(t, p.Handle(protocol.EncodeCommand(protocol.Command(0x7E), 0x01)))
	assert.Equal(t, protocol.FlagUnrecognizedCommand, e.ReadErrorAndClear())

	assert.Nil(t, p.Handle(corrupt(protocol.EncodeCommand(protocol.Command(0x7E), 0x01))))
	assert.Equal(t, protocol.FlagBadCom, e.ReadErrorAndClear())
}

func TestProcessor_StatusAndPosition(t *testing.T) {
	p, e, _ := newTestProcessor(t, 286)
	e.BeginRotation(300)

	resp := p.Handle(protocol.EncodeCommand(protocol.CmdStatusAndPosition))
	require.True(t, protocol.Validate(resp, protocol.Inbound))

	sp, err := protocol.DecodeStatus(resp)
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusBoot|protocol.StatusRotating, sp.Status)
	assert.Equal(t, uint16(286), sp.Position)
}

func TestProcessor_CorruptedReadStillAnswers(t *testing.T) {
	p, e, _ := newTestProcessor(t, 12)

	resp := p.Handle(corrupt(protocol.EncodeCommand(protocol.CmdStatusAndPosition)))
	require.True(t, protocol.Validate(resp, protocol.Inbound))

	sp, err := protocol.DecodeStatus(resp)
	require.NoError(t, err)
	assert.True(t, sp.Status.HasError())
	assert.Equal(t, uint16(12), sp.Position)
	assert.True(t, e.Snapshot().Flags.Has(protocol.FlagBadCom))
}

func TestProcessor_ReadError(t *testing.T) {
	p, e, _ := newTestProcessor(t, 0)
	e.RaiseError(protocol.FlagRotationTimeout)

	flags, err := protocol.DecodeErrorFlags(p.Handle(protocol.EncodeCommand(protocol.CmdReadError)))
	require.NoError(t, err)
	assert.Equal(t, protocol.FlagRotationTimeout, flags)

	flags, err = protocol.DecodeErrorFlags(p.Handle(protocol.EncodeCommand(protocol.CmdReadError)))
	require.NoError(t, err)
	assert.Zero(t, flags)
}

func TestProcessor_CorruptedReadErrorKeepsFlags(t *testing.T) {
	p, e, _ := newTestProcessor(t, 0)
	e.RaiseError(protocol.FlagRotationDirection)

	flags, err := protocol.DecodeErrorFlags(p.Handle(corrupt(protocol.EncodeCommand(protocol.CmdReadError))))
	require.NoError(t, err)
	assert.Equal(t, protocol.FlagRotationDirection|protocol.FlagBadCom, flags)
	assert.Equal(t, protocol.FlagRotationDirection|protocol.FlagBadCom, e.Snapshot().Flags)
}

func TestProcessor_WriteCommands(t *testing.T) {
	p, e, _ := newTestProcessor(t, 0)

	assert.Nil(t, p.Handle(protocol.EncodeCommand(protocol.CmdSetPosition, protocol.EncodeAngle(359)...)))
	assert.Equal(t, uint16(359), e.Snapshot().Position)

	assert.Nil(t, p.Handle(protocol.EncodeCommand(protocol.CmdSetRampDistance, 0)))
	assert.Equal(t, uint8(MinRampDistance), e.Snapshot().RampDistance)

	assert.Nil(t, p.Handle(protocol.EncodeCommand(protocol.CmdRotateAbsolute, protocol.EncodeAngle(10)...)))
	assert.True(t, e.Snapshot().Rotating())

	assert.Nil(t, p.Handle(protocol.EncodeCommand(protocol.CmdStop)))
	assert.False(t, e.Snapshot().Rotating())
	assert.Equal(t, uint16(359), e.Snapshot().Position)
	assert.Zero(t, e.Snapshot().Flags)
}
