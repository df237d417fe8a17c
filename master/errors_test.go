package master

import (
	"errors"
	"testing"

	"github.com/arloliu/go-turntable/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFaultError(t *testing.T) {
	cause := errors.New("bus unplugged")
	err := error(&FaultError{
		Op:    "rotate",
		Kind:  ErrCommunicationFault,
		Flags: protocol.FlagBadCom,
		Err:   cause,
	})

	assert.Equal(t, "master: communication fault during rotate (flags BadCom): bus unplugged", err.Error())
	require.ErrorIs(t, err, ErrCommunicationFault)
	require.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrProtocolFault)

	var fe *FaultError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "rotate", fe.Op)
}

func TestFaultError_NoCause(t *testing.T) {
	err := &FaultError{Kind: ErrRotationFailed}

	assert.Equal(t, "master: rotation failed", err.Error())
	assert.Equal(t, []error{ErrRotationFailed}, err.Unwrap())
}

func TestFaultKind(t *testing.T) {
	tests := []struct {
		flags protocol.ErrorFlags
		want  error
	}{
		{protocol.FlagBadCom, ErrCommunicationFault},
		{protocol.FlagBadCom | protocol.FlagParamCount, ErrCommunicationFault},
		{protocol.FlagParamCount, ErrProtocolFault},
		{protocol.FlagUnrecognizedCommand, ErrProtocolFault},
		{protocol.FlagRotationDirection, ErrProtocolFault},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, faultKind(tt.flags), tt.flags.String())
	}
}
