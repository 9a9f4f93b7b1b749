package errors

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_NewCustomError(t *testing.T) {
	err := New(ERR_NOT_FOUND, "resource not found")
	require.NotNil(t, err)
	require.Equal(t, ERR_NOT_FOUND, err.Code())
	require.Equal(t, "resource not found", err.Message())

	secondErr := New(ERR_INVALID_ARGUMENT, "[readMessage][%s] bad payload: ", "peer-1", err)
	thirdErr := New(ERR_WIRE_CHECKSUM, "[readMessage][%s] bad checksum: ", "peer-1", secondErr)
	anotherErr := New(ERR_WIRE_CHECKSUM, "another checksum failure")
	fourthErr := New(ERR_SERVICE_ERROR, "older error: ", thirdErr)
	fifthErr := New(ERR_NETWORK_DISCONNECTED, "peer dropped", fourthErr)

	require.True(t, anotherErr.Is(thirdErr))
	require.True(t, fourthErr.Is(New(ERR_WIRE_CHECKSUM, "")))
	require.True(t, fourthErr.Is(ErrWireChecksum))

	require.True(t, fourthErr.Is(err))
	require.True(t, fifthErr.Is(thirdErr))
	require.True(t, fifthErr.Is(err))

	require.False(t, anotherErr.Is(fourthErr))
	require.False(t, fifthErr.Is(ErrBlockNotFound))
}

func Test_FmtErrorCustomError(t *testing.T) {
	err := New(ERR_NOT_FOUND, "resource not found")

	fmtError := fmt.Errorf("error: %w", err)
	secondErr := New(ERR_INVALID_ARGUMENT, "[handleInv][%s] failed: ", "peer-1", fmtError)

	// a fmt-wrapped error breaks the *Error chain
	require.False(t, secondErr.Is(err))

	altErr := New(ERR_INVALID_ARGUMENT, "invalid argument", err)
	require.True(t, secondErr.Is(altErr))
}

func Test_NewFormatsParams(t *testing.T) {
	err := New(ERR_PROTOCOL_VIOLATION, "unexpected %s from %s", "verack", "peer-7")
	assert.Equal(t, "unexpected verack from peer-7", err.Message())
	assert.Nil(t, err.WrappedErr())

	wrapped := New(ERR_NETWORK_ERROR, "read failed for %s", "peer-7", io.EOF)
	assert.Equal(t, "read failed for peer-7", wrapped.Message())
	assert.Equal(t, io.EOF, wrapped.Unwrap())
	assert.True(t, errors.Is(wrapped, io.EOF))
}

func Test_InvalidCode(t *testing.T) {
	err := New(ERR(9999), "whatever")
	assert.Equal(t, "invalid error code", err.Message())
	assert.Equal(t, "UNKNOWN", ERR(9999).String())
	assert.Equal(t, "CHECKPOINT_MISMATCH", ERR_CHECKPOINT_MISMATCH.String())
}

func Test_ErrorString(t *testing.T) {
	err := New(ERR_SELF_CONNECTION, "nonce collision")
	assert.Equal(t, "Error: SELF_CONNECTION (error code: 124), Message: nonce collision", err.Error())

	var nilErr *Error
	assert.Equal(t, "<nil>", nilErr.Error())
	assert.Equal(t, ERR_UNKNOWN, nilErr.Code())
}

func Test_As(t *testing.T) {
	inner := NewCheckpointMismatchError("header hash mismatch")
	outer := fmt.Errorf("verify: %w", inner)

	var tErr *Error
	require.True(t, As(outer, &tErr))
	assert.Equal(t, ERR_CHECKPOINT_MISMATCH, tErr.Code())
	assert.Equal(t, ERR_CHECKPOINT_MISMATCH, CodeOf(outer))
	assert.Equal(t, ERR_UNKNOWN, CodeOf(io.EOF))
}

func Test_IsSentinel(t *testing.T) {
	err := NewNetworkConnectionRefusedError("[%s] dial failed", "127.0.0.1:18444", io.EOF)

	assert.True(t, Is(err, ErrNetworkConnectionRefused))
	assert.True(t, Is(fmt.Errorf("connect: %w", err), ErrNetworkConnectionRefused))
	assert.False(t, Is(err, ErrNetworkTimeout))
}

func Test_SetData(t *testing.T) {
	err := New(ERR_REQUEST_PENDING, "getheaders outstanding")
	err.SetData("command", "getheaders")

	assert.Equal(t, "getheaders", err.GetData("command"))
	assert.Contains(t, err.Error(), "getheaders")
	assert.JSONEq(t, `{"command":"getheaders"}`, string(err.Data().EncodeErrorData()))
}

func Test_Join(t *testing.T) {
	assert.Nil(t, Join(nil, nil))

	joined := Join(ErrWireFormat, nil, ErrWireChecksum)
	require.Error(t, joined)
	assert.Contains(t, joined.Error(), "malformed message")
	assert.Contains(t, joined.Error(), "checksum mismatch")
}
