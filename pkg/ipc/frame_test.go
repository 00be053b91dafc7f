package ipc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, ReqSnapshot, 42, []byte(`{"ok":true}`)))

	h, payload, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, Magic, h.Magic)
	assert.Equal(t, ReqSnapshot, h.Type)
	assert.Equal(t, uint32(42), h.Seq)
	assert.Equal(t, `{"ok":true}`, string(payload))
}

func TestFrameRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, ReqStatus, 1, nil))
	raw := buf.Bytes()
	raw[0] = 0

	_, _, err := ReadFrame(bytes.NewReader(raw))
	require.Error(t, err)
	fe, ok := err.(*FrameError)
	require.True(t, ok)
	assert.Equal(t, FrameErrorBadMagic, fe.Kind)
}

func TestFrameRejectsOversizedPayload(t *testing.T) {
	h := Header{Magic: Magic, Version: Version, Type: ReqSnapshot, Length: MaxPayload + 1, Seq: 1}
	buf := bytes.NewBuffer(EncodeHeader(h))

	_, _, err := ReadFrame(buf)
	require.Error(t, err)
	fe, ok := err.(*FrameError)
	require.True(t, ok)
	assert.Equal(t, FrameErrorTooLarge, fe.Kind)
}

func TestFrameMaxPayloadExactlySucceeds(t *testing.T) {
	payload := make([]byte, MaxPayload)
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, ReqSnapshot, 1, payload))

	_, got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Len(t, got, MaxPayload)
}
