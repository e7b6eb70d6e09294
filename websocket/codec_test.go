package websocket

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeFrameRoundTrip(t *testing.T) {
	cases := []Frame{
		{FIN: true, Opcode: OpText, Payload: []byte("hello")},
		{FIN: true, Opcode: OpBinary, Payload: bytes.Repeat([]byte{0xAB}, 200)},
		{FIN: true, Opcode: OpBinary, Payload: bytes.Repeat([]byte{0x01}, 70000)},
		{FIN: false, Opcode: OpText, Payload: []byte("frag")},
		{FIN: true, Opcode: OpPing, Payload: []byte("p")},
	}
	for _, f := range cases {
		buf, err := EncodeFrame(nil, f)
		require.NoError(t, err)
		got, n, ok, err := DecodeFrame(buf)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, len(buf), n)
		require.Equal(t, f.FIN, got.FIN)
		require.Equal(t, f.Opcode, got.Opcode)
		require.Equal(t, f.Payload, got.Payload)
	}
}

func TestEncodeFrameUsesDistinctMaskKeys(t *testing.T) {
	f := Frame{FIN: true, Opcode: OpText, Payload: []byte("same payload")}
	a, err := EncodeFrame(nil, f)
	require.NoError(t, err)
	b, err := EncodeFrame(nil, f)
	require.NoError(t, err)
	// identical plaintext must not produce identical wire bytes — the
	// mask key is freshly randomized per frame, unlike the teacher's
	// hardcoded key.
	require.NotEqual(t, a, b)
}

func TestEncodeFrameRejectsOversizedControlPayload(t *testing.T) {
	_, err := EncodeFrame(nil, Frame{FIN: true, Opcode: OpPing, Payload: make([]byte, 126)})
	require.Error(t, err)
}

func TestDecodeFrameIncompleteReturnsNotOK(t *testing.T) {
	buf, err := EncodeFrame(nil, Frame{FIN: true, Opcode: OpText, Payload: []byte("hello")})
	require.NoError(t, err)
	_, _, ok, err := DecodeFrame(buf[:len(buf)-1])
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDecodeFrameRejectsNonzeroRSV(t *testing.T) {
	buf := []byte{0x80 | 0x40, 0x00} // FIN + RSV1 set, opcode 0 (continuation), zero length
	_, _, _, err := DecodeFrame(buf)
	require.Error(t, err)
}

func TestDecodeFrameRejectsUnknownOpcode(t *testing.T) {
	buf := []byte{0x83, 0x00} // FIN + opcode 0x3 (reserved)
	_, _, _, err := DecodeFrame(buf)
	require.Error(t, err)
}

func TestDecodeFrameRejectsFragmentedControlFrame(t *testing.T) {
	buf := []byte{0x09, 0x00} // opcode Ping, FIN not set
	_, _, _, err := DecodeFrame(buf)
	require.Error(t, err)
}
