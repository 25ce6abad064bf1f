package websocket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTextBytes_RejectsInvalidUTF8(t *testing.T) {
	_, err := NewTextBytes([]byte{0xff, 0xfe, 0xfd})
	require.ErrorIs(t, err, ErrInvalidUTF8)
}

func TestNewTextBytes_AcceptsValidUTF8(t *testing.T) {
	text, err := NewTextBytes([]byte("héllo"))
	require.NoError(t, err)
	assert.Equal(t, "héllo", text.String())
	assert.Equal(t, len([]byte("héllo")), text.Len())
}

func TestMessage_KindDispatch(t *testing.T) {
	tm := NewTextMessage(NewText("hi"))
	assert.Equal(t, KindText, tm.Kind())
	txt, ok := tm.Text()
	require.True(t, ok)
	assert.Equal(t, "hi", txt.String())
	_, ok = tm.Binary()
	assert.False(t, ok)

	bm := NewBinaryMessage(NewBinary([]byte{1, 2, 3}))
	assert.Equal(t, KindBinary, bm.Kind())
	bin, ok := bm.Binary()
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, bin.Bytes())
	assert.Equal(t, 3, bm.Len())
}

func TestParseStatusCode_ClosedSet(t *testing.T) {
	tests := []struct {
		raw   uint16
		valid bool
	}{
		{1000, true},
		{1001, true},
		{1002, true},
		{1003, true},
		{1007, true},
		{1008, true},
		{1009, true},
		{1011, true},
		{1005, false}, // reserved, never on the wire
		{1006, false}, // reserved, never on the wire
		{1004, false},
		{9999, false},
	}

	for _, tt := range tests {
		_, ok := parseStatusCode(tt.raw)
		assert.Equalf(t, tt.valid, ok, "status code %d", tt.raw)
	}
}
