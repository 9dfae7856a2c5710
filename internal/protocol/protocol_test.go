package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coartistry-backend/internal/drawing"
)

func TestEncodeDecode(t *testing.T) {
	frame, err := Encode(EventColorChange, ColorChange{Color: "#ff0000", RoomID: "r1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"color-change","data":{"color":"#ff0000","roomId":"r1"}}`, string(frame))

	env, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, EventColorChange, env.Event)

	var cc ColorChange
	require.NoError(t, env.DecodeData(&cc))
	assert.Equal(t, "r1", cc.RoomID)
}

func TestDecodeMalformed(t *testing.T) {
	for _, frame := range []string{`not json`, `{"data":{}}`, `[]`} {
		_, err := Decode([]byte(frame))
		assert.ErrorIs(t, err, ErrMalformedFrame, frame)
	}

	env := Envelope{Event: EventJoinRoom}
	assert.ErrorIs(t, env.DecodeData(&JoinRoom{}), ErrMalformedFrame)
}

func TestEncodeRawKeepsPayloadBytes(t *testing.T) {
	payload := json.RawMessage(`{"type":"freehand","roomId":"r","points":[{"x":1,"y":1},{"x":2,"y":2}],"color":"#000"}`)
	frame, err := EncodeRaw(EventRemotePath, payload)
	require.NoError(t, err)

	env, err := Decode(frame)
	require.NoError(t, err)
	var op drawing.Operation
	require.NoError(t, env.DecodeData(&op))
	assert.Equal(t, drawing.KindFreehand, op.Type)
	assert.Len(t, op.Points, 2)
}

func TestCanvasStateEmptyPaths(t *testing.T) {
	frame, err := Encode(EventCanvasStateUpdate, CanvasState{RoomID: "r", Paths: drawing.CloneLog(nil)})
	require.NoError(t, err)
	assert.Contains(t, string(frame), `"paths":[]`)
}
