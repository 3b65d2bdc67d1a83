package ws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sketchmon/arena/game/arena"
	mw "github.com/sketchmon/arena/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testSession() *Session {
	return newSession(1, 7, nil, zap.NewNop())
}

func makePacket(t *testing.T, seq uint64, msgType string, payload interface{}) []byte {
	t.Helper()
	p, _ := json.Marshal(payload)
	b, err := json.Marshal(Packet{Seq: seq, Type: msgType, Payload: p})
	require.NoError(t, err)
	return b
}

// sent pops the next queued packet.
func sent(t *testing.T, s *Session) Packet {
	t.Helper()
	select {
	case data := <-s.sendChan:
		var pkt Packet
		require.NoError(t, json.Unmarshal(data, &pkt))
		return pkt
	default:
		t.Fatal("no packet queued")
		return Packet{}
	}
}

func TestRouter_Dispatch(t *testing.T) {
	r := NewRouter(zap.NewNop())
	var got map[string]interface{}
	r.On("data", func(_ context.Context, _ *Session, raw json.RawMessage) error {
		return json.Unmarshal(raw, &got)
	})
	r.Dispatch(context.Background(), testSession(), makePacket(t, 1, "data", map[string]string{"key": "value"}))
	assert.Equal(t, "value", got["key"])
}

func TestRouter_MalformedAndUnknown(t *testing.T) {
	r := NewRouter(zap.NewNop())
	s := testSession()

	r.Dispatch(context.Background(), s, []byte("not json"))
	assert.Equal(t, "error", sent(t, s).Type)

	r.Dispatch(context.Background(), s, makePacket(t, 1, "dance", nil))
	pkt := sent(t, s)
	assert.Equal(t, "error", pkt.Type)
	assert.Contains(t, string(pkt.Payload), "dance")
}

func TestRouter_AntiReplay(t *testing.T) {
	r := NewRouter(zap.NewNop())
	calls := 0
	r.On("msg", func(context.Context, *Session, json.RawMessage) error {
		calls++
		return nil
	})
	s := testSession()
	ctx := context.Background()

	r.Dispatch(ctx, s, makePacket(t, 5, "msg", nil))
	r.Dispatch(ctx, s, makePacket(t, 5, "msg", nil))
	r.Dispatch(ctx, s, makePacket(t, 3, "msg", nil))
	assert.Equal(t, 1, calls)

	r.Dispatch(ctx, s, makePacket(t, 6, "msg", nil))
	assert.Equal(t, 2, calls)
	assert.EqualValues(t, 6, s.LastSeq)

	// Seq 0 skips tracking entirely.
	r.Dispatch(ctx, s, makePacket(t, 0, "msg", nil))
	r.Dispatch(ctx, s, makePacket(t, 0, "msg", nil))
	assert.Equal(t, 4, calls)
}

func TestRouter_TraceID(t *testing.T) {
	r := NewRouter(zap.NewNop())
	var traceID string
	r.On("trace", func(ctx context.Context, _ *Session, _ json.RawMessage) error {
		traceID = mw.TraceIDFrom(ctx)
		return nil
	})
	s := testSession()
	r.Dispatch(context.Background(), s, makePacket(t, 1, "trace", nil))
	assert.NotEmpty(t, traceID)
	assert.Equal(t, s.TraceID, traceID)
}

func TestRouter_HandlerErrorIsReported(t *testing.T) {
	r := NewRouter(zap.NewNop())
	r.OnError(clientMessage)
	r.On("move", func(context.Context, *Session, json.RawMessage) error {
		return arena.ErrBattleOver
	})
	r.On("boom", func(context.Context, *Session, json.RawMessage) error {
		return errors.New("db exploded")
	})
	s := testSession()

	r.Dispatch(context.Background(), s, makePacket(t, 1, "move", nil))
	var payload errorPayload
	pkt := sent(t, s)
	require.NoError(t, json.Unmarshal(pkt.Payload, &payload))
	assert.Equal(t, arena.ErrBattleOver.Error(), payload.Error)
	assert.Equal(t, "move", payload.Type)
	assert.EqualValues(t, 1, payload.Seq)

	r.Dispatch(context.Background(), s, makePacket(t, 2, "boom", nil))
	require.NoError(t, json.Unmarshal(sent(t, s).Payload, &payload))
	assert.Equal(t, "internal error", payload.Error, "internal errors are not leaked")
}

func TestSession_SendAfterClose(t *testing.T) {
	s := testSession()
	s.Close()
	s.Close()
	assert.True(t, s.IsClosed())
	s.Send("pong", struct{}{})
	assert.Empty(t, s.sendChan)
}
