package server

import (
	"bufio"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rsoares/xadrez/internal/protocol"
)

func TestRouterDispatchesRegisteredHandler(t *testing.T) {
	r := NewRouter(zaptest.NewLogger(t))
	sess, _ := newPipeSession(t)

	var gotType string
	r.Register("ping", func(_ context.Context, s *Session, env protocol.Envelope) error {
		gotType = env.Type
		assert.Same(t, sess, s)
		return nil
	})

	env, err := protocol.Decode([]byte(`{"type":"ping"}`))
	require.NoError(t, err)

	r.Dispatch(context.Background(), sess, env)
	assert.Equal(t, "ping", gotType)
}

func TestRouterUnknownTypeRepliesErrorAndKeepsConnection(t *testing.T) {
	r := NewRouter(zaptest.NewLogger(t))
	sess, peer := newPipeSession(t)

	lineCh := make(chan string, 1)
	go func() {
		reader := bufio.NewReader(peer)
		_ = peer.SetReadDeadline(time.Now().Add(2 * time.Second))
		line, err := reader.ReadString('\n')
		if err == nil {
			lineCh <- line
		}
		close(lineCh)
	}()

	env, err := protocol.Decode([]byte(`{"type":"teleport"}`))
	require.NoError(t, err)
	r.Dispatch(context.Background(), sess, env)

	line, ok := <-lineCh
	require.True(t, ok, "expected an error reply")

	var reply protocol.Error
	require.NoError(t, json.Unmarshal([]byte(line), &reply))
	assert.Equal(t, protocol.TypeError, reply.Type)
	assert.Contains(t, reply.Message, "teleport")

	// The session is still usable
	select {
	case <-sess.Done():
		t.Fatal("session closed on unknown message type")
	default:
	}
}

func TestRouterHandlerErrorDoesNotCloseSession(t *testing.T) {
	r := NewRouter(zaptest.NewLogger(t))
	sess, _ := newPipeSession(t)

	r.Register("boom", func(context.Context, *Session, protocol.Envelope) error {
		return assert.AnError
	})

	env, err := protocol.Decode([]byte(`{"type":"boom"}`))
	require.NoError(t, err)
	r.Dispatch(context.Background(), sess, env)

	select {
	case <-sess.Done():
		t.Fatal("session closed on handler error")
	default:
	}
}
