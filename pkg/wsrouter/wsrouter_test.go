package wsrouter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greetPayload struct {
	Name string `json:"name"`
}

type recorder struct {
	mu       sync.Mutex
	names    []string
	types    []string
	errs     []error
	received chan struct{}
}

func (rec *recorder) add(f func()) {
	rec.mu.Lock()
	f()
	rec.mu.Unlock()
	rec.received <- struct{}{}
}

func newTestServer(t *testing.T, rec *recorder) *websocket.Conn {
	t.Helper()

	router := New()
	router.Use(func(next HandlerFunc[any]) HandlerFunc[any] {
		return func(ctx context.Context, conn *websocket.Conn, payload any) error {
			messageType := GetMessageTypeFromCtx(ctx)
			rec.mu.Lock()
			rec.types = append(rec.types, messageType)
			rec.mu.Unlock()
			return next(ctx, conn, payload)
		}
	})
	router.OnError(func(ctx context.Context, conn *websocket.Conn, err error) {
		rec.add(func() { rec.errs = append(rec.errs, err) })
	})
	Handle(router, "greet", func(ctx context.Context, conn *websocket.Conn, payload greetPayload) error {
		rec.add(func() { rec.names = append(rec.names, payload.Name) })
		return nil
	})

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = router.ServeConn(r.Context(), conn)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func waitReceived(t *testing.T, rec *recorder, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-rec.received:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for message")
		}
	}
}

func TestServeConn(t *testing.T) {
	rec := &recorder{received: make(chan struct{}, 10)}
	conn := newTestServer(t, rec)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"greet","payload":{"name":"alice"}}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"greet"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"unknown"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"greet","payload":{"name":1}}`)))

	waitReceived(t, rec, 5)

	rec.mu.Lock()
	defer rec.mu.Unlock()

	assert.Equal(t, []string{"alice", ""}, rec.names, "handlers run in arrival order")
	assert.Equal(t, []string{"greet", "greet", "greet"}, rec.types, "middleware sees routed messages only")
	require.Len(t, rec.errs, 3)
	assert.ErrorIs(t, rec.errs[0], ErrUnknownMessageType)
	assert.ErrorIs(t, rec.errs[1], ErrInvalidMessage)
	assert.ErrorIs(t, rec.errs[2], ErrInvalidPayload)
}
