package wsconn

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/edge-tts/internal/xerrors"
)

var upgrader = websocket.Upgrader{}

func TestDial_SuccessfulHandshake(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, err := Dial(context.Background(), DialOptions{URL: wsURL, ConnectTimeout: time.Second})
	require.NoError(t, err)
	defer conn.Close()

	err = conn.WriteText([]byte("hello"))
	assert.NoError(t, err)
}

func TestDial_ForbiddenIsDRMError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Date", time.Now().UTC().Format(time.RFC1123))
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, err := Dial(context.Background(), DialOptions{URL: wsURL, ConnectTimeout: time.Second})
	require.Error(t, err)

	var drmErr *DRMError
	require.ErrorAs(t, err, &drmErr)
	assert.Equal(t, http.StatusForbidden, drmErr.Response.StatusCode)
	assert.ErrorIs(t, err, xerrors.ErrDRM)
}

func TestDial_UnreachableHostIsWebSocketError(t *testing.T) {
	_, err := Dial(context.Background(), DialOptions{URL: "ws://127.0.0.1:1", ConnectTimeout: 200 * time.Millisecond})
	require.Error(t, err)
	assert.ErrorIs(t, err, xerrors.ErrWebSocket)
}

func TestReadFrame_RoundTripsTextMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte("echo"))
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, err := Dial(context.Background(), DialOptions{URL: wsURL, ConnectTimeout: time.Second, ReceiveTimeout: time.Second})
	require.NoError(t, err)
	defer conn.Close()

	mt, data, err := conn.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, TextMessage, mt)
	assert.Equal(t, "echo", string(data))
}

func TestWatchContext_ClosesConnOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, err := Dial(context.Background(), DialOptions{URL: wsURL, ConnectTimeout: time.Second, ReceiveTimeout: 5 * time.Second})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	conn.WatchContext(ctx)
	cancel()

	time.Sleep(50 * time.Millisecond)
	_, _, err = conn.ReadFrame()
	assert.Error(t, err)
}
