package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeHTTP_CleanupFinishesBeforeReturn(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	})}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	var cleaned atomic.Bool
	done := make(chan error, 1)
	go func() {
		done <- serveHTTP(ctx, srv, ln, log, func() {
			// A slow cleanup must still complete before serveHTTP returns.
			time.Sleep(50 * time.Millisecond)
			cleaned.Store(true)
		})
	}()

	resp, err := http.Get("http://" + ln.Addr().String())
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
		assert.True(t, cleaned.Load())
	case <-time.After(5 * time.Second):
		t.Fatal("serveHTTP did not return after cancel")
	}
}

func TestServeHTTP_ListenerFailureStillCleansUp(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ln.Close()

	var cleaned atomic.Bool
	err = serveHTTP(context.Background(), &http.Server{}, ln, slog.New(slog.NewTextHandler(io.Discard, nil)), func() {
		cleaned.Store(true)
	})
	require.Error(t, err)
	assert.True(t, cleaned.Load())
}
