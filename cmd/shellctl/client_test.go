//go:build !windows

package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vx-labs/shellstream/shell"
	"go.uber.org/zap"
	"google.golang.org/grpc/health"
)

func newTestClient(t *testing.T) *client {
	table := shell.NewTable(context.Background(), nil)
	mux := http.NewServeMux()
	shell.NewServer(table, health.NewServer(), zap.NewNop()).Serve(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		server.Close()
		table.Close()
	})
	return newClient(server.URL + "/")
}

func TestClient(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c := newTestClient(t)

	info, err := c.Submit(ctx, "echo hello; exit 3")
	require.NoError(t, err)
	require.NotEmpty(t, info.ID)

	t.Run("should follow the process output", func(t *testing.T) {
		out, status := &bytes.Buffer{}, &bytes.Buffer{}
		require.NoError(t, c.Follow(ctx, info.ID, out, status))
		require.Equal(t, "hello\n", out.String())
		require.Equal(t, "Exited with exit code 3\n", status.String())
	})
	t.Run("should read the captured output", func(t *testing.T) {
		out := &bytes.Buffer{}
		require.NoError(t, c.Output(ctx, info.ID, out))
		require.Equal(t, "hello\n", out.String())
	})
	t.Run("should report the exit status", func(t *testing.T) {
		got, err := c.Get(ctx, info.ID)
		require.NoError(t, err)
		require.Equal(t, 3, exitCode(got))
		list, err := c.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
	})
	t.Run("should surface server errors", func(t *testing.T) {
		_, err := c.Submit(ctx, "")
		require.EqualError(t, err, "400 Bad Request: empty command")
		require.Error(t, c.Kill(ctx, "nope"))
	})
	t.Run("should remove finished processes", func(t *testing.T) {
		require.NoError(t, c.Remove(ctx, info.ID))
		_, err := c.Get(ctx, info.ID)
		require.EqualError(t, err, "404 Not Found: process not found")
	})
}
