//go:build !windows

package shell

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"github.com/vx-labs/shellstream/stream"
	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func newTestServer(t *testing.T) (*httptest.Server, *Table, *health.Server) {
	table := NewTable(context.Background(), nil)
	healthServer := health.NewServer()
	healthServer.SetServingStatus(HealthService, healthpb.HealthCheckResponse_SERVING)
	mux := http.NewServeMux()
	NewServer(table, healthServer, zap.NewNop()).Serve(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		server.Close()
		table.Close()
	})
	return server, table, healthServer
}

func get(t *testing.T, u string) (*http.Response, string) {
	resp, err := http.Get(u)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestServer_Shell(t *testing.T) {
	server, _, _ := newTestServer(t)

	t.Run("should stream the output and the exit code", func(t *testing.T) {
		resp, body := get(t, server.URL+"/shell?cmd="+url.QueryEscape("echo hello"))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "text/event-stream; charset=utf-8", resp.Header.Get("Content-Type"))
		require.Equal(t, "hello\n\n\nExited with exit code 0", body)
	})
	t.Run("should report a non-zero exit code", func(t *testing.T) {
		_, body := get(t, server.URL+"/shell?cmd="+url.QueryEscape("echo oops >&2; exit 2"))
		require.Equal(t, "oops\n\n\nExited with exit code 2", body)
	})
	t.Run("should reject a request without command", func(t *testing.T) {
		resp, _ := get(t, server.URL+"/shell")
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
	t.Run("should answer 404 on unknown paths", func(t *testing.T) {
		resp, _ := get(t, server.URL+"/nope")
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp, _ = get(t, server.URL+"/processes/nope")
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestServer_Processes(t *testing.T) {
	server, table, _ := newTestServer(t)

	resp, err := http.PostForm(server.URL+"/processes", url.Values{"cmd": []string{"printf 'a\\nb\\n'"}})
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	info := Info{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	require.NotEmpty(t, info.ID)
	process, err := table.Get(info.ID)
	require.NoError(t, err)

	t.Run("should replay the output from the beginning", func(t *testing.T) {
		waitDone(t, process)
		_, body := get(t, server.URL+"/processes/"+info.ID+"/output")
		require.Equal(t, "a\nb\n\n\nExited with exit code 0", body)
		_, body = get(t, server.URL+"/processes/"+info.ID+"/output?follow=false")
		require.Equal(t, "a\nb\n", body)
	})
	t.Run("should describe processes", func(t *testing.T) {
		resp, body := get(t, server.URL+"/processes/"+info.ID)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		out := Info{}
		require.NoError(t, json.Unmarshal([]byte(body), &out))
		require.False(t, out.Running)
		require.Equal(t, uint64(4), out.OutputBytes)
		require.Equal(t, stream.ExitCode(0), *out.Status)

		_, body = get(t, server.URL+"/processes")
		list := []Info{}
		require.NoError(t, json.Unmarshal([]byte(body), &list))
		require.Len(t, list, 1)
	})
	t.Run("should stream over websocket", func(t *testing.T) {
		wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/processes/" + info.ID + "/ws"
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		defer conn.Close()
		out := []byte{}
		for {
			kind, payload, err := conn.ReadMessage()
			require.NoError(t, err)
			if kind == websocket.TextMessage {
				require.Equal(t, "\n\nExited with exit code 0", string(payload))
				break
			}
			out = append(out, payload...)
		}
		require.Equal(t, "a\nb\n", string(out))
	})
	t.Run("should kill and remove processes", func(t *testing.T) {
		p, err := table.Submit("echo ready; sleep 10")
		require.NoError(t, err)
		waitStarted(t, p)

		req, _ := http.NewRequest(http.MethodDelete, server.URL+"/processes/"+p.ID(), nil)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusConflict, resp.StatusCode)

		resp, err = http.Post(server.URL+"/processes/"+p.ID()+"/kill", "", nil)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
		waitDone(t, p)

		resp, err = http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
	})
	t.Run("should refuse empty commands", func(t *testing.T) {
		resp, err := http.PostForm(server.URL+"/processes", url.Values{"cmd": []string{""}})
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestServer_Health(t *testing.T) {
	server, _, healthServer := newTestServer(t)
	resp, _ := get(t, server.URL+"/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	healthServer.SetServingStatus(HealthService, healthpb.HealthCheckResponse_NOT_SERVING)
	resp, _ = get(t, server.URL+"/health")
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
