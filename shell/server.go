package shell

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/vx-labs/shellstream/shell/stats"
	"github.com/vx-labs/shellstream/stream"
	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the service name reported by the health endpoint.
const HealthService = "http"

type Server struct {
	table    *Table
	health   *health.Server
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewServer(table *Table, healthServer *health.Server, logger *zap.Logger) *Server {
	return &Server{
		table:  table,
		health: healthServer,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// Serve registers the server routes on mux.
func (s *Server) Serve(mux *http.ServeMux) {
	mux.HandleFunc("GET /shell", s.handleShell)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /processes", s.handleSubmit)
	mux.HandleFunc("GET /processes", s.handleList)
	mux.HandleFunc("GET /processes/{id}", s.withProcess(s.handleGet))
	mux.HandleFunc("DELETE /processes/{id}", s.handleRemove)
	mux.HandleFunc("POST /processes/{id}/kill", s.handleKill)
	mux.HandleFunc("GET /processes/{id}/output", s.withProcess(s.handleOutput))
	mux.HandleFunc("GET /processes/{id}/ws", s.withProcess(s.handleWebsocket))
}

type apiError struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch errors.Cause(err) {
	case ErrProcessNotFound:
		code = http.StatusNotFound
	case ErrProcessRunning:
		code = http.StatusConflict
	case ErrEmptyCommand:
		code = http.StatusBadRequest
	case ErrTableClosed:
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, apiError{Error: err.Error()})
}

func (s *Server) withProcess(f func(http.ResponseWriter, *http.Request, *Process)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		process, err := s.table.Get(r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		f(w, r, process)
	}
}

// handleShell runs the cmd query parameter and streams its output until it
// terminates.
func (s *Server) handleShell(w http.ResponseWriter, r *http.Request) {
	values, ok := r.URL.Query()["cmd"]
	if !ok || len(values) == 0 {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "missing cmd query parameter"})
		return
	}
	process, err := s.table.Submit(values[0])
	if err != nil {
		writeError(w, err)
		return
	}
	s.streamOutput(w, r, process)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	process, err := s.table.Submit(r.FormValue("cmd"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, process.Info())
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.table.List())
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, process *Process) {
	writeJSON(w, http.StatusOK, process.Info())
}

func (s *Server) handleKill(w http.ResponseWriter, r *http.Request) {
	if err := s.table.Kill(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	if err := s.table.Remove(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleOutput streams a process output from its beginning. With
// follow=false, only the output captured so far is returned.
func (s *Server) handleOutput(w http.ResponseWriter, r *http.Request, process *Process) {
	if r.URL.Query().Get("follow") == "false" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(process.Snapshot())
		return
	}
	s.streamOutput(w, r, process)
}

func (s *Server) streamOutput(w http.ResponseWriter, r *http.Request, process *Process) {
	logger := s.logger.With(zap.String("process_id", process.ID()), zap.String("transport", "http"))
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}
	s.follow(r.Context(), "http", process, logger, func(_ context.Context, event stream.Event) error {
		var err error
		switch event.Kind {
		case stream.EventOutput:
			_, err = w.Write(event.Chunk)
		case stream.EventExited:
			_, err = io.WriteString(w, event.Status.Message())
		}
		if err == nil && flusher != nil {
			flusher.Flush()
		}
		return err
	})
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request, process *Process) {
	logger := s.logger.With(zap.String("process_id", process.ID()), zap.String("transport", "websocket"))
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()
	_, err = s.follow(ctx, "websocket", process, logger, func(_ context.Context, event stream.Event) error {
		switch event.Kind {
		case stream.EventOutput:
			return conn.WriteMessage(websocket.BinaryMessage, event.Chunk)
		case stream.EventExited:
			return conn.WriteMessage(websocket.TextMessage, []byte(event.Status.Message()))
		}
		return nil
	})
	if err == nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	}
}

// follow consumes the process output with processor until the exit status was
// processed, or ctx is cancelled.
func (s *Server) follow(ctx context.Context, transport string, process *Process, logger *zap.Logger, processor stream.Processor) (stream.ExitStatus, error) {
	started := time.Now()
	stats.Gauge("activeWatchers").Inc()
	defer stats.Gauge("activeWatchers").Dec()
	status, err := stream.Consume(ctx, process.Watch(), stream.PerformanceLogger(logger, processor))
	result := "drained"
	if err != nil {
		result = "interrupted"
		logger.Debug("output streaming interrupted", zap.Error(err))
	}
	stats.HistogramVec("watcherDuration").WithLabelValues(transport, result).Observe(stats.MilisecondsElapsed(started))
	return status, err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	out, err := s.health.Check(r.Context(), &healthpb.HealthCheckRequest{
		Service: HealthService,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	switch out.Status {
	case healthpb.HealthCheckResponse_SERVING:
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "passing", "msg":"service is running"}`))
	case healthpb.HealthCheckResponse_SERVICE_UNKNOWN:
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"status": "not_passing", "msg":"service unknown"}`))
	case healthpb.HealthCheckResponse_NOT_SERVING:
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"status": "warning", "msg":"service is not serving"}`))
	default:
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"status": "not_passing", "msg":"unknown failure"}`))
	}
}
