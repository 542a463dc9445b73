package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"skelrec/internal/api"
	"skelrec/internal/logging"
)

const (
	// defaultRecordingLimit caps /api/recordings when no limit is given.
	defaultRecordingLimit = 50
	apiShutdownTimeout    = 5 * time.Second
)

// apiServer is the optional read-only HTTP view of the daemon.
type apiServer struct {
	logger   *slog.Logger
	listener net.Listener
	server   *http.Server
	stopOnce sync.Once
}

// newAPIHandler routes the read-only endpoints. Only GET is accepted; the
// mux answers other methods with 405.
func newAPIHandler(d *Daemon, token string, logger *slog.Logger) http.Handler {
	h := apiHandlers{daemon: d, logger: logger}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", authMiddleware(token, h.status))
	mux.HandleFunc("GET /api/snapshot", authMiddleware(token, h.snapshot))
	mux.HandleFunc("GET /api/recordings", authMiddleware(token, h.recordings))
	return mux
}

// startAPIServer listens on bind and serves until ctx ends. An empty bind
// disables the API and returns nil.
func startAPIServer(ctx context.Context, bind, token string, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if bind == "" {
		return nil, nil
	}
	logger = logging.NewComponentLogger(logger, "api")
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return nil, fmt.Errorf("api listen on %s: %w", bind, err)
	}
	s := &apiServer{
		logger:   logger,
		listener: listener,
		server: &http.Server{
			Handler:           newAPIHandler(d, token, logger),
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       time.Minute,
			BaseContext:       func(net.Listener) context.Context { return ctx },
		},
	}
	go func() {
		err := s.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server stopped", logging.Error(err))
		}
	}()
	context.AfterFunc(ctx, s.stop)

	logger.Info("api server listening",
		logging.String(logging.FieldEventType, "api_listening"),
		logging.String("address", s.addr()),
		logging.Bool("auth", token != ""),
	)
	return s, nil
}

func (s *apiServer) addr() string {
	if s == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), apiShutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			s.logger.Warn("api shutdown incomplete", logging.Error(err))
		}
	})
}

type apiHandlers struct {
	daemon *Daemon
	logger *slog.Logger
}

func (h apiHandlers) status(w http.ResponseWriter, r *http.Request) {
	h.reply(w, http.StatusOK, h.daemon.Status(r.Context()))
}

func (h apiHandlers) snapshot(w http.ResponseWriter, _ *http.Request) {
	h.reply(w, http.StatusOK, h.daemon.Snapshot())
}

func (h apiHandlers) recordings(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecordingLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.reply(w, http.StatusBadRequest, apiError{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	recs, err := h.daemon.Recordings(r.Context(), limit)
	if err != nil {
		h.reply(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}
	h.reply(w, http.StatusOK, api.RecordingListResponse{Recordings: recs})
}

type apiError struct {
	Error string `json:"error"`
}

func (h apiHandlers) reply(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil && h.logger != nil {
		h.logger.Debug("api response write failed", logging.Error(err))
	}
}
