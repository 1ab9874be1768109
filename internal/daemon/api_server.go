package daemon

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"quill/internal/api"
	"quill/internal/config"
	"quill/internal/logging"
	"quill/internal/metrics"
	"quill/internal/services"
	"quill/internal/transcript"
)

const (
	// UserHeader carries the caller's user id. Backup operations compare it
	// with the transcription owner when present.
	UserHeader      = "X-Quill-User"
	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 16 << 20
)

type apiServer struct {
	bind     string
	token    []byte
	logger   *slog.Logger
	daemon   *Daemon
	metrics  *metrics.Metrics
	handler  http.Handler
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger, gatherer prometheus.Gatherer) *apiServer {
	srv := &apiServer{
		bind:    strings.TrimSpace(cfg.Paths.APIBind),
		token:   []byte(cfg.Paths.APIToken),
		logger:  logging.NewComponentLogger(logger, "api-server"),
		daemon:  d,
		metrics: d.app.Metrics,
	}

	mux := http.NewServeMux()
	route := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, srv.instrument(pattern, srv.requireToken(fn)))
	}

	route("GET /api/status", srv.handleStatus)

	route("POST /api/transcriptions/{id}/backups", srv.handleCreateBackup)
	route("GET /api/transcriptions/{id}/backups", srv.handleHistory)
	route("DELETE /api/transcriptions/{id}/backups", srv.handleCleanup)
	route("GET /api/backups/{id}", srv.handlePreview)
	route("POST /api/backups/{id}/restore", srv.handleRestore)

	route("GET /api/sessions/{media}", srv.handleSessionList)
	route("GET /api/sessions/{media}/{slot}", srv.handleSessionLoad)
	route("POST /api/sessions/{media}/{slot}", srv.handleSessionSave)
	route("GET /api/sessions/{media}/{slot}/backups", srv.handleSessionHistory)
	route("POST /api/sessions/{media}/{slot}/backups", srv.handleSessionBackup)
	route("POST /api/sessions/{media}/{slot}/backups/{file}/restore", srv.handleSessionRestore)

	if gatherer != nil {
		route("GET /metrics", metrics.Handler(gatherer).ServeHTTP)
	}

	srv.handler = mux
	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		s.logger.Info("api server disabled", logging.String(logging.FieldEventType, "api_disabled"))
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.listener == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	_ = s.listener.Close()
	s.listener = nil
}

func (s *apiServer) address() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument attaches the request id and caller to the context and counts
// the response by route pattern.
func (s *apiServer) instrument(pattern string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if rid == "" {
			rid = uuid.NewString()
		}
		ctx := services.WithRequestID(r.Context(), rid)
		ctx = services.WithOperation(ctx, pattern)
		if strings.Contains(pattern, "/api/transcriptions/") {
			ctx = services.WithTranscriptionID(ctx, r.PathValue("id"))
		}
		if user := strings.TrimSpace(r.Header.Get(UserHeader)); user != "" {
			ctx = services.WithUserID(ctx, user)
		}
		w.Header().Set(requestIDHeader, rid)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r.WithContext(ctx))
		s.metrics.HTTPRequests.WithLabelValues(pattern, strconv.Itoa(rec.status)).Inc()
		logging.WithContext(ctx, s.logger).Debug("api request",
			logging.Int("status", rec.status),
			logging.Duration("elapsed", time.Since(start)),
		)
	})
}

// requireToken checks "Authorization: Bearer <token>" when api_token is set.
// Rejections still pass through instrument and are counted as 401s.
func (s *apiServer) requireToken(next http.HandlerFunc) http.HandlerFunc {
	if len(s.token) == 0 {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if ok && subtle.ConstantTimeCompare([]byte(presented), s.token) == 1 {
			next(w, r)
			return
		}
		reason := "token mismatch"
		if !ok {
			reason = "missing bearer token"
		}
		logging.WithContext(r.Context(), s.logger).Debug("api request rejected",
			logging.String(logging.FieldEventType, "api_unauthorized"),
			logging.String("reason", reason),
			logging.String("remote", r.RemoteAddr),
		)
		w.Header().Set("WWW-Authenticate", `Bearer realm="quill"`)
		writeJSON(w, http.StatusUnauthorized, api.ErrorResponse{Error: "unauthorized", Kind: "unauthorized"})
	}
}

func callerID(r *http.Request) string {
	id, _ := services.UserIDFromContext(r.Context())
	return id
}

func (s *apiServer) decodeSnapshot(w http.ResponseWriter, r *http.Request) (transcript.Snapshot, error) {
	snap, err := api.DecodeSnapshot(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return transcript.Snapshot{}, services.Wrap(services.ErrValidation, "api", "decode", "invalid snapshot payload", err)
	}
	return snap, nil
}

func slotParam(r *http.Request) (int, error) {
	raw := r.PathValue("slot")
	slot, err := strconv.Atoi(raw)
	if err != nil || slot < 1 {
		return 0, services.Wrap(services.ErrValidation, "api", "slot", fmt.Sprintf("invalid transcription number %q", raw), nil)
	}
	return slot, nil
}

func intQuery(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "api", key, fmt.Sprintf("invalid %s %q", key, raw), nil)
	}
	return value, nil
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	payload := api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		DatabasePath: status.DatabasePath,
		DataDir:      status.DataDir,
		LockFilePath: status.LockFilePath,
	}
	if status.Stats != nil {
		payload.Stats = api.FromStats(*status.Stats)
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleCreateBackup(w http.ResponseWriter, r *http.Request) {
	snap, err := s.decodeSnapshot(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	b, err := s.daemon.app.Versions.CreateVersion(r.Context(), callerID(r), r.PathValue("id"), snap)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.BackupResponse{Backup: api.FromBackup(b)})
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id := r.PathValue("id")
	backups, err := s.daemon.app.Versions.History(r.Context(), callerID(r), id, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.BackupListResponse{TranscriptionID: id, Backups: api.FromBackups(backups)})
}

func (s *apiServer) handleCleanup(w http.ResponseWriter, r *http.Request) {
	keep, err := intQuery(r, "keep", -1)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id := r.PathValue("id")
	result, err := s.daemon.app.Versions.Cleanup(r.Context(), callerID(r), id, keep)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if keep < 0 {
		keep = s.daemon.cfg.Backups.KeepCount
	}
	writeJSON(w, http.StatusOK, api.FromCleanup(id, keep, result))
}

func (s *apiServer) handlePreview(w http.ResponseWriter, r *http.Request) {
	p, err := s.daemon.app.Versions.Preview(r.Context(), callerID(r), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.PreviewResponse{Backup: api.FromBackup(p.Backup), Content: api.FromSnapshot(p.Snapshot)})
}

func (s *apiServer) handleRestore(w http.ResponseWriter, r *http.Request) {
	p, err := s.daemon.app.Versions.Restore(r.Context(), callerID(r), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.PreviewResponse{Backup: api.FromBackup(p.Backup), Content: api.FromSnapshot(p.Snapshot)})
}

func (s *apiServer) handleSessionList(w http.ResponseWriter, r *http.Request) {
	media := r.PathValue("media")
	slots, err := s.daemon.app.Sessions.List(r.Context(), media)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromSlots(media, slots))
}

func (s *apiServer) handleSessionLoad(w http.ResponseWriter, r *http.Request) {
	slot, err := slotParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	media := r.PathValue("media")
	snap, err := s.daemon.app.Sessions.Load(r.Context(), media, slot)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.SessionResponse{MediaID: media, TranscriptionNumber: slot, Content: api.FromSnapshot(snap)})
}

func (s *apiServer) handleSessionSave(w http.ResponseWriter, r *http.Request) {
	slot, err := slotParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := s.decodeSnapshot(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	meta, err := s.daemon.app.Sessions.Save(r.Context(), r.PathValue("media"), slot, snap)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromSessionMetadata(meta))
}

func (s *apiServer) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	slot, err := slotParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	media := r.PathValue("media")
	files, err := s.daemon.app.Sessions.History(r.Context(), media, slot)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.SessionHistoryResponse{
		MediaID:             media,
		TranscriptionNumber: slot,
		Backups:             api.FromTrailFiles(files),
	})
}

func (s *apiServer) handleSessionBackup(w http.ResponseWriter, r *http.Request) {
	slot, err := slotParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := s.decodeSnapshot(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	file, err := s.daemon.app.Sessions.Backup(r.Context(), r.PathValue("media"), slot, snap)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.FromTrailFile(file))
}

func (s *apiServer) handleSessionRestore(w http.ResponseWriter, r *http.Request) {
	slot, err := slotParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	media := r.PathValue("media")
	snap, err := s.daemon.app.Sessions.Restore(r.Context(), media, slot, r.PathValue("file"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.SessionResponse{MediaID: media, TranscriptionNumber: slot, Content: api.FromSnapshot(snap)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := services.HTTPStatus(err)
	kind := services.Classify(err)
	logger := logging.WithContext(r.Context(), s.logger)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logger, "api request failed", "api_request_failed",
			logging.Error(err),
			logging.String("route", r.Pattern),
		)
	} else {
		logger.Debug("api request rejected",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, kind),
			logging.String("route", r.Pattern),
		)
	}
	writeJSON(w, status, api.ErrorResponse{Error: err.Error(), Kind: kind})
}
