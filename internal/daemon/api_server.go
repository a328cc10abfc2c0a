package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"mediaflow/internal/api"
	"mediaflow/internal/config"
	"mediaflow/internal/ingress"
	"mediaflow/internal/logging"
	"mediaflow/internal/services"
)

const (
	maxJSONBodyBytes = 64 << 10
	multipartMemory  = 8 << 20
	// multipartOverhead leaves room for headers and the metadata part on top
	// of the configured file limit.
	multipartOverhead = 1 << 20
)

type apiServer struct {
	bind     string
	logger   *slog.Logger
	daemon   *Daemon
	handler  http.Handler
	maxBytes int64
	backend  string

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:     strings.TrimSpace(cfg.Server.Bind),
		logger:   logging.NewComponentLogger(logger, "api-server"),
		daemon:   d,
		maxBytes: cfg.MaxUploadBytes(),
		backend:  cfg.Storage.Backend,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", srv.handleHealth)
	mux.HandleFunc("GET /api/status", srv.authMiddleware(srv.handleStatus))
	mux.HandleFunc("GET /api/me", srv.authMiddleware(srv.handleMe))
	mux.HandleFunc("POST /api/videos", srv.authMiddleware(srv.handleSubmit))
	mux.HandleFunc("GET /api/videos", srv.authMiddleware(srv.handleListVideos))
	mux.HandleFunc("GET /api/videos/{id}", srv.authMiddleware(srv.handleGetVideo))
	mux.HandleFunc("DELETE /api/videos/{id}", srv.authMiddleware(srv.handleDeleteVideo))
	mux.HandleFunc("GET /api/videos/{id}/stream", srv.authMiddleware(srv.handleStream))
	mux.HandleFunc("GET /api/events", srv.authMiddleware(srv.handleEvents))
	mux.HandleFunc("GET /api/users", srv.authMiddleware(srv.handleListUsers))
	mux.HandleFunc("PATCH /api/users/{id}/role", srv.authMiddleware(srv.handleChangeRole))
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		srv.writeError(w, r, services.Wrap(services.ErrNotFound, "api", "route", "no such endpoint", nil))
	})

	srv.handler = logging.HTTPMiddleware(srv.logger, mux)
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		// Uploads and event streams run long; per-request deadlines are set
		// by the handlers that need them.
		IdleTimeout: 60 * time.Second,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		_ = server.Close()
	}
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	p := principalFromContext(r.Context())
	status := s.daemon.Status(r.Context(), p.Organization)
	deps := make([]api.DependencyStatus, len(status.Dependencies))
	for i, dep := range status.Dependencies {
		deps[i] = api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:        status.Running,
		PID:            status.PID,
		DatabaseDriver: status.Database.Driver,
		DatabasePath:   status.Database.Path,
		LockFilePath:   status.LockFilePath,
		StorageBackend: s.backend,
		Database:       status.Database,
		Workflow:       status.Workflow,
		Dependencies:   deps,
	})
}

func (s *apiServer) handleMe(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, api.UserResponse{User: api.FromUser(userFromContext(r.Context()))})
}

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if s.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes+multipartOverhead)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeStatus(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds the %d byte limit", s.maxBytes))
			return
		}
		s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "submit", "expected a multipart form", err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("video")
	if err != nil {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "submit", "missing \"video\" file part", nil))
		return
	}
	defer file.Close()

	upload := ingress.File{
		Name:     header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Content:  file,
	}
	if raw := strings.TrimSpace(r.FormValue("metadata")); raw != "" {
		var meta api.SubmitMetadata
		if err := decodeValidated(submitMetadataSchema, []byte(raw), &meta); err != nil {
			s.writeError(w, r, err)
			return
		}
		if meta.OriginalName != "" {
			upload.Name = meta.OriginalName
		}
		if meta.MimeType != "" {
			upload.MimeType = meta.MimeType
		}
	}

	job, err := s.daemon.services.Gateway.Submit(r.Context(), principalFromContext(r.Context()), upload)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/videos/"+job.ID)
	s.writeJSON(w, http.StatusCreated, api.VideoResponse{Video: api.FromJob(job)})
}

func (s *apiServer) handleListVideos(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	opts := api.ListOptions{
		Status:      query.Get("status"),
		Sensitivity: query.Get("sensitivityStatus"),
		Search:      query.Get("search"),
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := parsePositiveInt(raw)
		if err != nil {
			s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "list", "limit must be a positive integer", nil))
			return
		}
		opts.Limit = limit
	}
	list, err := s.daemon.services.Jobs.List(r.Context(), principalFromContext(r.Context()), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	videos := api.FromJobs(list)
	s.writeJSON(w, http.StatusOK, api.VideoListResponse{Videos: videos, Count: len(videos)})
}

func (s *apiServer) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	job, err := s.daemon.services.Jobs.Get(r.Context(), principalFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.VideoResponse{Video: api.FromJob(job)})
}

func (s *apiServer) handleDeleteVideo(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.services.Jobs.Delete(r.Context(), principalFromContext(r.Context()), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	location, err := s.daemon.services.Jobs.StreamURL(r.Context(), principalFromContext(r.Context()), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if r.URL.Query().Get("format") == "json" {
		target := location.URL
		if target == "" {
			target = api.StreamPath(id)
		}
		s.writeJSON(w, http.StatusOK, api.StreamResponse{URL: target})
		return
	}
	if location.URL != "" {
		http.Redirect(w, r, location.URL, http.StatusTemporaryRedirect)
		return
	}
	http.ServeFile(w, r, location.Path)
}

func (s *apiServer) handleListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := s.daemon.services.Users.List(r.Context(), principalFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.UserListResponse{Users: api.FromUsers(list)})
}

func (s *apiServer) handleChangeRole(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	if err != nil {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "change role", "request body too large", nil))
		return
	}
	var req api.RoleChangeRequest
	if err := decodeValidated(roleChangeSchema, body, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	user, err := s.daemon.services.Users.ChangeRole(r.Context(), principalFromContext(r.Context()), r.PathValue("id"), req.Role)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.UserResponse{User: api.FromUser(user)})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

// writeError answers with the status mapped from err. Internal failures are
// logged with their detail and reported generically.
func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := services.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "request failed", "api_request_failed",
			logging.Error(err),
			logging.String("path", r.URL.Path),
			logging.String(logging.FieldErrorHint, "inspect the daemon log for the underlying failure"),
		)
	}
	s.writeStatus(w, status, services.PublicMessage(err))
}

func (s *apiServer) writeStatus(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}
