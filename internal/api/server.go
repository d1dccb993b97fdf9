// Package api serves the repository factory over HTTP.
//
// Routes:
//
//	GET  /healthz          liveness check
//	GET  /version          build information
//	GET  /v1/types         artifact types every session recognizes
//	POST /v1/descriptors   open a repository, read one descriptor, dispose
//
// Every POST /v1/descriptors request runs in its own resolution session,
// which is disposed before the response is written.
package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/extrepo/pkg/artifact"
	"github.com/matzehuels/extrepo/pkg/buildinfo"
	"github.com/matzehuels/extrepo/pkg/errors"
	"github.com/matzehuels/extrepo/pkg/maven"
	"github.com/matzehuels/extrepo/pkg/repository"
)

// maxBodySize caps request bodies.
const maxBodySize = 1 << 20

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

// DescriptorReader is implemented by engines that can read descriptors.
type DescriptorReader interface {
	ReadDescriptor(ctx context.Context, c maven.Coordinate) (*maven.Project, error)
	ArtifactPath(c maven.Coordinate) (string, error)
}

// Server is the HTTP API.
type Server struct {
	factory *repository.Factory
	types   *artifact.Registry
	logger  *log.Logger
	router  chi.Router
}

// New creates a Server. types is the registry reported by GET /v1/types.
func New(factory *repository.Factory, types *artifact.Registry, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{factory: factory, types: types, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.health)
	r.Get("/version", s.version)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/types", s.listTypes)
		r.Post("/descriptors", s.readDescriptor)
	})
	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("api listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

type versionResponse struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	Date    string `json:"date,omitempty"`
}

func (s *Server) version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, versionResponse{
		Version: buildinfo.Version,
		Commit:  buildinfo.Commit,
		Date:    buildinfo.Date,
	})
}

func (s *Server) listTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.types.Types())
}

// DescriptorRequest is the body of POST /v1/descriptors.
type DescriptorRequest struct {
	Repository repository.Descriptor `json:"repository"`
	Coordinate string                `json:"coordinate"`
}

// DescriptorResponse is returned by POST /v1/descriptors.
type DescriptorResponse struct {
	Session      string         `json:"session"`
	ArtifactPath string         `json:"artifact_path"`
	Project      *maven.Project `json:"project"`
}

type errorResponse struct {
	Code  errors.Code `json:"code"`
	Error string      `json:"error"`
}

func (s *Server) readDescriptor(w http.ResponseWriter, r *http.Request) {
	var req DescriptorRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid JSON"))
		return
	}
	resp, err := s.describe(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// describe reads one descriptor in a fresh session. The session is disposed
// when describe returns.
func (s *Server) describe(ctx context.Context, req DescriptorRequest) (DescriptorResponse, error) {
	coord, err := maven.ParseCoordinate(req.Coordinate)
	if err != nil {
		return DescriptorResponse{}, err
	}

	h, err := s.factory.Create(ctx, req.Repository)
	if err != nil {
		return DescriptorResponse{}, err
	}
	defer h.Close(ctx)

	reader, ok := h.Engine.(DescriptorReader)
	if !ok {
		return DescriptorResponse{}, errors.New(errors.ErrCodeUnsupported, "repository type %q cannot read descriptors", req.Repository.Type)
	}
	path, err := reader.ArtifactPath(coord)
	if err != nil {
		return DescriptorResponse{}, err
	}
	project, err := reader.ReadDescriptor(ctx, coord)
	if err != nil {
		return DescriptorResponse{}, err
	}
	return DescriptorResponse{Session: h.Session.ID, ArtifactPath: path, Project: project}, nil
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "err", err)
	}
	writeJSON(w, status, errorResponse{Code: errors.GetCode(err), Error: err.Error()})
}

// statusFor maps an error to an HTTP status. Repository creation errors are
// mapped by their cause.
func statusFor(err error) int {
	var rce *repository.RepositoryCreationError
	if stderrors.As(err, &rce) {
		err = rce.Cause
	}
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidDescriptor, errors.ErrCodeInvalidCoordinate,
		errors.ErrCodeInvalidPath, errors.ErrCodeUnsupported:
		return http.StatusBadRequest
	case errors.ErrCodeDescriptorMissing:
		return http.StatusNotFound
	case errors.ErrCodeDescriptorInvalid:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeNetwork, errors.ErrCodeDescriptorTooLarge:
		return http.StatusBadGateway
	case errors.ErrCodeSessionBuild, errors.ErrCodeStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).Round(time.Microsecond),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
