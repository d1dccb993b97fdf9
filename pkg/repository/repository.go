// Package repository is the entry point for opening extension repositories.
//
// A [Factory] turns a caller-supplied [Descriptor] into a [Handle]: it builds
// a fresh resolution session, instantiates a resolution engine bound to that
// session and hands both back together. Closing the handle disposes the
// session.
//
//	f := repository.NewFactory(builder, builder.Disposer(), engines)
//	h, err := f.Create(ctx, repository.Descriptor{
//	    ID:   "central",
//	    Type: "maven",
//	    URI:  "https://repo.maven.apache.org/maven2",
//	})
//	if err != nil {
//	    return err // *RepositoryCreationError
//	}
//	defer h.Close(ctx)
//
// Every creation failure, whatever its origin, is reported as a
// [*RepositoryCreationError] naming the descriptor.
package repository

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/extrepo/pkg/errors"
	"github.com/matzehuels/extrepo/pkg/session"
)

// Descriptor identifies a remote repository. It is supplied by the caller
// and treated as an immutable value.
type Descriptor struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	URI        string            `json:"uri"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Validate checks the descriptor fields. Failures are INVALID_DESCRIPTOR.
func (d Descriptor) Validate() error {
	if err := errors.ValidateRepositoryID(d.ID); err != nil {
		return err
	}
	if d.Type == "" {
		return errors.New(errors.ErrCodeInvalidDescriptor, "repository type cannot be empty")
	}
	return errors.ValidateURL(d.URI)
}

// Property returns a descriptor property.
func (d Descriptor) Property(key string) (string, bool) {
	v, ok := d.Properties[key]
	return v, ok
}

// String renders the descriptor as "id (type) uri" for messages.
func (d Descriptor) String() string {
	return fmt.Sprintf("%s (%s) %s", d.ID, d.Type, d.URI)
}

func (d Descriptor) clone() Descriptor {
	d.Properties = maps.Clone(d.Properties)
	return d
}

// RepositoryCreationError reports that a repository could not be opened.
// Descriptor names the repository; Cause is the underlying failure (invalid
// descriptor, session build, or engine instantiation).
type RepositoryCreationError struct {
	Descriptor Descriptor
	Cause      error
}

func (e *RepositoryCreationError) Error() string {
	return fmt.Sprintf("%s: failed to create repository [%s]: %v", errors.ErrCodeRepositoryCreation, e.Descriptor, e.Cause)
}

func (e *RepositoryCreationError) Unwrap() error { return e.Cause }

// Code returns REPOSITORY_CREATION_ERROR.
func (e *RepositoryCreationError) Code() errors.Code { return errors.ErrCodeRepositoryCreation }

// Engine is a resolution engine bound to one session.
type Engine interface {
	Session() *session.Session
}

// EngineFactory instantiates an engine for a descriptor within a session.
type EngineFactory interface {
	NewEngine(ctx context.Context, d Descriptor, s *session.Session) (Engine, error)
}

// EngineFactoryFunc adapts a function to EngineFactory.
type EngineFactoryFunc func(ctx context.Context, d Descriptor, s *session.Session) (Engine, error)

// NewEngine calls f.
func (f EngineFactoryFunc) NewEngine(ctx context.Context, d Descriptor, s *session.Session) (Engine, error) {
	return f(ctx, d, s)
}

// Engines dispatches engine creation on Descriptor.Type.
// Unknown types are UNSUPPORTED.
type Engines map[string]EngineFactory

// NewEngine calls the factory registered for d.Type.
func (m Engines) NewEngine(ctx context.Context, d Descriptor, s *session.Session) (Engine, error) {
	f, ok := m[d.Type]
	if !ok {
		return nil, errors.New(errors.ErrCodeUnsupported, "unsupported repository type %q", d.Type)
	}
	return f.NewEngine(ctx, d, s)
}

// Handle is an open repository: the descriptor it was created from, the
// session backing it and the engine working in that session.
type Handle struct {
	Descriptor Descriptor
	Session    *session.Session
	Engine     Engine

	disposer  *session.Disposer
	closeOnce sync.Once
}

// Close disposes the handle's session. It is idempotent and never fails;
// disposal problems are logged by the disposer.
func (h *Handle) Close(ctx context.Context) {
	if h == nil {
		return
	}
	h.closeOnce.Do(func() {
		h.disposer.Dispose(ctx, h.Session)
	})
}

// Factory opens repositories. It is safe for concurrent use.
type Factory struct {
	builder  *session.Builder
	disposer *session.Disposer
	engines  EngineFactory
	logger   *log.Logger
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithLogger sets the factory logger. Default: log.Default().
func WithLogger(l *log.Logger) FactoryOption {
	return func(f *Factory) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFactory creates a Factory. disposer must tear down sessions built by
// builder; it defaults to builder.Disposer().
func NewFactory(builder *session.Builder, disposer *session.Disposer, engines EngineFactory, opts ...FactoryOption) *Factory {
	if disposer == nil {
		disposer = builder.Disposer()
	}
	f := &Factory{builder: builder, disposer: disposer, engines: engines, logger: log.Default()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create opens the repository described by d.
//
// It validates d, builds a new session and instantiates the engine in it.
// Any failure is returned as *RepositoryCreationError wrapping the cause;
// if the engine fails after the session was built, the session is disposed
// before Create returns.
func (f *Factory) Create(ctx context.Context, d Descriptor) (*Handle, error) {
	d = d.clone()
	if err := d.Validate(); err != nil {
		return nil, f.fail(d, err)
	}

	sess, err := f.builder.Build(ctx)
	if err != nil {
		return nil, f.fail(d, err)
	}

	eng, err := f.engines.NewEngine(ctx, d, sess)
	if err == nil && eng == nil {
		err = errors.New(errors.ErrCodeInternal, "engine factory returned no engine")
	}
	if err != nil {
		f.disposer.Dispose(ctx, sess)
		return nil, f.fail(d, err)
	}

	f.logger.Debug("repository created", "repository", d.ID, "type", d.Type, "session", sess.ID)
	return &Handle{Descriptor: d, Session: sess, Engine: eng, disposer: f.disposer}, nil
}

func (f *Factory) fail(d Descriptor, cause error) error {
	f.logger.Debug("create repository failed", "repository", d.ID, "uri", d.URI, "err", cause)
	return &RepositoryCreationError{Descriptor: d, Cause: cause}
}
