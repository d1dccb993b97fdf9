package maven

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/extrepo/pkg/errors"
	"github.com/matzehuels/extrepo/pkg/httputil"
	"github.com/matzehuels/extrepo/pkg/observability"
	"github.com/matzehuels/extrepo/pkg/repository"
	"github.com/matzehuels/extrepo/pkg/session"
)

// CentralURL is the remote repository used when none is given.
const CentralURL = "https://repo.maven.apache.org/maven2"

// maxDescriptorSize caps the size of a downloaded POM. Larger descriptors
// are DESCRIPTOR_TOO_LARGE and never reach the local repository.
var maxDescriptorSize int64 = 8 << 20

// cacheKeyDescriptor is the key type reported to cache hooks.
const cacheKeyDescriptor = "descriptor"

// Engine reads artifact descriptors from one remote repository within one
// session. It is bound to the session's lifetime and must not be used after
// the session is disposed.
//
// An Engine is safe for concurrent reads of different coordinates.
type Engine struct {
	session  *session.Session
	remote   *url.URL
	client   *http.Client
	logger   *log.Logger
	attempts int
	delay    time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithHTTPClient replaces the client derived from the session.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) {
		if c != nil {
			e.client = c
		}
	}
}

// WithLogger sets the logger. Default: log.Default().
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRetry sets the number of attempts and the initial backoff for
// transient network failures.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(e *Engine) {
		e.attempts = attempts
		e.delay = delay
	}
}

// New creates an Engine reading from remoteURL (CentralURL if empty) through
// the given session.
func New(s *session.Session, remoteURL string, opts ...Option) (*Engine, error) {
	if s == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "engine requires a session")
	}
	if remoteURL == "" {
		remoteURL = CentralURL
	}
	if err := errors.ValidateURL(remoteURL); err != nil {
		return nil, err
	}
	remote, err := url.Parse(strings.TrimSuffix(remoteURL, "/"))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidDescriptor, err, "parse repository URL")
	}

	e := &Engine{
		session:  s,
		remote:   remote,
		client:   s.HTTPClient(0),
		logger:   log.Default(),
		attempts: httputil.DefaultAttempts,
		delay:    httputil.DefaultDelay,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Session returns the session the engine runs in.
func (e *Engine) Session() *session.Session { return e.session }

// RemoteURL returns the remote repository base URL.
func (e *Engine) RemoteURL() string { return e.remote.String() }

// ArtifactPath returns the repository path of the coordinate's artifact
// file. The type must be registered in the session; unknown types are
// INVALID_COORDINATE.
func (e *Engine) ArtifactPath(c Coordinate) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	t, ok := e.session.Types.Get(c.TypeID())
	if !ok {
		return "", errors.New(errors.ErrCodeInvalidCoordinate, "unknown artifact type %q", c.TypeID())
	}
	return c.Dir() + "/" + t.Filename(c.ArtifactID, c.Version), nil
}

// ReadDescriptor returns the interpolated descriptor of c.
//
// The descriptor is served from the session's local repository when present
// and fetched from the remote repository otherwise. A missing descriptor is
// DESCRIPTOR_MISSING and an unparsable one DESCRIPTOR_INVALID when the
// session's policy demands it; a lenient policy yields a bare project that
// only carries the coordinate.
func (e *Engine) ReadDescriptor(ctx context.Context, c Coordinate) (*Project, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if !e.session.Types.Has(c.TypeID()) {
		return nil, errors.New(errors.ErrCodeInvalidCoordinate, "unknown artifact type %q", c.TypeID())
	}
	policy := e.session.DescriptorPolicy

	data, err := e.load(ctx, c.DescriptorPath())
	switch {
	case stderrors.Is(err, httputil.ErrNotFound):
		if policy.FailOnMissing {
			return nil, errors.Wrap(errors.ErrCodeDescriptorMissing, err, "descriptor of %s", c)
		}
		e.logger.Warn("descriptor missing", "coordinate", c, "session", e.session.ID)
		return bareProject(c), nil
	case err != nil:
		return nil, err
	}

	p, err := Parse(data)
	if err != nil {
		if policy.FailOnInvalid {
			return nil, errors.Wrap(errors.ErrCodeDescriptorInvalid, err, "descriptor of %s", c)
		}
		e.logger.Warn("descriptor invalid", "coordinate", c, "session", e.session.ID, "err", err)
		return bareProject(c), nil
	}

	p.Interpolate(e.lookup(p))
	return p, nil
}

// lookup resolves expressions from the session's system properties first,
// then from the project model. Cleared session properties resolve only from
// the model.
func (e *Engine) lookup(p *Project) LookupFunc {
	return func(name string) (string, bool) {
		if v, ok := e.session.SystemProperty(name); ok {
			return v, true
		}
		return p.modelLookup(name)
	}
}

// load returns the file at rel from the local repository, fetching and
// caching it on a miss.
func (e *Engine) load(ctx context.Context, rel string) ([]byte, error) {
	local, err := e.session.Path(rel)
	if err != nil {
		return nil, err
	}
	hooks := observability.Cache()

	if data, err := os.ReadFile(local); err == nil {
		hooks.OnCacheHit(ctx, cacheKeyDescriptor)
		return data, nil
	}
	hooks.OnCacheMiss(ctx, cacheKeyDescriptor)

	data, err := e.fetch(ctx, rel)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return nil, errors.Storage(err, "cache %s", rel)
	}
	if err := os.WriteFile(local, data, 0o644); err != nil {
		return nil, errors.Storage(err, "cache %s", rel)
	}
	hooks.OnCacheSet(ctx, cacheKeyDescriptor, len(data))
	return data, nil
}

// fetch downloads rel from the remote repository, retrying transient failures.
func (e *Engine) fetch(ctx context.Context, rel string) ([]byte, error) {
	u := e.remote.JoinPath(rel)
	hooks := observability.HTTP()

	var data []byte
	err := httputil.Retry(ctx, e.attempts, e.delay, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "build request")
		}

		start := time.Now()
		hooks.OnRequest(ctx, req.Method, u.Host, u.Path)
		resp, err := e.client.Do(req)
		if err != nil {
			hooks.OnError(ctx, req.Method, u.Host, u.Path, err)
			return &httputil.RetryableError{Err: errors.Wrap(errors.ErrCodeNetwork, err, "GET %s", u.Redacted())}
		}
		defer resp.Body.Close()
		hooks.OnResponse(ctx, req.Method, u.Host, u.Path, resp.StatusCode, time.Since(start))

		if err := httputil.CheckStatus(resp); err != nil {
			return err
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxDescriptorSize+1))
		if err != nil {
			return &httputil.RetryableError{Err: errors.Wrap(errors.ErrCodeNetwork, err, "read %s", u.Redacted())}
		}
		if int64(len(body)) > maxDescriptorSize {
			return errors.New(errors.ErrCodeDescriptorTooLarge, "descriptor %s exceeds %d bytes", u.Redacted(), maxDescriptorSize)
		}
		data = body
		return nil
	})
	if err != nil {
		e.logger.Debug("fetch failed", "url", u.Redacted(), "session", e.session.ID, "err", err)
		return nil, err
	}
	e.logger.Debug("fetched", "url", u.Redacted(), "bytes", len(data), "session", e.session.ID)
	return data, nil
}

func bareProject(c Coordinate) *Project {
	return &Project{GroupID: c.GroupID, ArtifactID: c.ArtifactID, Version: c.Version, Packaging: c.TypeID()}
}

// TypeMaven is the repository type served by this engine.
const TypeMaven = "maven"

// NewEngineFactory returns a repository.EngineFactory creating engines that
// read from the descriptor's URI.
func NewEngineFactory(opts ...Option) repository.EngineFactory {
	return repository.EngineFactoryFunc(func(_ context.Context, d repository.Descriptor, s *session.Session) (repository.Engine, error) {
		e, err := New(s, d.URI, opts...)
		if err != nil {
			return nil, err
		}
		return e, nil
	})
}
