package session

import (
	"context"
	"time"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/extrepo/pkg/artifact"
	"github.com/matzehuels/extrepo/pkg/buildinfo"
	"github.com/matzehuels/extrepo/pkg/errors"
	"github.com/matzehuels/extrepo/pkg/ledger"
	"github.com/matzehuels/extrepo/pkg/observability"
	"github.com/matzehuels/extrepo/pkg/proxy"
	"github.com/matzehuels/extrepo/pkg/sandbox"
)

// Options configures a Builder. Every dependency is passed in explicitly;
// zero values fall back to the documented defaults.
type Options struct {
	// Store allocates sandboxes. Default: sandbox.NewStore("") (process temp dir).
	Store *sandbox.Store

	// Proxy is attached to every session by reference. Default: proxy.Shared().
	Proxy proxy.Resolver

	// BaseTypes is the registry every session's types extend. It is never
	// modified. Default: artifact.DefaultRegistry().
	BaseTypes *artifact.Registry

	// ExtraTypes are added after artifact.DomainTypes().
	ExtraTypes []artifact.Type

	// UserAgent identifies the client to remote repositories.
	// Default: buildinfo.UserAgent().
	UserAgent string

	// SystemProperties are copied into every session before the cleared
	// properties are unset, so configuration can never re-enable them.
	SystemProperties map[string]string

	// ConfigProperties are copied into every session.
	ConfigProperties map[string]string

	// Ledger records live sessions. Optional.
	Ledger ledger.Ledger

	// Logger receives build and dispose diagnostics. Default: log.Default().
	Logger *log.Logger
}

// Builder assembles resolution sessions.
//
// A Builder is immutable after construction and safe for concurrent use;
// every Build call produces an independent Session with its own sandbox.
type Builder struct {
	store      *sandbox.Store
	proxy      proxy.Resolver
	baseTypes  *artifact.Registry
	extraTypes []artifact.Type
	userAgent  string
	sysProps   map[string]string
	cfgProps   map[string]string
	ledger     ledger.Ledger
	logger     *log.Logger
}

// NewBuilder validates opts and creates a Builder.
// Invalid artifact types or client identification are CONFIG_ERROR.
func NewBuilder(opts Options) (*Builder, error) {
	b := &Builder{
		store:      opts.Store,
		proxy:      opts.Proxy,
		baseTypes:  opts.BaseTypes,
		extraTypes: append([]artifact.Type(nil), opts.ExtraTypes...),
		userAgent:  opts.UserAgent,
		sysProps:   cloneConfig(opts.SystemProperties),
		cfgProps:   cloneConfig(opts.ConfigProperties),
		ledger:     opts.Ledger,
		logger:     opts.Logger,
	}
	if b.store == nil {
		b.store = sandbox.NewStore("")
	}
	if b.proxy == nil {
		b.proxy = proxy.Shared()
	}
	if b.baseTypes == nil {
		b.baseTypes = artifact.DefaultRegistry()
	}
	if b.userAgent == "" {
		b.userAgent = buildinfo.UserAgent()
	}
	if b.logger == nil {
		b.logger = log.Default()
	}

	if err := validateUserAgent(b.userAgent); err != nil {
		return nil, err
	}
	if _, err := b.extendTypes(); err != nil {
		return nil, err
	}
	return b, nil
}

// Build assembles a new Session:
//
//  1. allocate a sandbox and bind it as the local repository
//  2. attach the shared proxy resolver
//  3. set the client identification string
//  4. copy configured overrides, then unset ClearedProperties
//  5. extend the base type registry with the domain kinds
//  6. install the strict descriptor policy
//
// Any failing step aborts the build with a SESSION_BUILD_ERROR wrapping the
// cause. A sandbox allocated before the failure is destroyed before Build
// returns, so a failed build leaves nothing on disk and never hands out a
// half-configured session.
func (b *Builder) Build(ctx context.Context) (sess *Session, err error) {
	start := time.Now()
	hooks := observability.Session()
	hooks.OnBuildStart(ctx)
	id := uuid.NewString()
	defer func() {
		hooks.OnBuildComplete(ctx, id, time.Since(start), err)
	}()

	dir, err := b.store.Create(ctx)
	if err != nil {
		b.logger.Error("session build failed", "session", id, "step", "sandbox", "err", err)
		return nil, errors.SessionBuild(err, "allocate local repository")
	}
	defer func() {
		if err == nil {
			return
		}
		if derr := b.store.Destroy(context.WithoutCancel(ctx), dir); derr != nil {
			b.logger.Warn("remove sandbox of failed build", "session", id, "path", dir, "err", derr)
		}
	}()

	types, err := b.extendTypes()
	if err != nil {
		b.logger.Error("session build failed", "session", id, "step", "types", "err", err)
		return nil, errors.SessionBuild(err, "extend artifact types")
	}

	sess = &Session{
		ID:               id,
		LocalRepository:  dir,
		Proxy:            b.proxy,
		UserAgent:        b.userAgent,
		ConfigProperties: cloneConfig(b.cfgProps),
		SystemProperties: copyProperties(b.sysProps),
		Types:            types,
		DescriptorPolicy: StrictDescriptorPolicy,
		CreatedAt:        start,
	}
	sess.ConfigProperties[PropertyUserAgent] = b.userAgent
	for _, name := range ClearedProperties {
		sess.ClearSystemProperty(name)
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.SessionBuild(err, "build canceled")
	}

	if b.ledger != nil {
		if lerr := b.ledger.Register(ctx, ledger.NewEntry(id, dir)); lerr != nil {
			b.logger.Warn("register session in ledger", "session", id, "err", lerr)
		}
	}

	b.logger.Debug("session built",
		"session", id,
		"path", dir,
		"types", types.Len(),
		"duration", time.Since(start).Round(time.Microsecond))
	return sess, nil
}

// Disposer returns a Disposer bound to the same store, ledger and logger.
func (b *Builder) Disposer() *Disposer {
	return NewDisposer(b.store, b.ledger, b.logger)
}

// Store returns the sandbox store sessions are allocated from.
func (b *Builder) Store() *sandbox.Store { return b.store }

// Types returns the registry a session built now would carry.
func (b *Builder) Types() *artifact.Registry {
	r, _ := b.extendTypes()
	return r
}

// extendTypes copies the base registry and adds the domain and configured
// kinds. The base registry is never modified.
func (b *Builder) extendTypes() (*artifact.Registry, error) {
	additions := append(artifact.DomainTypes(), b.extraTypes...)
	return artifact.Extend(b.baseTypes, additions...)
}

func validateUserAgent(ua string) error {
	for _, r := range ua {
		if unicode.IsControl(r) {
			return errors.New(errors.ErrCodeConfig, "user agent contains control characters")
		}
	}
	return nil
}
