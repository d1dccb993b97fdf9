// Package session builds and disposes resolution sessions.
//
// A [Session] is the sandboxed, configured context in which one resolution
// operation executes: a private local repository directory, the shared proxy
// strategy, a client identification string, override properties, the
// recognized artifact types and a descriptor validation policy. The
// resolution engine reads it; this package never inspects resolution results.
//
// # Lifecycle
//
// A [Builder] assembles sessions and a [Disposer] tears them down:
//
//	b, err := session.NewBuilder(session.Options{
//	    Store:     sandbox.NewStore(""),
//	    UserAgent: "extrepo/1.0",
//	})
//	if err != nil {
//	    return err
//	}
//
//	sess, err := b.Build(ctx) // SESSION_BUILD_ERROR on failure, nothing left on disk
//	if err != nil {
//	    return err
//	}
//	defer b.Disposer().Dispose(ctx, sess) // never fails; problems are logged
//
// Sessions are owned by the caller that built them. Each one holds its own
// sandbox; nothing mutable is shared between sessions except the read-only
// proxy resolver and the immutable base type registry.
package session

import (
	"fmt"
	"maps"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/matzehuels/extrepo/pkg/artifact"
	"github.com/matzehuels/extrepo/pkg/errors"
	"github.com/matzehuels/extrepo/pkg/proxy"
)

// PropertyUserAgent is the config property under which the client
// identification string is exposed to the resolution engine.
const PropertyUserAgent = "extrepo.connector.userAgent"

// ClearedProperties are the system properties every build explicitly unsets.
// Left over from an unrelated operation, they would bias descriptor
// interpolation toward a particular coordinate.
var ClearedProperties = []string{"version", "groupId"}

// DescriptorPolicy controls what happens when a remote artifact descriptor
// is missing or cannot be parsed.
type DescriptorPolicy struct {
	FailOnMissing bool `json:"fail_on_missing"`
	FailOnInvalid bool `json:"fail_on_invalid"`
}

// StrictDescriptorPolicy aborts resolution on missing or invalid descriptors.
// It is the only policy the builder installs.
var StrictDescriptorPolicy = DescriptorPolicy{FailOnMissing: true, FailOnInvalid: true}

// Strict reports whether both failure modes abort resolution.
func (p DescriptorPolicy) Strict() bool {
	return p.FailOnMissing && p.FailOnInvalid
}

// Session is the configuration bag a resolution engine executes in.
//
// Fields are set by the Builder. Callers may adjust properties before handing
// the session to an engine but must not share one Session between concurrent
// resolutions.
type Session struct {
	ID               string             // Random UUID, used in logs and the ledger
	LocalRepository  string             // Absolute path of the session's sandbox
	Proxy            proxy.Resolver     // Shared, read-only proxy strategy
	UserAgent        string             // Client identification for outbound requests
	ConfigProperties map[string]string  // Engine-facing configuration
	SystemProperties map[string]*string // Override properties; nil value means explicitly unset
	Types            *artifact.Registry // Session-private artifact type registry
	DescriptorPolicy DescriptorPolicy   // Always strict when built by a Builder
	CreatedAt        time.Time

	disposeMu    sync.Mutex
	disposed     atomic.Bool
	removeFailed bool // guarded by disposeMu
}

// SystemProperty returns the value of an override property.
// ok is false when the property is absent or explicitly unset.
func (s *Session) SystemProperty(name string) (value string, ok bool) {
	v, present := s.SystemProperties[name]
	if !present || v == nil {
		return "", false
	}
	return *v, true
}

// SetSystemProperty sets an override property.
func (s *Session) SetSystemProperty(name, value string) {
	if s.SystemProperties == nil {
		s.SystemProperties = make(map[string]*string)
	}
	s.SystemProperties[name] = &value
}

// ClearSystemProperty explicitly unsets an override property. Unlike deleting
// it, an explicit unset also hides any value the engine would otherwise pick
// up from its own defaults.
func (s *Session) ClearSystemProperty(name string) {
	if s.SystemProperties == nil {
		s.SystemProperties = make(map[string]*string)
	}
	s.SystemProperties[name] = nil
}

// IsCleared reports whether name was explicitly unset.
func (s *Session) IsCleared(name string) bool {
	v, present := s.SystemProperties[name]
	return present && v == nil
}

// ConfigProperty returns an engine configuration property.
func (s *Session) ConfigProperty(key string) (string, bool) {
	v, ok := s.ConfigProperties[key]
	return v, ok
}

// Path resolves rel inside the session's local repository.
// rel must be a clean relative path; traversal outside the sandbox is refused.
func (s *Session) Path(rel string) (string, error) {
	if err := errors.ValidatePath(rel); err != nil {
		return "", err
	}
	return filepath.Join(s.LocalRepository, filepath.FromSlash(rel)), nil
}

// Disposed reports whether the session has been disposed.
func (s *Session) Disposed() bool {
	return s.disposed.Load()
}

// Properties returns a snapshot of the set (non-cleared) system properties.
func (s *Session) Properties() map[string]string {
	out := make(map[string]string, len(s.SystemProperties))
	for k, v := range s.SystemProperties {
		if v != nil {
			out[k] = *v
		}
	}
	return out
}

// String returns a short description for logs.
func (s *Session) String() string {
	return fmt.Sprintf("session %s (%s)", s.ID, s.LocalRepository)
}

func copyProperties(in map[string]string) map[string]*string {
	out := make(map[string]*string, len(in)+len(ClearedProperties))
	for k, v := range in {
		out[k] = &v
	}
	return out
}

func cloneConfig(in map[string]string) map[string]string {
	out := make(map[string]string, len(in)+1)
	maps.Copy(out, in)
	return out
}
