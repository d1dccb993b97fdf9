// Package proxy provides the network proxy strategy shared by every
// resolution session.
//
// The strategy is detected once per process from the ambient environment
// (HTTP_PROXY, HTTPS_PROXY, NO_PROXY and their lowercase forms) and is never
// mutated afterward. Sessions hold a reference to the same [Resolver], which
// keeps proxy behavior consistent across concurrent sessions without any
// per-session state.
//
// # Usage
//
//	transport := &http.Transport{Proxy: proxy.Shared().Proxy}
//
// Mapping a target host to a proxy (or to none) is delegated to
// golang.org/x/net/http/httpproxy; this package only defines the insertion
// point and its sharing discipline.
package proxy

import (
	"net/http"
	"net/url"
	"sync"

	jujuproxy "github.com/juju/proxy"
	"golang.org/x/net/http/httpproxy"
)

// Resolver maps an outbound request to the proxy it should go through.
// A nil URL means a direct connection. Implementations must be safe for
// concurrent use and must not change behavior after construction.
//
// The method signature matches [http.Transport.Proxy].
type Resolver interface {
	Proxy(req *http.Request) (*url.URL, error)
}

// Settings is the proxy configuration a Resolver is built from.
type Settings = jujuproxy.Settings

// EnvResolver resolves proxies from a fixed set of [Settings].
type EnvResolver struct {
	settings Settings
	fn       func(*url.URL) (*url.URL, error)
}

// FromSettings builds an immutable resolver from settings.
// The settings are copied; later changes to the caller's value have no effect.
func FromSettings(s Settings) *EnvResolver {
	cfg := &httpproxy.Config{
		HTTPProxy:  s.Http,
		HTTPSProxy: s.Https,
		NoProxy:    s.NoProxy,
	}
	return &EnvResolver{settings: s, fn: cfg.ProxyFunc()}
}

// Detect builds a resolver from the current process environment.
func Detect() *EnvResolver {
	return FromSettings(jujuproxy.DetectProxies())
}

// Proxy returns the proxy URL for req, or nil for a direct connection.
func (r *EnvResolver) Proxy(req *http.Request) (*url.URL, error) {
	if req == nil || req.URL == nil {
		return nil, nil
	}
	return r.fn(req.URL)
}

// Settings returns a copy of the settings the resolver was built from.
func (r *EnvResolver) Settings() Settings { return r.settings }

// HasProxy reports whether any proxy is configured.
func (r *EnvResolver) HasProxy() bool {
	return r.settings.Http != "" || r.settings.Https != ""
}

// direct never proxies.
type direct struct{}

func (direct) Proxy(*http.Request) (*url.URL, error) { return nil, nil }

// Direct is a Resolver that always connects directly.
var Direct Resolver = direct{}

var shared = sync.OnceValue(func() *EnvResolver { return Detect() })

// Shared returns the process-wide resolver, detected from the environment on
// first use. Every call returns the same instance.
func Shared() *EnvResolver {
	return shared()
}

// Ensure implementations satisfy Resolver.
var (
	_ Resolver = (*EnvResolver)(nil)
	_ Resolver = direct{}
)
