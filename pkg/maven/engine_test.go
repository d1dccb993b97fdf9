package maven

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/extrepo/pkg/errors"
	"github.com/matzehuels/extrepo/pkg/observability"
	"github.com/matzehuels/extrepo/pkg/proxy"
	"github.com/matzehuels/extrepo/pkg/repository"
	"github.com/matzehuels/extrepo/pkg/sandbox"
	"github.com/matzehuels/extrepo/pkg/session"
)

const widgetPOM = `<project>
  <groupId>org.example</groupId>
  <artifactId>widgets</artifactId>
  <version>1.0</version>
  <packaging>bundle</packaging>
  <dependencies>
    <dependency>
      <groupId>org.example</groupId>
      <artifactId>gears</artifactId>
      <version>${gears.version}</version>
    </dependency>
    <dependency>
      <groupId>org.example</groupId>
      <artifactId>legacy</artifactId>
      <version>${version}</version>
    </dependency>
  </dependencies>
</project>`

func newTestSession(t *testing.T, sysProps map[string]string) *session.Session {
	t.Helper()
	b, err := session.NewBuilder(session.Options{
		Store:            sandbox.NewStore(t.TempDir()),
		Proxy:            proxy.Direct,
		UserAgent:        "extrepo-test/1.0",
		SystemProperties: sysProps,
		Logger:           log.New(io.Discard),
	})
	if err != nil {
		t.Fatal(err)
	}
	s, err := b.Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { b.Disposer().Dispose(context.Background(), s) })
	return s
}

func newTestEngine(t *testing.T, s *session.Session, url string) *Engine {
	t.Helper()
	e, err := New(s, url, WithRetry(3, time.Millisecond), WithLogger(log.New(io.Discard)))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return e
}

type repoServer struct {
	*httptest.Server
	hits       atomic.Int32
	userAgents sync.Map
}

func newRepoServer(t *testing.T, files map[string]string) *repoServer {
	t.Helper()
	rs := &repoServer{}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.hits.Add(1)
		rs.userAgents.Store(r.Header.Get("User-Agent"), true)
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		io.WriteString(w, body)
	}))
	t.Cleanup(rs.Close)
	return rs
}

func TestReadDescriptor(t *testing.T) {
	rs := newRepoServer(t, map[string]string{
		"/maven2/org/example/widgets/1.0/widgets-1.0.pom": widgetPOM,
	})
	s := newTestSession(t, map[string]string{"gears.version": "3.2"})
	e := newTestEngine(t, s, rs.URL+"/maven2")

	c := Coordinate{GroupID: "org.example", ArtifactID: "widgets", Version: "1.0", Type: "bundle"}
	p, err := e.ReadDescriptor(context.Background(), c)
	if err != nil {
		t.Fatalf("ReadDescriptor() error: %v", err)
	}
	if p.ArtifactID != "widgets" || p.Packaging != "bundle" {
		t.Errorf("project = %+v", p)
	}
	if got := p.Dependencies[0].Version; got != "3.2" {
		t.Errorf("gears version = %q, want 3.2 from session properties", got)
	}

	if _, ok := rs.userAgents.Load("extrepo-test/1.0"); !ok {
		t.Error("request should carry the session user agent")
	}

	local, _ := s.Path(c.DescriptorPath())
	if _, err := os.Stat(local); err != nil {
		t.Errorf("descriptor should be cached in the local repository: %v", err)
	}
}

func TestReadDescriptorUsesLocalRepository(t *testing.T) {
	rs := newRepoServer(t, map[string]string{
		"/org/example/widgets/1.0/widgets-1.0.pom": widgetPOM,
	})
	s := newTestSession(t, nil)
	e := newTestEngine(t, s, rs.URL)
	c := Coordinate{GroupID: "org.example", ArtifactID: "widgets", Version: "1.0"}

	for i := 0; i < 3; i++ {
		if _, err := e.ReadDescriptor(context.Background(), c); err != nil {
			t.Fatal(err)
		}
	}
	if n := rs.hits.Load(); n != 1 {
		t.Errorf("remote hits = %d, want 1", n)
	}
}

func TestReadDescriptorIsolatedPerSession(t *testing.T) {
	rs := newRepoServer(t, map[string]string{
		"/org/example/widgets/1.0/widgets-1.0.pom": widgetPOM,
	})
	c := Coordinate{GroupID: "org.example", ArtifactID: "widgets", Version: "1.0"}

	for i := 0; i < 2; i++ {
		e := newTestEngine(t, newTestSession(t, nil), rs.URL)
		if _, err := e.ReadDescriptor(context.Background(), c); err != nil {
			t.Fatal(err)
		}
	}
	if n := rs.hits.Load(); n != 2 {
		t.Errorf("remote hits = %d, want 2 (one per session)", n)
	}
}

func TestReadDescriptorClearedProperties(t *testing.T) {
	rs := newRepoServer(t, map[string]string{
		"/org/example/widgets/1.0/widgets-1.0.pom": widgetPOM,
	})
	s := newTestSession(t, map[string]string{"version": "6.6.6"})
	e := newTestEngine(t, s, rs.URL)

	p, err := e.ReadDescriptor(context.Background(), Coordinate{GroupID: "org.example", ArtifactID: "widgets", Version: "1.0"})
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Dependencies[1].Version; got != "1.0" {
		t.Errorf("legacy dependency version = %q, want the project version 1.0 instead of the cleared override", got)
	}
}

func TestReadDescriptorMissing(t *testing.T) {
	rs := newRepoServer(t, nil)
	c := Coordinate{GroupID: "org.example", ArtifactID: "absent", Version: "1.0"}

	t.Run("strict", func(t *testing.T) {
		e := newTestEngine(t, newTestSession(t, nil), rs.URL)
		_, err := e.ReadDescriptor(context.Background(), c)
		if !errors.Is(err, errors.ErrCodeDescriptorMissing) {
			t.Errorf("error = %v, want DESCRIPTOR_MISSING", err)
		}
	})

	t.Run("lenient", func(t *testing.T) {
		s := newTestSession(t, nil)
		s.DescriptorPolicy = session.DescriptorPolicy{}
		e := newTestEngine(t, s, rs.URL)
		p, err := e.ReadDescriptor(context.Background(), c)
		if err != nil {
			t.Fatalf("lenient policy should not fail: %v", err)
		}
		if p.ArtifactID != "absent" || len(p.Dependencies) != 0 {
			t.Errorf("project = %+v, want bare coordinate", p)
		}
	})
}

func TestReadDescriptorInvalid(t *testing.T) {
	rs := newRepoServer(t, map[string]string{
		"/org/example/broken/1.0/broken-1.0.pom": "<project><artifactId>",
	})
	c := Coordinate{GroupID: "org.example", ArtifactID: "broken", Version: "1.0"}

	e := newTestEngine(t, newTestSession(t, nil), rs.URL)
	_, err := e.ReadDescriptor(context.Background(), c)
	if !errors.Is(err, errors.ErrCodeDescriptorInvalid) {
		t.Errorf("error = %v, want DESCRIPTOR_INVALID", err)
	}

	s := newTestSession(t, nil)
	s.DescriptorPolicy.FailOnInvalid = false
	e = newTestEngine(t, s, rs.URL)
	if _, err := e.ReadDescriptor(context.Background(), c); err != nil {
		t.Errorf("lenient invalid policy should not fail: %v", err)
	}
}

func TestReadDescriptorTooLarge(t *testing.T) {
	old := maxDescriptorSize
	maxDescriptorSize = int64(len(widgetPOM))
	t.Cleanup(func() { maxDescriptorSize = old })

	rs := newRepoServer(t, map[string]string{
		"/org/example/widgets/1.0/widgets-1.0.pom": widgetPOM,
		"/org/example/padded/1.0/padded-1.0.pom":   widgetPOM + "<!-- padding -->",
	})

	t.Run("at limit", func(t *testing.T) {
		e := newTestEngine(t, newTestSession(t, nil), rs.URL)
		c := Coordinate{GroupID: "org.example", ArtifactID: "widgets", Version: "1.0"}
		if _, err := e.ReadDescriptor(context.Background(), c); err != nil {
			t.Fatalf("descriptor of exactly the limit should be read: %v", err)
		}
	})

	t.Run("over limit", func(t *testing.T) {
		s := newTestSession(t, nil)
		e := newTestEngine(t, s, rs.URL)
		c := Coordinate{GroupID: "org.example", ArtifactID: "padded", Version: "1.0"}
		_, err := e.ReadDescriptor(context.Background(), c)
		if !errors.Is(err, errors.ErrCodeDescriptorTooLarge) {
			t.Fatalf("error = %v, want DESCRIPTOR_TOO_LARGE", err)
		}
		local, _ := s.Path(c.DescriptorPath())
		if _, err := os.Stat(local); !os.IsNotExist(err) {
			t.Error("an oversized descriptor must not be cached in the local repository")
		}
	})
}

func TestReadDescriptorRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, widgetPOM)
	}))
	defer server.Close()

	e := newTestEngine(t, newTestSession(t, nil), server.URL)
	_, err := e.ReadDescriptor(context.Background(), Coordinate{GroupID: "org.example", ArtifactID: "widgets", Version: "1.0"})
	if err != nil {
		t.Fatalf("ReadDescriptor() error: %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("calls = %d, want 2", n)
	}
}

func TestReadDescriptorNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	e := newTestEngine(t, newTestSession(t, nil), server.URL)
	_, err := e.ReadDescriptor(context.Background(), Coordinate{GroupID: "org.example", ArtifactID: "widgets", Version: "1.0"})
	if !errors.Is(err, errors.ErrCodeNetwork) {
		t.Errorf("error = %v, want NETWORK_ERROR", err)
	}
}

func TestReadDescriptorUnknownType(t *testing.T) {
	e := newTestEngine(t, newTestSession(t, nil), "https://repo.example.org")
	_, err := e.ReadDescriptor(context.Background(), Coordinate{GroupID: "g", ArtifactID: "a", Version: "1", Type: "nope"})
	if !errors.Is(err, errors.ErrCodeInvalidCoordinate) {
		t.Errorf("error = %v, want INVALID_COORDINATE", err)
	}
}

func TestArtifactPath(t *testing.T) {
	e := newTestEngine(t, newTestSession(t, nil), "")
	if e.RemoteURL() != CentralURL {
		t.Errorf("RemoteURL() = %q, want %q", e.RemoteURL(), CentralURL)
	}

	tests := []struct {
		coord   Coordinate
		want    string
		wantErr bool
	}{
		{Coordinate{"org.osgi", "osgi.core", "8.0.0", "bundle"}, "org/osgi/osgi.core/8.0.0/osgi.core-8.0.0.jar", false},
		{Coordinate{"org.eclipse", "swt", "3.1", "eclipse-plugin"}, "org/eclipse/swt/3.1/swt-3.1.jar", false},
		{Coordinate{"org.example", "lib", "1.0", "java-source"}, "org/example/lib/1.0/lib-1.0-sources.jar", false},
		{Coordinate{"org.example", "lib", "1.0", ""}, "org/example/lib/1.0/lib-1.0.jar", false},
		{Coordinate{"org.example", "lib", "1.0", "unknown"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.coord.String(), func(t *testing.T) {
			got, err := e.ArtifactPath(tt.coord)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ArtifactPath() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ArtifactPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	if _, err := New(nil, ""); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("New(nil) error = %v, want INVALID_INPUT", err)
	}
	s := newTestSession(t, nil)
	if _, err := New(s, "ftp://repo.example.org"); err == nil {
		t.Error("New() should reject non-http URLs")
	}
}

type countingCacheHooks struct {
	observability.NoopCacheHooks
	hits, misses, sets atomic.Int32
}

func (h *countingCacheHooks) OnCacheHit(context.Context, string)      { h.hits.Add(1) }
func (h *countingCacheHooks) OnCacheMiss(context.Context, string)     { h.misses.Add(1) }
func (h *countingCacheHooks) OnCacheSet(context.Context, string, int) { h.sets.Add(1) }

func TestReadDescriptorCacheHooks(t *testing.T) {
	hooks := &countingCacheHooks{}
	observability.SetCacheHooks(hooks)
	defer observability.Reset()

	rs := newRepoServer(t, map[string]string{
		"/org/example/widgets/1.0/widgets-1.0.pom": widgetPOM,
	})
	e := newTestEngine(t, newTestSession(t, nil), rs.URL)
	c := Coordinate{GroupID: "org.example", ArtifactID: "widgets", Version: "1.0"}
	for i := 0; i < 2; i++ {
		if _, err := e.ReadDescriptor(context.Background(), c); err != nil {
			t.Fatal(err)
		}
	}

	if hooks.misses.Load() != 1 || hooks.sets.Load() != 1 || hooks.hits.Load() != 1 {
		t.Errorf("hooks = hit %d miss %d set %d, want 1/1/1",
			hooks.hits.Load(), hooks.misses.Load(), hooks.sets.Load())
	}
}

func TestEngineFactory(t *testing.T) {
	s := newTestSession(t, nil)
	f := NewEngineFactory(WithLogger(log.New(io.Discard)))

	eng, err := f.NewEngine(context.Background(), repository.Descriptor{ID: "central", Type: TypeMaven, URI: "https://repo.example.org/maven2"}, s)
	if err != nil {
		t.Fatalf("NewEngine() error: %v", err)
	}
	if eng.Session() != s {
		t.Error("engine should be bound to the given session")
	}
	if got := eng.(*Engine).RemoteURL(); got != "https://repo.example.org/maven2" {
		t.Errorf("RemoteURL() = %q", got)
	}

	if _, err := f.NewEngine(context.Background(), repository.Descriptor{URI: "not a url"}, s); err == nil {
		t.Error("NewEngine() should reject an invalid URI")
	}
}
