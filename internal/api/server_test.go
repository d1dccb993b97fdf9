package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/extrepo/pkg/artifact"
	"github.com/matzehuels/extrepo/pkg/errors"
	"github.com/matzehuels/extrepo/pkg/maven"
	"github.com/matzehuels/extrepo/pkg/proxy"
	"github.com/matzehuels/extrepo/pkg/repository"
	"github.com/matzehuels/extrepo/pkg/sandbox"
	"github.com/matzehuels/extrepo/pkg/session"
)

const bundlePOM = `<project>
  <groupId>org.example</groupId>
  <artifactId>widgets</artifactId>
  <version>1.0</version>
  <packaging>bundle</packaging>
</project>`

type fixture struct {
	api     *httptest.Server
	handler http.Handler
	remote  *httptest.Server
	root    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/org/example/widgets/1.0/widgets-1.0.pom":
			io.WriteString(w, bundlePOM)
		case "/org/example/broken/1.0/broken-1.0.pom":
			io.WriteString(w, "<project>")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(remote.Close)

	logger := log.New(io.Discard)
	root := t.TempDir()
	b, err := session.NewBuilder(session.Options{
		Store:  sandbox.NewStore(root),
		Proxy:  proxy.Direct,
		Logger: logger,
	})
	if err != nil {
		t.Fatal(err)
	}
	engines := repository.Engines{
		maven.TypeMaven: maven.NewEngineFactory(maven.WithRetry(1, time.Millisecond), maven.WithLogger(logger)),
	}
	f := repository.NewFactory(b, b.Disposer(), engines, repository.WithLogger(logger))

	handler := New(f, b.Types(), logger).Handler()
	api := httptest.NewServer(handler)
	t.Cleanup(api.Close)
	return &fixture{api: api, handler: handler, remote: remote, root: root}
}

func (f *fixture) post(t *testing.T, body any) (*http.Response, []byte) {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(f.api.URL+"/v1/descriptors", "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp, out
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.api.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestVersion(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.api.URL + "/version")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var v versionResponse
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	if v.Version == "" {
		t.Error("version should be set")
	}
}

func TestListTypes(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.api.URL + "/v1/types")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var types []artifact.Type
	if err := json.NewDecoder(resp.Body).Decode(&types); err != nil {
		t.Fatal(err)
	}
	ids := make(map[string]bool)
	for _, typ := range types {
		ids[typ.ID] = true
	}
	for _, id := range []string{"jar", "pom", "bundle", "eclipse-plugin"} {
		if !ids[id] {
			t.Errorf("GET /v1/types missing %q", id)
		}
	}
}

func TestReadDescriptor(t *testing.T) {
	f := newFixture(t)
	resp, body := f.post(t, DescriptorRequest{
		Repository: repository.Descriptor{ID: "test", Type: maven.TypeMaven, URI: f.remote.URL},
		Coordinate: "org.example:widgets:1.0:bundle",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}

	var out DescriptorResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if out.Project == nil || out.Project.Packaging != "bundle" {
		t.Errorf("project = %+v", out.Project)
	}
	if out.ArtifactPath != "org/example/widgets/1.0/widgets-1.0.jar" {
		t.Errorf("artifact_path = %q", out.ArtifactPath)
	}
	if out.Session == "" {
		t.Error("session id should be reported")
	}

	entries, _ := os.ReadDir(f.root)
	if len(entries) != 0 {
		t.Errorf("session sandbox should be disposed after the request, found %d entries", len(entries))
	}
}

// sandboxCheckingWriter records how many sandboxes exist when the response
// body is first written.
type sandboxCheckingWriter struct {
	*httptest.ResponseRecorder
	root      string
	atWrite   int
	wroteBody bool
}

func (w *sandboxCheckingWriter) Write(p []byte) (int, error) {
	if !w.wroteBody {
		w.wroteBody = true
		entries, _ := os.ReadDir(w.root)
		w.atWrite = len(entries)
	}
	return w.ResponseRecorder.Write(p)
}

func TestReadDescriptorDisposesBeforeResponse(t *testing.T) {
	f := newFixture(t)
	body, err := json.Marshal(DescriptorRequest{
		Repository: repository.Descriptor{ID: "test", Type: maven.TypeMaven, URI: f.remote.URL},
		Coordinate: "org.example:widgets:1.0:bundle",
	})
	if err != nil {
		t.Fatal(err)
	}

	w := &sandboxCheckingWriter{ResponseRecorder: httptest.NewRecorder(), root: f.root}
	req := httptest.NewRequest(http.MethodPost, "/v1/descriptors", bytes.NewReader(body))
	f.handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !w.wroteBody || w.atWrite != 0 {
		t.Errorf("%d sandboxes still present when the response was written, want 0", w.atWrite)
	}
}

func TestReadDescriptorErrors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantCode   errors.Code
	}{
		{
			name:       "bad json",
			body:       "not an object",
			wantStatus: http.StatusBadRequest,
			wantCode:   errors.ErrCodeInvalidInput,
		},
		{
			name: "bad coordinate",
			body: DescriptorRequest{
				Repository: repository.Descriptor{ID: "test", Type: maven.TypeMaven, URI: f.remote.URL},
				Coordinate: "org.example:widgets",
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   errors.ErrCodeInvalidCoordinate,
		},
		{
			name: "bad descriptor",
			body: DescriptorRequest{
				Repository: repository.Descriptor{ID: "", Type: maven.TypeMaven, URI: f.remote.URL},
				Coordinate: "org.example:widgets:1.0",
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   errors.ErrCodeRepositoryCreation,
		},
		{
			name: "unsupported type",
			body: DescriptorRequest{
				Repository: repository.Descriptor{ID: "test", Type: "p2", URI: f.remote.URL},
				Coordinate: "org.example:widgets:1.0",
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   errors.ErrCodeRepositoryCreation,
		},
		{
			name: "missing descriptor",
			body: DescriptorRequest{
				Repository: repository.Descriptor{ID: "test", Type: maven.TypeMaven, URI: f.remote.URL},
				Coordinate: "org.example:absent:1.0",
			},
			wantStatus: http.StatusNotFound,
			wantCode:   errors.ErrCodeDescriptorMissing,
		},
		{
			name: "invalid descriptor",
			body: DescriptorRequest{
				Repository: repository.Descriptor{ID: "test", Type: maven.TypeMaven, URI: f.remote.URL},
				Coordinate: "org.example:broken:1.0",
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   errors.ErrCodeDescriptorInvalid,
		},
		{
			name: "unknown artifact type",
			body: DescriptorRequest{
				Repository: repository.Descriptor{ID: "test", Type: maven.TypeMaven, URI: f.remote.URL},
				Coordinate: "org.example:widgets:1.0:nope",
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   errors.ErrCodeInvalidCoordinate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.post(t, tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", resp.StatusCode, tt.wantStatus, body)
			}
			var out errorResponse
			if err := json.Unmarshal(body, &out); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if out.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", out.Code, tt.wantCode)
			}
		})
	}

	entries, _ := os.ReadDir(f.root)
	if len(entries) != 0 {
		t.Errorf("failed requests left %d sandboxes behind", len(entries))
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"too large", errors.New(errors.ErrCodeDescriptorTooLarge, "descriptor exceeds limit"), http.StatusBadGateway},
		{"network", errors.New(errors.ErrCodeNetwork, "connection refused"), http.StatusBadGateway},
		{"session build cause", &repository.RepositoryCreationError{Cause: errors.New(errors.ErrCodeSessionBuild, "no sandbox")}, http.StatusServiceUnavailable},
		{"uncoded", io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	s := New(nil, artifact.DefaultRegistry(), log.New(io.Discard))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
