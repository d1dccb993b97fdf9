package proxy

import (
	"net/http"
	"sync"
	"testing"
)

func request(t *testing.T, rawURL string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		t.Fatalf("NewRequest(%q): %v", rawURL, err)
	}
	return req
}

func TestFromSettings(t *testing.T) {
	r := FromSettings(Settings{
		Http:    "http://proxy.internal:3128",
		Https:   "http://secure-proxy.internal:3129",
		NoProxy: "nexus.corp,.mirror.corp",
	})

	tests := []struct {
		name string
		url  string
		want string
	}{
		{"http goes through http proxy", "http://repo1.maven.org/maven2/", "http://proxy.internal:3128"},
		{"https goes through https proxy", "https://repo1.maven.org/maven2/", "http://secure-proxy.internal:3129"},
		{"no_proxy host", "https://nexus.corp/repository/public/", ""},
		{"no_proxy domain suffix", "https://eu.mirror.corp/maven2/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Proxy(request(t, tt.url))
			if err != nil {
				t.Fatalf("Proxy() error: %v", err)
			}
			gotStr := ""
			if got != nil {
				gotStr = got.String()
			}
			if gotStr != tt.want {
				t.Errorf("Proxy(%s) = %q, want %q", tt.url, gotStr, tt.want)
			}
		})
	}
}

func TestFromSettingsCopies(t *testing.T) {
	s := Settings{Http: "http://proxy.internal:3128"}
	r := FromSettings(s)
	s.Http = "http://other.internal:1"

	got, err := r.Proxy(request(t, "http://repo1.maven.org/"))
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Host != "proxy.internal:3128" {
		t.Errorf("Proxy() = %v, want proxy.internal:3128", got)
	}
	if r.Settings().Http != "http://proxy.internal:3128" {
		t.Errorf("Settings().Http = %q", r.Settings().Http)
	}
}

func TestHasProxy(t *testing.T) {
	if FromSettings(Settings{}).HasProxy() {
		t.Error("empty settings should not report a proxy")
	}
	if !FromSettings(Settings{Https: "http://p:1"}).HasProxy() {
		t.Error("https proxy should be reported")
	}
}

func TestNilRequest(t *testing.T) {
	got, err := FromSettings(Settings{Http: "http://p:1"}).Proxy(nil)
	if got != nil || err != nil {
		t.Errorf("Proxy(nil) = (%v, %v), want (nil, nil)", got, err)
	}
}

func TestDirect(t *testing.T) {
	got, err := Direct.Proxy(request(t, "http://repo1.maven.org/"))
	if got != nil || err != nil {
		t.Errorf("Direct.Proxy() = (%v, %v), want (nil, nil)", got, err)
	}
}

func TestSharedIsSingleton(t *testing.T) {
	first := Shared()
	req := request(t, "http://repo1.maven.org/")
	var wg sync.WaitGroup
	results := make([]*EnvResolver, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = Shared()
			_, _ = results[i].Proxy(req)
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		if r != first {
			t.Errorf("Shared() call %d returned a different instance", i)
		}
	}
}
