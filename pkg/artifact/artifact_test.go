package artifact

import (
	"sync"
	"testing"

	"github.com/matzehuels/extrepo/pkg/errors"
)

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	for _, id := range []string{"pom", "jar", "maven-plugin", "test-jar", "java-source", "war"} {
		if !r.Has(id) {
			t.Errorf("default registry should know %q", id)
		}
	}
	for _, id := range []string{"bundle", "eclipse-plugin"} {
		if r.Has(id) {
			t.Errorf("default registry should not know domain type %q", id)
		}
	}

	if DefaultRegistry() != r {
		t.Error("DefaultRegistry should return the shared instance")
	}
}

func TestExtend(t *testing.T) {
	base := DefaultRegistry()
	baseLen := base.Len()

	r, err := Extend(base, DomainTypes()...)
	if err != nil {
		t.Fatalf("Extend() error: %v", err)
	}

	if r.Len() != baseLen+2 {
		t.Errorf("Len() = %d, want %d", r.Len(), baseLen+2)
	}

	for _, id := range []string{"bundle", "eclipse-plugin"} {
		typ, ok := r.Get(id)
		if !ok {
			t.Fatalf("extended registry should resolve %q", id)
		}
		if typ.Extension != "jar" || typ.Classifier != "" || typ.Language != "java" {
			t.Errorf("Get(%q) = %+v, want jar/\"\"/java", id, typ)
		}
	}

	// Base kinds still resolve identically.
	for _, id := range base.IDs() {
		want, _ := base.Get(id)
		got, ok := r.Get(id)
		if !ok || got != want {
			t.Errorf("Get(%q) = %+v, want %+v", id, got, want)
		}
	}

	// Base is untouched.
	if base.Len() != baseLen || base.Has("bundle") {
		t.Error("Extend must not modify the base registry")
	}
}

func TestExtendDuplicate(t *testing.T) {
	tests := []struct {
		name      string
		additions []Type
	}{
		{"duplicate of base", []Type{NewType("jar", "jar", "", "java")}},
		{"duplicate within additions", []Type{
			NewType("bundle", "jar", "", "java"),
			NewType("bundle", "zip", "", "java"),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Extend(DefaultRegistry(), tt.additions...)
			if err == nil {
				t.Fatal("Extend() should fail on duplicates")
			}
			if r != nil {
				t.Error("Extend() should not return a registry on failure")
			}
			if !errors.Is(err, errors.ErrCodeConfig) {
				t.Errorf("code = %v, want %v", errors.GetCode(err), errors.ErrCodeConfig)
			}
		})
	}
}

func TestExtendInvalid(t *testing.T) {
	tests := []struct {
		name string
		typ  Type
	}{
		{"empty id", Type{Extension: "jar"}},
		{"empty extension", Type{ID: "xar"}},
		{"bad id", Type{ID: "Not Valid", Extension: "jar"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extend(nil, tt.typ)
			if !errors.Is(err, errors.ErrCodeConfig) {
				t.Errorf("Extend() error = %v, want CONFIG_ERROR", err)
			}
		})
	}
}

func TestExtendConcurrent(t *testing.T) {
	base := DefaultRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := Extend(base, DomainTypes()...); err != nil {
				t.Errorf("Extend() error: %v", err)
			}
		}()
	}
	wg.Wait()

	if base.Has("bundle") {
		t.Error("concurrent extensions must not leak into the base registry")
	}
}

func TestNilRegistry(t *testing.T) {
	var r *Registry
	if r.Len() != 0 || r.Has("jar") || r.IDs() != nil || r.Types() != nil {
		t.Error("nil registry should behave as empty")
	}
}

func TestTypesOrder(t *testing.T) {
	r, err := NewRegistry(NewType("b", "jar", "", "java"), NewType("a", "zip", "", ""))
	if err != nil {
		t.Fatal(err)
	}
	ids := r.IDs()
	if len(ids) != 2 || ids[0] != "b" || ids[1] != "a" {
		t.Errorf("IDs() = %v, want [b a]", ids)
	}
	types := r.Types()
	if types[1].Extension != "zip" {
		t.Errorf("Types()[1] = %+v", types[1])
	}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"jar", "lib-1.0.jar"},
		{"pom", "lib-1.0.pom"},
		{"test-jar", "lib-1.0-tests.jar"},
		{"java-source", "lib-1.0-sources.jar"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			typ, ok := DefaultRegistry().Get(tt.id)
			if !ok {
				t.Fatalf("unknown type %q", tt.id)
			}
			if got := typ.Filename("lib", "1.0"); got != tt.want {
				t.Errorf("Filename() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		def     string
		want    Type
		wantErr bool
	}{
		{"xar:xar", Type{ID: "xar", Extension: "xar", Language: "java", ConstitutesBuildPath: true}, false},
		{"webjar:jar:web", Type{ID: "webjar", Extension: "jar", Classifier: "web", Language: "java", ConstitutesBuildPath: true}, false},
		{"skin:zip::none", Type{ID: "skin", Extension: "zip", Language: "none", ConstitutesBuildPath: true}, false},
		{"noext", Type{}, true},
		{"a:b:c:d:e", Type{}, true},
		{"Bad:jar", Type{}, true},
		{"empty:", Type{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.def, func(t *testing.T) {
			got, err := ParseType(tt.def)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseType() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, errors.ErrCodeConfig) {
					t.Errorf("error code = %q, want CONFIG_ERROR", errors.GetCode(err))
				}
				return
			}
			if got != tt.want {
				t.Errorf("ParseType() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
