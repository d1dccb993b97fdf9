// Package artifact describes the kinds of artifacts a resolution session can
// recognize.
//
// A [Type] maps a packaging identifier such as "jar" or "eclipse-plugin" to
// the file extension, classifier and language of the artifact it produces.
// Types are collected in a [Registry]. Registries are immutable once built:
// [Extend] never touches its base and always returns a new registry, so a base
// registry can be shared by any number of concurrent session builds.
//
// # Usage
//
//	types, err := artifact.Extend(artifact.DefaultRegistry(), artifact.DomainTypes()...)
//	if err != nil {
//	    return err // CONFIG_ERROR on duplicates
//	}
//	t, ok := types.Get("bundle")
//	fmt.Println(t.Filename("commons-io", "2.15.1")) // commons-io-2.15.1.jar
package artifact

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/matzehuels/extrepo/pkg/errors"
)

// Type describes a recognized kind of resolvable artifact.
//
// Zero values: Classifier and Language may be empty; ID and Extension are
// never empty in a valid Type. A Type is a value and is safe to copy.
type Type struct {
	ID                   string `toml:"id" json:"id"`                                         // Packaging identifier (e.g., "jar", "bundle")
	Extension            string `toml:"extension" json:"extension"`                           // File extension without the dot (e.g., "jar")
	Classifier           string `toml:"classifier" json:"classifier,omitempty"`               // Optional classifier (e.g., "sources")
	Language             string `toml:"language" json:"language,omitempty"`                   // Language of the artifact (e.g., "java", "none")
	ConstitutesBuildPath bool   `toml:"constitutes_build_path" json:"constitutes_build_path"` // Whether the artifact goes on a build path
	IncludesDependencies bool   `toml:"includes_dependencies" json:"includes_dependencies"`   // Whether the artifact bundles its dependencies
}

// NewType creates a java build-path Type, the common case for jar-packaged
// kinds.
func NewType(id, extension, classifier, language string) Type {
	return Type{
		ID:                   id,
		Extension:            extension,
		Classifier:           classifier,
		Language:             language,
		ConstitutesBuildPath: true,
	}
}

// Validate checks that the Type can be registered.
// Failures are CONFIG_ERROR.
func (t Type) Validate() error {
	if err := errors.ValidateTypeID(t.ID); err != nil {
		return err
	}
	if t.Extension == "" {
		return errors.New(errors.ErrCodeConfig, "artifact type %q has no extension", t.ID)
	}
	return nil
}

// ParseType parses a compact type definition of the form
// "id:extension[:classifier[:language]]", as accepted by the --type flag.
// The language defaults to "java".
func ParseType(def string) (Type, error) {
	parts := strings.Split(def, ":")
	if len(parts) < 2 || len(parts) > 4 {
		return Type{}, errors.New(errors.ErrCodeConfig,
			"invalid artifact type %q (expected id:extension[:classifier[:language]])", def)
	}
	t := NewType(parts[0], parts[1], "", "java")
	if len(parts) > 2 {
		t.Classifier = parts[2]
	}
	if len(parts) > 3 && parts[3] != "" {
		t.Language = parts[3]
	}
	if err := t.Validate(); err != nil {
		return Type{}, err
	}
	return t, nil
}

// Filename returns the repository file name for an artifact of this type,
// following the Maven layout: artifactId-version[-classifier].extension.
func (t Type) Filename(artifactID, version string) string {
	if t.Classifier != "" {
		return fmt.Sprintf("%s-%s-%s.%s", artifactID, version, t.Classifier, t.Extension)
	}
	return fmt.Sprintf("%s-%s.%s", artifactID, version, t.Extension)
}

// Registry resolves artifact types by ID.
// A Registry is immutable and safe for concurrent use.
type Registry struct {
	types map[string]Type
	order []string
}

// NewRegistry creates a Registry holding types.
// Invalid or duplicate types are CONFIG_ERROR.
func NewRegistry(types ...Type) (*Registry, error) {
	return Extend(nil, types...)
}

// Extend returns a new Registry that resolves every type in base plus
// additions. base is never modified and may be nil.
//
// An addition whose ID is already known, either in base or earlier in
// additions, is a CONFIG_ERROR; types are never silently overwritten.
func Extend(base *Registry, additions ...Type) (*Registry, error) {
	r := &Registry{types: make(map[string]Type, base.Len()+len(additions))}
	if base != nil {
		for _, id := range base.order {
			r.types[id] = base.types[id]
		}
		r.order = slices.Clone(base.order)
	}

	for _, t := range additions {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, exists := r.types[t.ID]; exists {
			return nil, errors.New(errors.ErrCodeConfig, "duplicate artifact type %q", t.ID)
		}
		r.types[t.ID] = t
		r.order = append(r.order, t.ID)
	}
	return r, nil
}

// Get returns the Type registered under id.
func (r *Registry) Get(id string) (Type, bool) {
	if r == nil {
		return Type{}, false
	}
	t, ok := r.types[id]
	return t, ok
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// Len returns the number of registered types. A nil Registry is empty.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// IDs returns the registered IDs in registration order.
func (r *Registry) IDs() []string {
	if r == nil {
		return nil
	}
	return slices.Clone(r.order)
}

// Types returns the registered types in registration order.
func (r *Registry) Types() []Type {
	if r == nil {
		return nil
	}
	out := make([]Type, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.types[id])
	}
	return out
}

// defaultTypes are the packaging kinds every Maven repository system knows.
var defaultTypes = []Type{
	{ID: "pom", Extension: "pom", Language: "none"},
	NewType("maven-plugin", "jar", "", "java"),
	NewType("jar", "jar", "", "java"),
	NewType("ejb", "jar", "", "java"),
	NewType("ejb-client", "jar", "client", "java"),
	NewType("test-jar", "jar", "tests", "java"),
	NewType("javadoc", "jar", "javadoc", "java"),
	{ID: "java-source", Extension: "jar", Classifier: "sources", Language: "java"},
	{ID: "war", Extension: "war", Language: "java", IncludesDependencies: true},
	{ID: "ear", Extension: "ear", Language: "java", IncludesDependencies: true},
	{ID: "rar", Extension: "rar", Language: "java", IncludesDependencies: true},
	{ID: "par", Extension: "par", Language: "java", IncludesDependencies: true},
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	r, err := NewRegistry(defaultTypes...)
	if err != nil {
		panic(fmt.Sprintf("artifact: invalid default types: %v", err))
	}
	return r
})

// DefaultRegistry returns the shared base registry of standard Maven kinds.
// It is immutable; use [Extend] to add kinds for a session.
func DefaultRegistry() *Registry {
	return defaultRegistry()
}

// DomainTypes returns the extra kinds every session recognizes on top of the
// base registry: OSGi bundles and Eclipse plugins, both packaged as jars.
func DomainTypes() []Type {
	return []Type{
		NewType("bundle", "jar", "", "java"),
		NewType("eclipse-plugin", "jar", "", "java"),
	}
}
