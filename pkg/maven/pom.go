package maven

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
)

// Project is a parsed artifact descriptor.
//
// Zero values: Parent is nil when the POM declares none; Properties and
// Dependencies may be empty. Coordinates inherited from the parent are filled
// in by [Parse].
type Project struct {
	GroupID      string            `json:"group_id"`
	ArtifactID   string            `json:"artifact_id"`
	Version      string            `json:"version"`
	Packaging    string            `json:"packaging"` // "jar" when the POM declares none
	Name         string            `json:"name,omitempty"`
	Description  string            `json:"description,omitempty"`
	URL          string            `json:"url,omitempty"`
	Parent       *Parent           `json:"parent,omitempty"`
	Properties   map[string]string `json:"properties,omitempty"`
	Dependencies []Dependency      `json:"dependencies,omitempty"`
}

// Parent references a parent POM.
type Parent struct {
	GroupID    string `json:"group_id"`
	ArtifactID string `json:"artifact_id"`
	Version    string `json:"version"`
}

// Dependency is a declared dependency of a project.
type Dependency struct {
	GroupID    string `json:"group_id"`
	ArtifactID string `json:"artifact_id"`
	Version    string `json:"version,omitempty"`
	Type       string `json:"type,omitempty"`
	Classifier string `json:"classifier,omitempty"`
	Scope      string `json:"scope,omitempty"`
	Optional   bool   `json:"optional,omitempty"`
}

// Coordinate returns the coordinate of the project itself.
func (p *Project) Coordinate() Coordinate {
	return Coordinate{GroupID: p.GroupID, ArtifactID: p.ArtifactID, Version: p.Version, Type: p.Packaging}
}

// Coordinate returns the dependency's coordinate.
func (d Dependency) Coordinate() Coordinate {
	return Coordinate{GroupID: d.GroupID, ArtifactID: d.ArtifactID, Version: d.Version, Type: d.Type}
}

// RuntimeDependencies returns the dependencies needed at runtime: test,
// provided and optional dependencies are skipped, as are dependencies whose
// coordinates still contain unresolved expressions. Duplicates are dropped.
func (p *Project) RuntimeDependencies() []Dependency {
	var deps []Dependency
	seen := make(map[string]bool)
	for _, d := range p.Dependencies {
		if d.Scope == "test" || d.Scope == "provided" || d.Optional {
			continue
		}
		if hasExpression(d.GroupID) || hasExpression(d.ArtifactID) {
			continue
		}
		key := d.GroupID + ":" + d.ArtifactID
		if !seen[key] {
			seen[key] = true
			deps = append(deps, d)
		}
	}
	return deps
}

// Parse decodes a POM document. Documents whose root element is not
// <project> or that name no artifactId are rejected.
func Parse(data []byte) (*Project, error) {
	var raw pomProject
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode pom: %w", err)
	}
	if strings.TrimSpace(raw.ArtifactID) == "" {
		return nil, fmt.Errorf("decode pom: missing artifactId")
	}

	p := &Project{
		GroupID:     strings.TrimSpace(raw.GroupID),
		ArtifactID:  strings.TrimSpace(raw.ArtifactID),
		Version:     strings.TrimSpace(raw.Version),
		Packaging:   strings.TrimSpace(raw.Packaging),
		Name:        strings.TrimSpace(raw.Name),
		Description: strings.TrimSpace(raw.Description),
		URL:         strings.TrimSpace(raw.URL),
	}
	if p.Packaging == "" {
		p.Packaging = DefaultType
	}
	if raw.Parent != nil {
		p.Parent = &Parent{
			GroupID:    strings.TrimSpace(raw.Parent.GroupID),
			ArtifactID: strings.TrimSpace(raw.Parent.ArtifactID),
			Version:    strings.TrimSpace(raw.Parent.Version),
		}
		if p.GroupID == "" {
			p.GroupID = p.Parent.GroupID
		}
		if p.Version == "" {
			p.Version = p.Parent.Version
		}
	}
	if len(raw.Properties.Entries) > 0 {
		p.Properties = make(map[string]string, len(raw.Properties.Entries))
		for _, e := range raw.Properties.Entries {
			p.Properties[e.XMLName.Local] = strings.TrimSpace(e.Value)
		}
	}
	for _, d := range raw.Dependencies {
		p.Dependencies = append(p.Dependencies, Dependency{
			GroupID:    strings.TrimSpace(d.GroupID),
			ArtifactID: strings.TrimSpace(d.ArtifactID),
			Version:    strings.TrimSpace(d.Version),
			Type:       strings.TrimSpace(d.Type),
			Classifier: strings.TrimSpace(d.Classifier),
			Scope:      strings.TrimSpace(d.Scope),
			Optional:   strings.TrimSpace(d.Optional) == "true",
		})
	}
	return p, nil
}

// LookupFunc resolves an interpolation expression name.
type LookupFunc func(name string) (string, bool)

var expressionRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// maxInterpolationDepth bounds nested property references.
const maxInterpolationDepth = 10

func hasExpression(s string) bool {
	return strings.Contains(s, "${")
}

// interpolate replaces ${name} expressions in s. Unresolvable expressions
// are left as they are.
func interpolate(s string, lookup LookupFunc) string {
	for range maxInterpolationDepth {
		if !hasExpression(s) {
			return s
		}
		next := expressionRegex.ReplaceAllStringFunc(s, func(m string) string {
			if v, ok := lookup(m[2 : len(m)-1]); ok {
				return v
			}
			return m
		})
		if next == s {
			return s
		}
		s = next
	}
	return s
}

// Interpolate resolves ${...} expressions in the project's coordinates,
// metadata and dependencies using lookup.
func (p *Project) Interpolate(lookup LookupFunc) {
	for _, f := range []*string{&p.GroupID, &p.ArtifactID, &p.Version, &p.Name, &p.Description, &p.URL} {
		*f = interpolate(*f, lookup)
	}
	for i := range p.Dependencies {
		d := &p.Dependencies[i]
		for _, f := range []*string{&d.GroupID, &d.ArtifactID, &d.Version, &d.Type, &d.Classifier, &d.Scope} {
			*f = interpolate(*f, lookup)
		}
	}
}

// modelLookup resolves project.* (and the pom.* alias) fields and the POM's
// own properties.
func (p *Project) modelLookup(name string) (string, bool) {
	field := name
	if rest, ok := strings.CutPrefix(name, "project."); ok {
		field = rest
	} else if rest, ok := strings.CutPrefix(name, "pom."); ok {
		field = rest
	} else {
		if v, ok := p.Properties[name]; ok {
			return v, true
		}
		// Legacy unprefixed aliases of the coordinate fields.
		switch name {
		case "groupId", "artifactId", "version", "packaging":
		default:
			return "", false
		}
	}

	var v string
	switch field {
	case "groupId":
		v = p.GroupID
	case "artifactId":
		v = p.ArtifactID
	case "version":
		v = p.Version
	case "packaging":
		v = p.Packaging
	case "name":
		v = p.Name
	case "parent.groupId":
		if p.Parent != nil {
			v = p.Parent.GroupID
		}
	case "parent.version":
		if p.Parent != nil {
			v = p.Parent.Version
		}
	}
	return v, v != ""
}

type pomProject struct {
	XMLName      xml.Name        `xml:"project"`
	GroupID      string          `xml:"groupId"`
	ArtifactID   string          `xml:"artifactId"`
	Version      string          `xml:"version"`
	Packaging    string          `xml:"packaging"`
	Name         string          `xml:"name"`
	Description  string          `xml:"description"`
	URL          string          `xml:"url"`
	Parent       *pomParent      `xml:"parent"`
	Properties   pomProperties   `xml:"properties"`
	Dependencies []pomDependency `xml:"dependencies>dependency"`
}

type pomParent struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
}

type pomProperties struct {
	Entries []pomProperty `xml:",any"`
}

type pomProperty struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

type pomDependency struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
	Type       string `xml:"type"`
	Classifier string `xml:"classifier"`
	Scope      string `xml:"scope"`
	Optional   string `xml:"optional"`
}
