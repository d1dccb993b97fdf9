package maven

import (
	"strings"

	"github.com/matzehuels/extrepo/pkg/errors"
)

// DefaultType is the artifact type of a coordinate that names none.
const DefaultType = "jar"

// Coordinate identifies an artifact as groupId:artifactId:version[:type].
type Coordinate struct {
	GroupID    string `json:"group_id"`
	ArtifactID string `json:"artifact_id"`
	Version    string `json:"version"`
	Type       string `json:"type,omitempty"` // Empty means DefaultType
}

// ParseCoordinate parses "groupId:artifactId:version[:type]".
// Malformed input is INVALID_COORDINATE.
func ParseCoordinate(s string) (Coordinate, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 3 || len(parts) > 4 {
		return Coordinate{}, errors.New(errors.ErrCodeInvalidCoordinate,
			"invalid coordinate %q (expected groupId:artifactId:version[:type])", s)
	}
	c := Coordinate{GroupID: parts[0], ArtifactID: parts[1], Version: parts[2]}
	if len(parts) == 4 {
		c.Type = parts[3]
	}
	if err := c.Validate(); err != nil {
		return Coordinate{}, err
	}
	return c, nil
}

// Validate checks every segment of the coordinate.
func (c Coordinate) Validate() error {
	if err := errors.ValidateCoordinatePart("groupId", c.GroupID); err != nil {
		return err
	}
	if err := errors.ValidateCoordinatePart("artifactId", c.ArtifactID); err != nil {
		return err
	}
	if err := errors.ValidateCoordinatePart("version", c.Version); err != nil {
		return err
	}
	if c.Type != "" {
		if err := errors.ValidateCoordinatePart("type", c.Type); err != nil {
			return err
		}
	}
	return nil
}

// TypeID returns the artifact type, defaulting to DefaultType.
func (c Coordinate) TypeID() string {
	if c.Type == "" {
		return DefaultType
	}
	return c.Type
}

// String returns the canonical "groupId:artifactId:version[:type]" form.
func (c Coordinate) String() string {
	s := c.GroupID + ":" + c.ArtifactID + ":" + c.Version
	if c.Type != "" {
		s += ":" + c.Type
	}
	return s
}

// Dir returns the repository directory of the coordinate in Maven layout,
// e.g. "org/osgi/osgi.core/8.0.0".
func (c Coordinate) Dir() string {
	return strings.ReplaceAll(c.GroupID, ".", "/") + "/" + c.ArtifactID + "/" + c.Version
}

// DescriptorPath returns the repository path of the coordinate's POM.
func (c Coordinate) DescriptorPath() string {
	return c.Dir() + "/" + c.ArtifactID + "-" + c.Version + ".pom"
}
