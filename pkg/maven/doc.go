// Package maven is a reference resolution engine that reads Maven artifact
// descriptors (POMs) inside a resolution session.
//
// The engine never configures itself: everything it needs comes from the
// [session.Session] it is created with.
//
//   - Requests go through the session's proxy resolver and carry its
//     client identification (see [session.Session.HTTPClient]).
//   - Descriptors are cached under the session's local repository in the
//     standard Maven layout, so nothing survives the session.
//   - Missing or unparsable descriptors are handled according to the
//     session's descriptor policy (DESCRIPTOR_MISSING, DESCRIPTOR_INVALID).
//   - Artifact file names come from the session's artifact type registry.
//   - ${...} expressions are interpolated from session system properties,
//     project fields and POM properties; explicitly cleared session
//     properties are never substituted.
//
// # Usage
//
//	eng, err := maven.New(sess, "https://repo.maven.apache.org/maven2")
//	if err != nil {
//	    return err
//	}
//	coord, err := maven.ParseCoordinate("org.osgi:osgi.core:8.0.0:bundle")
//	if err != nil {
//	    return err
//	}
//	project, err := eng.ReadDescriptor(ctx, coord)
package maven
