// Package pkg provides the libraries behind extrepo, which opens extension
// repositories in isolated, disposable resolution sessions.
//
// # Overview
//
// Every repository query runs in a session of its own: a private sandbox
// directory acts as the local repository, the session carries the client
// identification and proxy strategy, and it is torn down once the query is
// done. The packages are organized as follows:
//
//  1. [session] - Session builder and disposer
//  2. [repository] - Repository factory binding a session to an engine
//  3. [maven] - Reference engine reading POM descriptors through a session
//  4. [sandbox], [ledger] - Sandbox directories and the live-session ledger
//  5. [artifact], [proxy], [config] - Type registry, proxy and configuration
//  6. [errors], [observability], [httputil], [buildinfo] - Shared plumbing
//
// # Lifecycle
//
//	Descriptor (id, type, URI)
//	         ↓
//	    [repository] Factory.Create
//	         ↓
//	    [session] Builder.Build → sandbox, proxy, user agent, types, policy
//	         ↓
//	    engine (e.g. [maven]) reads descriptors through the session
//	         ↓
//	    Handle.Close → [session] Disposer.Dispose removes the sandbox
//
// # Quick Start
//
//	b, _ := session.NewBuilder(session.Options{})
//	f := repository.NewFactory(b, nil, repository.Engines{
//	    maven.TypeMaven: maven.NewEngineFactory(),
//	})
//	h, err := f.Create(ctx, repository.Descriptor{ID: "central", Type: maven.TypeMaven, URI: maven.CentralURL})
//	if err != nil {
//	    return err
//	}
//	defer h.Close(ctx)
//
//	project, err := h.Engine.(*maven.Engine).ReadDescriptor(ctx, maven.Coordinate{
//	    GroupID: "org.osgi", ArtifactID: "osgi.core", Version: "8.0.0", Type: "bundle",
//	})
//
// [session]: github.com/matzehuels/extrepo/pkg/session
// [repository]: github.com/matzehuels/extrepo/pkg/repository
// [maven]: github.com/matzehuels/extrepo/pkg/maven
// [sandbox]: github.com/matzehuels/extrepo/pkg/sandbox
// [ledger]: github.com/matzehuels/extrepo/pkg/ledger
// [artifact]: github.com/matzehuels/extrepo/pkg/artifact
// [proxy]: github.com/matzehuels/extrepo/pkg/proxy
// [config]: github.com/matzehuels/extrepo/pkg/config
// [errors]: github.com/matzehuels/extrepo/pkg/errors
// [observability]: github.com/matzehuels/extrepo/pkg/observability
// [httputil]: github.com/matzehuels/extrepo/pkg/httputil
// [buildinfo]: github.com/matzehuels/extrepo/pkg/buildinfo
package pkg
