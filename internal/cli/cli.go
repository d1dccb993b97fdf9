// Package cli implements the extrepo command-line interface.
//
// # Commands
//
//   - resolve: Read an artifact descriptor in a fresh resolution session
//   - session build: Build a session and show its configuration
//   - types list: List the artifact types sessions recognize
//   - sandbox sweep: Remove sandboxes orphaned by crashed processes
//   - sandbox path: Print the directory sandboxes are created in
//   - serve: Serve the repository factory over HTTP
//   - completion: Generate shell completion scripts
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. The logger is
// passed through context.Context to every command.
package cli

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/extrepo/pkg/artifact"
	"github.com/matzehuels/extrepo/pkg/buildinfo"
	"github.com/matzehuels/extrepo/pkg/config"
	"github.com/matzehuels/extrepo/pkg/ledger"
	"github.com/matzehuels/extrepo/pkg/maven"
	"github.com/matzehuels/extrepo/pkg/repository"
	"github.com/matzehuels/extrepo/pkg/session"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "extrepo"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger     *log.Logger
	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "extrepo opens extension repositories in isolated resolution sessions",
		Long:         `extrepo creates a sandboxed, configured resolution session for every repository query and tears it down afterward.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "configuration file (default $XDG_CONFIG_HOME/extrepo/config.toml)")

	root.AddCommand(c.resolveCommand())
	root.AddCommand(c.sessionCommand())
	root.AddCommand(c.typesCommand())
	root.AddCommand(c.sandboxCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runtime
// =============================================================================

// runtime bundles the configuration-derived collaborators of a command.
type runtime struct {
	cfg     config.Config
	ledger  ledger.Ledger
	builder *session.Builder
	logger  *log.Logger
}

// newRuntime loads configuration, opens the ledger and creates the session
// builder. extraTypes are --type definitions added on top of the configured
// types. The caller must Close the runtime.
func (c *CLI) newRuntime(ctx context.Context, extraTypes []string) (*runtime, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	for _, def := range extraTypes {
		t, err := artifact.ParseType(def)
		if err != nil {
			return nil, err
		}
		cfg.Types = append(cfg.Types, t)
	}

	logger := loggerFromContext(ctx)
	l, err := cfg.OpenLedger(ctx)
	if err != nil {
		return nil, err
	}
	b, err := session.NewBuilder(cfg.SessionOptions(l, logger))
	if err != nil {
		if l != nil {
			l.Close()
		}
		return nil, err
	}
	logger.Debug("configuration loaded", "sandbox_root", b.Store().Root(), "ledger", cfg.Ledger.Backend)
	return &runtime{cfg: cfg, ledger: l, builder: b, logger: logger}, nil
}

// factory returns a repository factory serving the maven repository type.
func (r *runtime) factory() *repository.Factory {
	engines := repository.Engines{
		maven.TypeMaven: maven.NewEngineFactory(maven.WithLogger(r.logger)),
	}
	return repository.NewFactory(r.builder, r.builder.Disposer(), engines, repository.WithLogger(r.logger))
}

// Close releases the ledger connection.
func (r *runtime) Close() {
	if r.ledger != nil {
		if err := r.ledger.Close(); err != nil {
			r.logger.Warn("close ledger", "err", err)
		}
	}
}
