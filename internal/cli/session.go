package cli

import (
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/matzehuels/extrepo/pkg/session"
)

// sessionInfo is the --json output of session build.
type sessionInfo struct {
	ID               string                   `json:"id"`
	LocalRepository  string                   `json:"local_repository"`
	UserAgent        string                   `json:"user_agent"`
	Types            []string                 `json:"types"`
	SystemProperties map[string]string        `json:"system_properties"`
	Cleared          []string                 `json:"cleared_properties"`
	DescriptorPolicy session.DescriptorPolicy `json:"descriptor_policy"`
	Kept             bool                     `json:"kept"`
}

// sessionCommand creates the session command group.
func (c *CLI) sessionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect resolution sessions",
	}
	cmd.AddCommand(c.sessionBuildCommand())
	return cmd
}

// sessionBuildCommand creates the "session build" subcommand.
func (c *CLI) sessionBuildCommand() *cobra.Command {
	var (
		keep    bool
		types   []string
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a resolution session and show its configuration",
		Long: `Build assembles a resolution session from the current configuration,
prints it and disposes it again. With --keep the sandbox is left on disk;
remove it later with "extrepo sandbox sweep".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := c.newRuntime(ctx, types)
			if err != nil {
				return err
			}
			defer rt.Close()

			prog := newProgress(rt.logger)
			sess, err := rt.builder.Build(ctx)
			if err != nil {
				return err
			}
			if !keep {
				defer rt.builder.Disposer().Dispose(ctx, sess)
			}

			info := describeSession(sess, keep)
			if jsonOut {
				return writeJSON(info)
			}

			printSuccess("Session %s", StyleTitle.Render(info.ID))
			printKeyValue("Sandbox", info.LocalRepository)
			printKeyValue("User agent", info.UserAgent)
			printKeyValue("Types", joinOrDash(info.Types))
			printKeyValue("Cleared", joinOrDash(info.Cleared))
			printKeyValue("Strict", yesNo(info.DescriptorPolicy.Strict()))
			for _, k := range slices.Sorted(maps.Keys(info.SystemProperties)) {
				printDetail("%s=%s", k, info.SystemProperties[k])
			}
			if keep {
				printWarning("Sandbox kept at %s", info.LocalRepository)
			}
			prog.done("session built", "session", info.ID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&keep, "keep", false, "keep the sandbox instead of disposing the session")
	cmd.Flags().StringArrayVar(&types, "type", nil, "extra artifact type id:extension[:classifier[:language]] (repeatable)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the session as JSON")

	return cmd
}

func describeSession(s *session.Session, kept bool) sessionInfo {
	var cleared []string
	for name := range s.SystemProperties {
		if s.IsCleared(name) {
			cleared = append(cleared, name)
		}
	}
	slices.Sort(cleared)
	return sessionInfo{
		ID:               s.ID,
		LocalRepository:  s.LocalRepository,
		UserAgent:        s.UserAgent,
		Types:            s.Types.IDs(),
		SystemProperties: s.Properties(),
		Cleared:          cleared,
		DescriptorPolicy: s.DescriptorPolicy,
		Kept:             kept,
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
