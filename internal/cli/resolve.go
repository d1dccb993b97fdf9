package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/extrepo/pkg/maven"
	"github.com/matzehuels/extrepo/pkg/repository"
)

// resolveResult is the --json output of resolve.
type resolveResult struct {
	Repository   repository.Descriptor `json:"repository"`
	Session      string                `json:"session"`
	ArtifactPath string                `json:"artifact_path"`
	Project      *maven.Project        `json:"project"`
}

// resolveCommand creates the resolve command.
func (c *CLI) resolveCommand() *cobra.Command {
	var (
		remote  string
		repoID  string
		types   []string
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "resolve <groupId:artifactId:version[:type]>",
		Short: "Read an artifact descriptor in a fresh resolution session",
		Long: `Resolve opens the remote repository in a new, sandboxed resolution session,
reads the artifact's descriptor and disposes the session again.

Missing or unparsable descriptors fail the command.`,
		Example: `  extrepo resolve org.osgi:osgi.core:8.0.0:bundle
  extrepo resolve org.example:widgets:1.0:xar --type xar:xar::none
  extrepo resolve com.google.guava:guava:33.0.0-jre --remote https://mirror.example.org/maven2 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			coord, err := maven.ParseCoordinate(args[0])
			if err != nil {
				return err
			}

			rt, err := c.newRuntime(ctx, types)
			if err != nil {
				return err
			}
			defer rt.Close()
			if remote == "" {
				remote = rt.cfg.Remote
			}

			prog := newProgress(rt.logger)
			spin := newSpinnerWithContext(ctx, "Opening "+remote)
			spin.Start()
			defer spin.Stop()

			h, err := rt.factory().Create(ctx, repository.Descriptor{ID: repoID, Type: maven.TypeMaven, URI: remote})
			if err != nil {
				return err
			}
			defer h.Close(ctx)

			eng, ok := h.Engine.(*maven.Engine)
			if !ok {
				return fmt.Errorf("unexpected engine %T", h.Engine)
			}
			path, err := eng.ArtifactPath(coord)
			if err != nil {
				return err
			}

			spin.Update("Reading " + coord.String())
			project, err := eng.ReadDescriptor(ctx, coord)
			if err != nil {
				if spin.Cancelled() {
					return ctx.Err()
				}
				spin.StopWithError("Cannot read " + coord.String())
				return err
			}
			spin.Stop()

			if jsonOut {
				return writeJSON(resolveResult{
					Repository:   h.Descriptor,
					Session:      h.Session.ID,
					ArtifactPath: path,
					Project:      project,
				})
			}
			printProject(coord, project, path, h.Session.ID)
			prog.done("resolved", "coordinate", coord.String())
			return nil
		},
	}

	cmd.Flags().StringVar(&remote, "remote", "", "remote repository URL (default from configuration)")
	cmd.Flags().StringVar(&repoID, "repository-id", "remote", "identifier of the remote repository")
	cmd.Flags().StringArrayVar(&types, "type", nil, "extra artifact type id:extension[:classifier[:language]] (repeatable)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the result as JSON")

	return cmd
}

func printProject(coord maven.Coordinate, p *maven.Project, path, sessionID string) {
	printSuccess("%s", StyleTitle.Render(coord.String()))
	printKeyValue("Name", p.Name)
	printKeyValue("Packaging", p.Packaging)
	printKeyValue("Artifact", path)
	if p.Parent != nil {
		printKeyValue("Parent", p.Parent.GroupID+":"+p.Parent.ArtifactID+":"+p.Parent.Version)
	}
	printKeyValue("Session", sessionID)

	deps := p.RuntimeDependencies()
	printNewline()
	printInfo("%d runtime dependencies", len(deps))
	for _, d := range deps {
		printItem(d.Coordinate().String())
	}
}
