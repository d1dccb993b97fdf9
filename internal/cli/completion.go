package cli

import (
	"io"

	"github.com/spf13/cobra"
)

// completionGenerators writes the completion script of one shell.
var completionGenerators = map[string]func(root *cobra.Command, w io.Writer) error{
	"bash": func(root *cobra.Command, w io.Writer) error { return root.GenBashCompletionV2(w, true) },
	"zsh":  func(root *cobra.Command, w io.Writer) error { return root.GenZshCompletion(w) },
	"fish": func(root *cobra.Command, w io.Writer) error { return root.GenFishCompletion(w, true) },
	"powershell": func(root *cobra.Command, w io.Writer) error {
		return root.GenPowerShellCompletionWithDesc(w)
	},
}

// completionCommand creates the completion command.
func (c *CLI) completionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion bash|zsh|fish|powershell",
		Short: "Print a shell completion script",
		Long: `Completion prints a completion script for the given shell to stdout.

Load it into the current shell:

  bash:        source <(extrepo completion bash)
  zsh:         source <(extrepo completion zsh)
  fish:        extrepo completion fish | source
  powershell:  extrepo completion powershell | Out-String | Invoke-Expression

To load it in every new shell, write the script to the shell's completion
directory instead, e.g. ~/.config/fish/completions/extrepo.fish or a
directory on zsh's $fpath named _extrepo.`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return completionGenerators[args[0]](cmd.Root(), stdout)
		},
	}
}
