package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var completionNoDesc bool

var completionCmd = &cobra.Command{
	Use:   "completion <bash|zsh|fish|powershell>",
	Short: "Generate shell completion scripts",
	Long: `Generate a shell completion script for modhub.

Mod names are completed for enable, disable, remove and open, reading the
content root and the disabled directory at the moment you press TAB.

  bash        source <(modhub completion bash)
  zsh         modhub completion zsh > "${fpath[1]}/_modhub"
  fish        modhub completion fish > ~/.config/fish/completions/modhub.fish
  powershell  modhub completion powershell | Out-String | Invoke-Expression

Deep links are a separate registration with the OS. On Linux, a desktop
entry with

  Exec=modhub link %u
  MimeType=x-scheme-handler/modhub;

followed by 'xdg-mime default modhub.desktop x-scheme-handler/modhub'
routes modhub: links from the browser to 'modhub link'.`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeCompletion(os.Stdout, cmd.Root(), args[0], !completionNoDesc)
	},
}

func init() {
	completionCmd.Flags().BoolVar(&completionNoDesc, "no-descriptions", false, "Leave command descriptions out of the script")
	rootCmd.AddCommand(completionCmd)
}

func writeCompletion(w io.Writer, root *cobra.Command, shell string, desc bool) error {
	switch shell {
	case "bash":
		return root.GenBashCompletionV2(w, desc)
	case "zsh":
		if desc {
			return root.GenZshCompletion(w)
		}
		return root.GenZshCompletionNoDesc(w)
	case "fish":
		return root.GenFishCompletion(w, desc)
	case "powershell":
		if desc {
			return root.GenPowerShellCompletionWithDesc(w)
		}
		return root.GenPowerShellCompletion(w)
	}
	return fmt.Errorf("unsupported shell %q", shell)
}
