package cli

import (
	"github.com/spf13/cobra"

	versionpkg "github.com/mrz1836/walletlink/internal/version"
	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

// devVersionString is the version reported by builds without linker flags.
const devVersionString = "dev"

// versionCmd prints build information and optionally checks for a newer release.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Show the walletlink version, commit and build date.

With --check the latest GitHub release is looked up and compared with the
running version. Development builds always report an update as available.`,
	Example: `  walletlink version
  walletlink version --check
  walletlink version -o json`,
	Args: cobra.NoArgs,
	RunE: runVersion,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	versionCheck   bool
	releaseChecker = versionpkg.NewChecker(versionpkg.DefaultRepo)
)

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	versionCmd.GroupID = groupConfig
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().BoolVar(&versionCheck, "check", false, "check GitHub for a newer release")
}

// versionView is the JSON form of the version command.
type versionView struct {
	Version string             `json:"version"`
	Commit  string             `json:"commit,omitempty"`
	Date    string             `json:"date,omitempty"`
	Update  *versionpkg.Update `json:"update,omitempty"`
}

func runVersion(cmd *cobra.Command, _ []string) error {
	current := buildInfo.Version
	if current == "" {
		current = devVersionString
	}
	view := versionView{Version: current, Commit: buildInfo.Commit, Date: buildInfo.Date}

	if versionCheck {
		ctx, cancel := commandTimeout(cmd, versionpkg.DefaultTimeout)
		defer cancel()

		u, err := releaseChecker.Check(ctx, current)
		if err != nil {
			return linkerr.WithSuggestion(
				linkerr.WithCause(linkerr.ErrNetworkError, err),
				"Check your internet connection and try again",
			)
		}
		view.Update = &u
	}

	w := cmd.OutOrStdout()
	if formatter != nil && formatter.IsJSON() {
		return writeJSON(w, view)
	}

	out(w, "walletlink %s\n", formatVersion(buildInfo))
	if view.Update == nil {
		return nil
	}
	if view.Update.Available {
		out(w, "Update available: %s -> %s\n", current, view.Update.Latest)
		if view.Update.URL != "" {
			out(w, "  %s\n", view.Update.URL)
		}
		return nil
	}
	outln(w, "walletlink is up to date")
	return nil
}
