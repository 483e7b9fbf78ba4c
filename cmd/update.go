package cmd

import (
	"fmt"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"
)

const releaseRepository = "kyubik/qbitbot"

var checkOnly bool

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update kyubik to the latest release",
	Long:  `Download the latest GitHub release of kyubik and replace the running executable.`,
	Args:  cobra.NoArgs,
	RunE:  runUpdate,
}

func init() {
	rootCmd.AddCommand(updateCmd)

	updateCmd.Flags().BoolVar(&checkOnly, "check", false, "only report whether an update is available")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	latest, found, err := selfupdate.DetectLatest(ctx, selfupdate.ParseSlug(releaseRepository))
	if err != nil {
		return fmt.Errorf("failed to detect latest version: %w", err)
	}
	if !found {
		return fmt.Errorf("no release found for this platform")
	}

	if version != "dev" && latest.LessOrEqual(version) {
		fmt.Fprintf(out, "kyubik %s is up to date\n", version)
		return nil
	}

	if checkOnly {
		fmt.Fprintf(out, "kyubik %s is available (current: %s)\n", latest.Version(), version)
		return nil
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}

	if err := selfupdate.UpdateTo(ctx, latest.AssetURL, latest.AssetName, exe); err != nil {
		return fmt.Errorf("failed to update executable: %w", err)
	}

	fmt.Fprintf(out, "Updated kyubik to %s\n", latest.Version())
	return nil
}
