package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/apply-cli/internal/profile"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage the applicant profile",
}

var profileCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Report required profile fields that are empty or still placeholders",
	RunE: func(cmd *cobra.Command, args []string) error {
		return checkProfile(cmd.OutOrStdout(), cfg.Profile.Path)
	},
}

func checkProfile(out io.Writer, path string) error {
	p, err := profile.Load(path)
	if err != nil {
		return err
	}

	missing := p.Validate()
	if len(missing) == 0 {
		_, err := fmt.Fprintf(out, "Profile %s is complete (%s).\n", path, p.FullName())
		return err
	}
	_, _ = fmt.Fprintf(out, "Profile %s is missing:\n  %s\n", path, strings.Join(missing, "\n  "))
	return eris.Errorf("profile: %d required fields missing", len(missing))
}

func init() {
	profileCmd.AddCommand(profileCheckCmd)
	rootCmd.AddCommand(profileCmd)
}
