package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/tickeasy/internal/apperr"
	"github.com/joescharf/tickeasy/internal/models"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage platform users",
}

var userRoleCmd = &cobra.Command{
	Use:   "role <user-id> <user|admin|superuser>",
	Short: "Change a user's role (superuser only)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return userRoleRun(args[0], args[1])
	},
}

func init() {
	userCmd.AddCommand(userRoleCmd)
	rootCmd.AddCommand(userCmd)
}

func userRoleRun(userID, roleArg string) error {
	role := models.Role(strings.ToLower(strings.TrimSpace(roleArg)))
	if !role.Valid() {
		return fmt.Errorf("invalid role %q (use user, admin, or superuser)", roleArg)
	}

	if dryRun {
		ui.DryRunMsg("Would set role of %s to %s", userID, role)
		return nil
	}

	sess, err := cliSession()
	if err != nil {
		return err
	}
	tok, err := requireToken(sess)
	if err != nil {
		return err
	}

	u, err := newBackend().UpdateUserRole(cmdContext(), tok, userID, role)
	if err != nil {
		return fmt.Errorf("update role: %s", apperr.Detail(err))
	}
	who := u.Email
	if who == "" {
		who = u.UserID
	}
	ui.Success("%s is now %s", who, u.Role)
	return nil
}
