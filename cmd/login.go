package cmd

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/tickeasy/internal/apperr"
	"github.com/joescharf/tickeasy/internal/backend"
	"github.com/joescharf/tickeasy/internal/bridge"
	"github.com/joescharf/tickeasy/internal/models"
)

var (
	loginEmail    string
	loginPassword string
	registerName  string
	whoamiRefresh bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the moderation service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return loginRun(false)
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in with it",
	RunE: func(cmd *cobra.Command, args []string) error {
		return loginRun(true)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return logoutRun()
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in operator",
	RunE: func(cmd *cobra.Command, args []string) error {
		return whoamiRun()
	},
}

var adoptCmd = &cobra.Command{
	Use:   "adopt <url>",
	Short: "Adopt a cross-domain sign-in handoff URL",
	Long: `Adopt a sign-in handoff from a cooperating front-end.

The URL must carry both ?token= and ?userInfo= (percent-encoded JSON).
The session is stored locally and the cleaned URL is printed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return adoptRun(args[0])
	},
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringVarP(&loginEmail, "email", "e", "", "Account email (required)")
		c.Flags().StringVarP(&loginPassword, "password", "p", "", "Account password (required)")
		_ = c.MarkFlagRequired("email")
		_ = c.MarkFlagRequired("password")
	}
	registerCmd.Flags().StringVar(&registerName, "name", "", "Display name")
	whoamiCmd.Flags().BoolVar(&whoamiRefresh, "refresh", false, "Refresh the cached profile from the service")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(adoptCmd)
}

func loginRun(register bool) error {
	if dryRun {
		ui.DryRunMsg("Would sign in as %s against %s", loginEmail, newBackend().BaseURL)
		return nil
	}
	sess, err := cliSession()
	if err != nil {
		return err
	}
	ctx := cmdContext()
	client := newBackend()

	var res *backend.LoginResult
	if register {
		res, err = client.Register(ctx, loginEmail, loginPassword, registerName)
	} else {
		res, err = client.Login(ctx, loginEmail, loginPassword)
	}
	if err != nil {
		return fmt.Errorf("sign in: %s", apperr.Detail(err))
	}

	if err := sess.Login(ctx, res.Token, res.User); err != nil {
		return fmt.Errorf("store session: %w", err)
	}

	actor, err := sess.Actor(ctx)
	if err != nil {
		return err
	}
	ui.Success("Signed in as %s", actorLabel(actor))
	if !actor.Role.CanModerate() && actor.Role != "" {
		ui.Warning("Role %s cannot submit review decisions", actor.Role)
	}
	return nil
}

func logoutRun() error {
	if dryRun {
		ui.DryRunMsg("Would remove the stored session")
		return nil
	}
	sess, err := cliSession()
	if err != nil {
		return err
	}
	if err := sess.Clear(cmdContext()); err != nil {
		return err
	}
	ui.Success("Signed out")
	return nil
}

func whoamiRun() error {
	sess, err := cliSession()
	if err != nil {
		return err
	}
	ctx := cmdContext()

	if whoamiRefresh {
		tok, err := requireToken(sess)
		if err != nil {
			return err
		}
		profile, err := newBackend().Profile(ctx, tok)
		if err != nil {
			return fmt.Errorf("refresh profile: %s", apperr.Detail(err))
		}
		if err := sess.RefreshActor(ctx, profile); err != nil {
			return err
		}
		ui.VerboseLog("Profile refreshed")
	}

	actor, err := sess.Actor(ctx)
	if err != nil {
		if apperr.Is(err, apperr.Unauthenticated) {
			ui.Info("Not signed in")
			return nil
		}
		return err
	}

	fmt.Fprintf(ui.Out, "%-8s %s\n", "Email:", actor.Email)
	if actor.Name != "" {
		fmt.Fprintf(ui.Out, "%-8s %s\n", "Name:", actor.Name)
	}
	if actor.ID != "" {
		fmt.Fprintf(ui.Out, "%-8s %s\n", "ID:", actor.ID)
	}
	role := string(actor.Role)
	if role == "" {
		role = "(unknown)"
	}
	fmt.Fprintf(ui.Out, "%-8s %s\n", "Role:", role)
	return nil
}

func adoptRun(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if dryRun {
		ui.DryRunMsg("Would adopt handoff from %s", u.Host)
		return nil
	}

	sess, err := cliSession()
	if err != nil {
		return err
	}
	if !bridge.New(getLogger(), nil).TryAdoptInboundAuth(cmdContext(), sess, u) {
		return fmt.Errorf("no valid handoff in url: need both %q and %q (JSON) parameters", bridge.TokenParam, bridge.UserInfoParam)
	}

	actor, err := sess.Actor(cmdContext())
	if err != nil {
		return err
	}
	ui.Success("Adopted session for %s", actorLabel(actor))
	fmt.Fprintln(ui.Out, u.String())
	return nil
}

func actorLabel(a *models.Actor) string {
	label := a.Email
	if label == "" {
		label = a.ID
	}
	if label == "" {
		label = "(unknown operator)"
	}
	if a.Role != "" {
		label += " [" + string(a.Role) + "]"
	}
	return label
}
