package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Vasu1712/chatsync/internal/apperr"
	"github.com/Vasu1712/chatsync/internal/backend"
)

type credentials struct {
	username string
	email    string
	phone    string
	password string
}

func (c *credentials) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&c.username, "username", "u", "", "username")
	f.StringVar(&c.email, "email", "", "email address")
	f.StringVar(&c.phone, "phone", "", "phone number")
	f.StringVarP(&c.password, "password", "p", "", "password")
}

func newRegisterCommand(g *globals) *cobra.Command {
	var creds credentials
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.openApp(cmd, appOptions{})
			if err != nil {
				return err
			}
			defer app.Close()
			sess, err := app.Register(cmd.Context(), backend.RegisterRequest{
				Username:    creds.username,
				Email:       creds.email,
				PhoneNumber: creds.phone,
				Password:    creds.password,
				Password2:   creds.password,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s)\n", sess.Username, sess.UserID)
			return nil
		},
	}
	creds.bind(cmd)
	return cmd
}

func newLoginCommand(g *globals) *cobra.Command {
	var creds credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with a username, email or phone number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if creds.username == "" && creds.email == "" && creds.phone == "" {
				return apperr.InvalidArg("one of --username, --email or --phone is required")
			}
			app, err := g.openApp(cmd, appOptions{})
			if err != nil {
				return err
			}
			defer app.Close()
			sess, err := app.Login(cmd.Context(), backend.LoginRequest{
				Username:    creds.username,
				Email:       creds.email,
				PhoneNumber: creds.phone,
				Password:    creds.password,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (%s)\n", sess.Username, sess.UserID)
			return nil
		},
	}
	creds.bind(cmd)
	return cmd
}

func newLogoutCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.openApp(cmd, appOptions{})
			if err != nil {
				return err
			}
			defer app.Close()
			if err := app.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

func newWhoamiCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.openApp(cmd, appOptions{})
			if err != nil {
				return err
			}
			defer app.Close()
			sess, err := app.CurrentUser()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", sess.UserID, sess.Username)
			return nil
		},
	}
}
