package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Vasu1712/chatsync/internal/auth"
	"github.com/Vasu1712/chatsync/internal/backend"
)

func newThemeCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:       "theme [light|dark|system]",
		Short:     "Show or change the theme preference",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"light", "dark", "system"},
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.openApp(cmd, appOptions{})
			if err != nil {
				return err
			}
			defer app.Close()
			if len(args) == 0 {
				theme, err := app.Settings.Theme()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), theme)
				return nil
			}

			theme := args[0]
			if err := app.Settings.SetTheme(theme); err != nil {
				return err
			}
			// Signed-out users only keep the local preference.
			if _, err := app.CurrentUser(); err == nil {
				if _, err := app.Backend.UpdateProfile(cmd.Context(), backend.ProfileUpdate{ThemePreference: &theme}); err != nil {
					return err
				}
			} else if !errors.Is(err, auth.ErrNotSignedIn) {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "theme set to %s\n", theme)
			return nil
		},
	}
}
