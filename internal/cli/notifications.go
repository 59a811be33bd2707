package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Vasu1712/chatsync/internal/bg"
	"github.com/Vasu1712/chatsync/internal/models"
	"github.com/Vasu1712/chatsync/internal/reconciler"
)

func newNotificationsCommand(g *globals) *cobra.Command {
	var (
		markAll bool
		watch   bool
	)
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "List notifications, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := &lockedWriter{w: cmd.OutOrStdout()}
			opts := appOptions{runner: bg.Sync{}}
			if watch {
				opts = appOptions{alerter: reconciler.AlertFunc(func(n models.Notification) {
					fmt.Fprintf(out, "new: %s\n", n.Message)
				})}
			}
			app, err := g.openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer app.Close()
			center, err := app.OpenNotifications(cmd.Context())
			if err != nil {
				return err
			}
			defer center.Close()

			if markAll {
				center.MarkAllAsRead()
			}
			for _, n := range center.Notifications() {
				printNotification(out, n)
			}
			fmt.Fprintf(out, "%d unread\n", center.Unread())
			if !watch {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().BoolVar(&markAll, "mark-all", false, "mark every notification as read")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep running and print new notifications")
	return cmd
}

func printNotification(out io.Writer, n models.Notification) {
	mark := " "
	if !n.IsRead {
		mark = "*"
	}
	fmt.Fprintf(out, "%s %s [%s] %s  %s\n", mark, n.ID, n.Type, n.Message, humanize.Time(n.CreatedAt))
}
