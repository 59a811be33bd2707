package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Vasu1712/chatsync/internal/apperr"
	"github.com/Vasu1712/chatsync/internal/backend"
	"github.com/Vasu1712/chatsync/internal/bg"
	"github.com/Vasu1712/chatsync/internal/models"
	"github.com/Vasu1712/chatsync/internal/session"
)

func newConversationsCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"ls"},
		Short:   "List conversations, most recent first",
		Args:    cobra.NoArgs,
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
			convs, err := app.ListConversations(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, c := range convs {
				fmt.Fprintf(out, "%s  %s  %d unread  %s\n", c.ID, title(c, sess.UserID), c.UnreadCount, humanize.Time(c.UpdatedAt))
			}
			return nil
		},
	}
}

// title names a conversation after the other participants.
func title(c models.Conversation, self string) string {
	if c.Name != "" {
		return c.Name
	}
	var names []string
	for _, p := range c.Participants {
		if p.ID != self {
			names = append(names, p.Username)
		}
	}
	if len(names) == 0 {
		return "(just you)"
	}
	return strings.Join(names, ", ")
}

func newStartCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "start <user-id>",
		Short: "Start (or find) the direct conversation with a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.openApp(cmd, appOptions{})
			if err != nil {
				return err
			}
			defer app.Close()
			conv, err := app.StartConversation(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), conv.ID)
			return nil
		},
	}
}

func newSendCommand(g *globals) *cobra.Command {
	var (
		replyTo string
		parent  string
		attach  string
	)
	cmd := &cobra.Command{
		Use:   "send <conversation-id> [text...]",
		Short: "Send a message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			draft := session.Draft{
				Content:         strings.Join(args[1:], " "),
				ReplyToID:       replyTo,
				ParentMessageID: parent,
			}
			if attach != "" {
				data, err := os.ReadFile(attach)
				if err != nil {
					return fmt.Errorf("read attachment: %w", err)
				}
				draft.Attachment = &backend.File{Name: filepath.Base(attach), Data: data}
			}

			// Sync so the send has settled before the view closes.
			app, err := g.openApp(cmd, appOptions{runner: bg.Sync{}})
			if err != nil {
				return err
			}
			defer app.Close()
			conv, err := app.OpenConversation(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer conv.Close()

			pending, err := conv.Send(cmd.Context(), draft)
			if err != nil {
				return err
			}
			for _, m := range conv.Messages() {
				if m.TempID != pending.TempID {
					continue
				}
				if m.Status == models.StatusFailed {
					return apperr.Unavailable("message was not delivered", nil)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "sent %s\n", m.ID)
				return nil
			}
			return apperr.Internal("sent message missing from the conversation")
		},
	}
	f := cmd.Flags()
	f.StringVar(&replyTo, "reply-to", "", "id of the message being replied to")
	f.StringVar(&parent, "thread", "", "id of the thread's parent message")
	f.StringVar(&attach, "attach", "", "path of a file to attach")
	return cmd
}

func newWatchCommand(g *globals) *cobra.Command {
	var history int
	cmd := &cobra.Command{
		Use:   "watch <conversation-id>",
		Short: "Print a conversation's messages and typing indicators as they arrive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := g.openApp(cmd, appOptions{})
			if err != nil {
				return err
			}
			defer app.Close()
			conv, err := app.OpenConversation(ctx, args[0])
			if err != nil {
				return err
			}
			defer conv.Close()
			return watchConversation(ctx, cmd.OutOrStdout(), conv, history)
		},
	}
	cmd.Flags().IntVarP(&history, "history", "n", 20, "number of earlier messages to print first")
	return cmd
}

// watchConversation prints confirmed messages once each and typing changes
// until ctx is done. Pending sends are skipped until they settle.
func watchConversation(ctx context.Context, out io.Writer, conv *session.Conversation, history int) error {
	msgs, cancelMsgs := conv.WatchMessages()
	defer cancelMsgs()
	typing, cancelTyping := conv.WatchTyping()
	defer cancelTyping()

	printed := make(map[string]bool)
	initial := conv.Messages()
	skip := len(initial) - history
	for i, m := range initial {
		if m.Pending() {
			continue
		}
		printed[m.ID] = true
		if i >= skip {
			printMessage(out, m)
		}
	}

	var lastTyping string
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-msgs:
			for _, m := range conv.Messages() {
				if m.Pending() || printed[m.ID] {
					continue
				}
				printed[m.ID] = true
				printMessage(out, m)
			}
		case <-typing:
			users := strings.Join(conv.Typing(), ", ")
			if users == lastTyping {
				continue
			}
			lastTyping = users
			if users == "" {
				fmt.Fprintln(out, "-- nobody is typing")
			} else {
				fmt.Fprintf(out, "-- %s typing...\n", users)
			}
		}
	}
}

func printMessage(out io.Writer, m models.Message) {
	sender := m.SenderName
	if sender == "" {
		sender = m.SenderID
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: %s", humanize.Time(m.Timestamp), sender, m.Content)
	if m.Attachment != "" {
		fmt.Fprintf(&b, " [attachment %s]", m.Attachment)
	}
	if m.ReplyToID != "" {
		fmt.Fprintf(&b, " (reply to %s)", m.ReplyToID)
	}
	if m.Status == models.StatusFailed {
		b.WriteString(" (failed)")
	}
	fmt.Fprintf(out, "%s  #%s\n", b.String(), m.ID)
}

func newSearchCommand(g *globals) *cobra.Command {
	var q backend.SearchQuery
	cmd := &cobra.Command{
		Use:   "search [text...]",
		Short: "Search messages across conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			q.Text = strings.Join(args, " ")
			app, err := g.openApp(cmd, appOptions{})
			if err != nil {
				return err
			}
			defer app.Close()
			found, err := app.Search(cmd.Context(), q)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, m := range found {
				printMessage(out, m)
			}
			fmt.Fprintf(out, "%s found\n", pluralMessages(len(found)))
			return nil
		},
	}
	cmd.Flags().StringVar(&q.ConversationID, "conversation", "", "only this conversation")
	cmd.Flags().StringVar(&q.SenderID, "sender", "", "only messages from this user id")
	return cmd
}

func pluralMessages(n int) string {
	if n == 1 {
		return "1 message"
	}
	return humanize.Comma(int64(n)) + " messages"
}

// lockedWriter serialises writes from background callbacks.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func newThreadCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "thread <conversation-id> <parent-message-id>",
		Short: "Print the replies threaded under a message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.openApp(cmd, appOptions{})
			if err != nil {
				return err
			}
			defer app.Close()
			replies, err := app.Thread(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			for _, m := range replies {
				printMessage(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}
}

func newForwardCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "forward <message-id> <conversation-id>",
		Short: "Copy a message into another conversation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.openApp(cmd, appOptions{})
			if err != nil {
				return err
			}
			defer app.Close()
			msg, err := app.Forward(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "forwarded as %s\n", msg.ID)
			return nil
		},
	}
}
