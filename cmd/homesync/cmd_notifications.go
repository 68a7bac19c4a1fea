package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/nhle/homesync/internal/model"
	"github.com/nhle/homesync/internal/optimistic"
	"github.com/nhle/homesync/internal/session"
)

func runNotificationsList(cmd *cobra.Command, _ []string) error {
	return withSession(cmd.Context(), func(_ context.Context, _ *runtime, sess *session.Session) error {
		st := sess.Stores.Notifications.State()
		if st.Error != "" {
			return fmt.Errorf("loading notifications: %s", st.Error)
		}

		var items []model.Notification
		for _, n := range st.Items {
			if unreadOnly && !n.IsUnread() {
				continue
			}
			items = append(items, n)
		}

		out := cmd.OutOrStdout()
		if len(items) == 0 {
			fmt.Fprintln(out, "No notifications.")
			return nil
		}
		fmt.Fprintln(out, notificationTable(items, time.Now()))
		fmt.Fprintf(out, "%d unread\n", st.UnreadCount)
		return nil
	})
}

func notificationTable(items []model.Notification, now time.Time) string {
	rows := make([][]string, 0, len(items))
	for _, n := range items {
		marker := " "
		if n.IsUnread() {
			marker = "●"
		}
		rows = append(rows, []string{marker, n.ID, n.Type, n.Title, age(now.Sub(n.CreatedAt))})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("", "ID", "TYPE", "TITLE", "AGE").
		Rows(rows...).
		String()
}

func age(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func runNotificationsRead(cmd *cobra.Command, args []string) error {
	return mutate(cmd, "marked read", func(sess *session.Session) *optimistic.Pending {
		return sess.Coordinator.MarkRead(args[0])
	})
}

func runNotificationsReadAll(cmd *cobra.Command, _ []string) error {
	return mutate(cmd, "all notifications marked read", func(sess *session.Session) *optimistic.Pending {
		return sess.Coordinator.MarkAllRead()
	})
}

func runNotificationsDelete(cmd *cobra.Command, args []string) error {
	return mutate(cmd, "deleted", func(sess *session.Session) *optimistic.Pending {
		return sess.Coordinator.Delete(args[0])
	})
}

// mutate runs one coordinator operation and waits for the server's
// answer, so a rolled-back change surfaces as the command's error.
func mutate(cmd *cobra.Command, done string, op func(*session.Session) *optimistic.Pending) error {
	return withSession(cmd.Context(), func(ctx context.Context, _ *runtime, sess *session.Session) error {
		if err := op(sess).Wait(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), done)
		return nil
	})
}
