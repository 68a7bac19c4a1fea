package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/nhle/homesync/internal/session"
)

func runHouseholdList(cmd *cobra.Command, _ []string) error {
	return withSession(cmd.Context(), func(_ context.Context, _ *runtime, sess *session.Session) error {
		st := sess.Stores.Households.State()
		out := cmd.OutOrStdout()
		if len(st.Households) == 0 {
			fmt.Fprintln(out, "You are not a member of any household.")
			return nil
		}

		rows := make([][]string, 0, len(st.Households))
		for _, h := range st.Households {
			marker := " "
			if h.ID == st.ActiveID {
				marker = "*"
			}
			rows = append(rows, []string{marker, h.ID, h.Name})
		}
		fmt.Fprintln(out, table.New().
			Border(lipgloss.NormalBorder()).
			Headers("", "ID", "NAME").
			Rows(rows...).
			String())
		return nil
	})
}

func runHouseholdUse(cmd *cobra.Command, args []string) error {
	return withSession(cmd.Context(), func(ctx context.Context, _ *runtime, sess *session.Session) error {
		want := strings.TrimSpace(args[0])
		id := want
		for _, h := range sess.Stores.Households.State().Households {
			if h.ID == want || strings.EqualFold(h.Name, want) {
				id = h.ID
				break
			}
		}
		if err := sess.SelectHousehold(ctx, id); err != nil {
			return fmt.Errorf("household %q: %w", want, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Active household is now %s.\n", id)
		return nil
	})
}
