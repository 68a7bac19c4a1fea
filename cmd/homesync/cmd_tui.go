package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/homesync/internal/app"
	"github.com/nhle/homesync/internal/logging"
)

func runTUI(cmd *cobra.Command, _ []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx := cmd.Context()
	sess, err := rt.startSession(ctx, true)
	if err != nil {
		return err
	}
	defer sess.Close()

	prefs, err := sess.Preferences(ctx, defaultPreferences(rt.cfg))
	if err != nil {
		rt.log.Warn().Err(err).Msg("loading preferences; using config defaults")
		prefs = defaultPreferences(rt.cfg)
	}

	model := app.New(sess, prefs, logging.Component(rt.log, "ui"))
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running ui: %w", err)
	}
	return nil
}
