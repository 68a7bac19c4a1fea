package main

import (
	"github.com/spf13/cobra"

	"github.com/nhle/homesync/internal/model"
)

var (
	configPath  string
	metricsAddr string
	offline     bool

	loginBaseURL string
	loginToken   string
	unreadOnly   bool
)

var rootCmd = &cobra.Command{
	Use:   "homesync",
	Short: "Household notifications and chat in the terminal",
	Long: `homesync keeps household notifications, chat and polls in sync with
the server. Changes show up immediately and are rolled back if the
server rejects them. Run without a subcommand to open the interactive UI.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTUI,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive UI (the default)",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a session token for the configured server",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session token",
	RunE:  runLogout,
}

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"n"},
	Short:   "List and manage notifications",
	RunE:    runNotificationsList,
}

var notificationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notifications, newest first",
	Args:  cobra.NoArgs,
	RunE:  runNotificationsList,
}

var notificationsReadCmd = &cobra.Command{
	Use:   "read <id>",
	Short: "Mark a notification read",
	Args:  cobra.ExactArgs(1),
	RunE:  runNotificationsRead,
}

var notificationsReadAllCmd = &cobra.Command{
	Use:   "read-all",
	Short: "Mark every notification read",
	Args:  cobra.NoArgs,
	RunE:  runNotificationsReadAll,
}

var notificationsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a notification",
	Args:  cobra.ExactArgs(1),
	RunE:  runNotificationsDelete,
}

var householdListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your households; * marks the active one",
	Args:  cobra.NoArgs,
	RunE:  runHouseholdList,
}

var householdCmd = &cobra.Command{
	Use:   "household",
	Short: "List households or choose the active one",
	RunE:  runHouseholdList,
}

var householdUseCmd = &cobra.Command{
	Use:   "use <id|name>",
	Short: "Make a household the active one",
	Args:  cobra.ExactArgs(1),
	RunE:  runHouseholdUse,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", model.DefaultConfigPath(), "path to the config file")
	pf.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9464)")
	pf.BoolVar(&offline, "offline", false, "use the built-in demo backend instead of the server")

	loginCmd.Flags().StringVar(&loginBaseURL, "base-url", "", "server URL; saved to the config file when it differs")
	loginCmd.Flags().StringVar(&loginToken, "token", "", "session token; skips the interactive form")

	notificationsCmd.PersistentFlags().BoolVarP(&unreadOnly, "unread", "u", false, "only list unread notifications")
	notificationsCmd.AddCommand(notificationsListCmd, notificationsReadCmd, notificationsReadAllCmd, notificationsDeleteCmd)

	householdCmd.AddCommand(householdListCmd, householdUseCmd)

	rootCmd.AddCommand(tuiCmd, loginCmd, logoutCmd, notificationsCmd, householdCmd)
}
