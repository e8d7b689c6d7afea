package cli

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"sewing-planner/internal/planner"
	"sewing-planner/internal/settings"
)

func newSettingsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and change settings",
	}
	cmd.AddCommand(newSettingsGetCmd(app))
	cmd.AddCommand(newSettingsSetCmd(app))
	return cmd
}

func newSettingsGetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "get [key]",
		Short: "Show one setting, or all stored settings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.open(cmdContext(cmd))
			if err != nil {
				return writeErr(cmd, err)
			}
			st := p.Settings()
			if len(args) == 0 {
				out := map[string]json.RawMessage{}
				for _, kv := range st.All() {
					out[kv[0]] = json.RawMessage(kv[1])
				}
				return writeOut(cmd, app, map[string]any{"data": out})
			}
			if !slices.Contains(settings.Keys, args[0]) {
				return writeErr(cmd, fmt.Errorf("%w: %s", settings.ErrUnknownKey, args[0]))
			}
			var v any
			ok, err := st.Get(args[0], &v)
			if err != nil {
				return writeErr(cmd, err)
			}
			if !ok {
				v = settingDefault(p, args[0])
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"key": args[0], "value": v}})
		},
	}
}

// settingDefault is what an unset key reads as.
func settingDefault(p *planner.Planner, key string) any {
	switch key {
	case settings.KeyShowCompletedItems:
		return p.Settings().ShowCompletedItems()
	case settings.KeyNotificationDelay:
		return p.Config().NotificationDelay.String()
	}
	return nil
}

func newSettingsSetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a setting (lastProjectId, showCompletedItems, notificationDelay)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.open(cmdContext(cmd))
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := p.Settings().SetString(args[0], args[1]); err != nil {
				return writeErr(cmd, err)
			}
			var v any
			_, _ = p.Settings().Get(args[0], &v)
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"key": args[0], "value": v}})
		},
	}
}
