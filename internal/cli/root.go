package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"sewing-planner/internal/config"
	"sewing-planner/internal/format"
	"sewing-planner/internal/logging"
	"sewing-planner/internal/planner"
	"sewing-planner/internal/project"
)

type App struct {
	Dir      string
	Format   string
	Pretty   bool
	LogLevel string

	planner *planner.Planner
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "sewplan",
		Short:        "Sewing project planner (local-first) CLI + TUI",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive TUI on the last opened project
  sewplan

  # Scriptable commands
  sewplan projects create --name "Linen shirt"
  sewplan sections add 1 --name Prep
  sewplan items add 1 "Wash fabric" --note "cold, no dryer"
  sewplan items move 3 --to 0
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if cmd.HasSubCommands() && len(args) == 0 {
				return runTUI(cmd, app, 0)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return app.close()
	}

	cmd.PersistentFlags().StringVar(&app.Dir, "dir", envOr("SEWPLAN_DIR", ""), "Data directory (default ~/.sewplan)")
	cmd.PersistentFlags().BoolVar(&app.Pretty, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("SEWPLAN_FORMAT", "json"), "Output format (json|yaml)")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", envOr("SEWPLAN_LOG_LEVEL", ""), "Log level (debug|info|warn|error)")

	cmd.AddCommand(newMigrateCmd(app))
	cmd.AddCommand(newProjectsCmd(app))
	cmd.AddCommand(newSectionsCmd(app))
	cmd.AddCommand(newItemsCmd(app))
	cmd.AddCommand(newImagesCmd(app))
	cmd.AddCommand(newSettingsCmd(app))
	cmd.AddCommand(newTUICmd(app))

	return cmd
}

// open loads configuration and opens the planner once per invocation.
func (app *App) open(ctx context.Context) (*planner.Planner, error) {
	if app.planner != nil {
		return app.planner, nil
	}
	cfg, err := config.Load(app.Dir)
	if err != nil {
		return nil, &configLoadError{err: err}
	}
	level := cfg.LogLevel
	if app.LogLevel != "" {
		level = app.LogLevel
	}
	log := logging.New(os.Stderr, level, cfg.LogConsole)
	p, err := planner.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	app.planner = p
	return p, nil
}

func (app *App) close() error {
	if app.planner == nil {
		return nil
	}
	err := app.planner.Close()
	app.planner = nil
	return err
}

// withSession opens projectID, runs fn and drains the engine before
// returning.
func withSession(cmd *cobra.Command, app *App, projectID int64, fn func(ctx context.Context, p *planner.Planner, s *planner.Session) error) error {
	ctx := cmdContext(cmd)
	p, err := app.open(ctx)
	if err != nil {
		return err
	}
	s, err := p.OpenSession(ctx, projectID)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, p, s)
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, invalidIDError{kind: kind, arg: s}
	}
	return id, nil
}

func parseIDs(kind string, args []string) ([]int64, error) {
	out := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := parseID(kind, a)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.Pretty)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}

// sectionView finds a section in the session's current snapshot.
func sectionView(s *planner.Session, sectionID int64) (project.SectionView, bool) {
	id := s.Aggregate.Resolve(sectionID)
	for _, sec := range s.Aggregate.Snapshot().Sections {
		if sec.Section.ID == id {
			return sec, true
		}
	}
	return project.SectionView{}, false
}

// itemView finds an item in the session's current snapshot.
func itemView(s *planner.Session, itemID int64) (project.ItemView, bool) {
	id := s.Aggregate.Resolve(itemID)
	for _, sec := range s.Aggregate.Snapshot().Sections {
		for _, it := range sec.Items {
			if it.Item.ID == id {
				return it, true
			}
		}
	}
	return project.ItemView{}, false
}
