package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"sewing-planner/internal/cli"
	"sewing-planner/internal/store"
)

func isProjectID(s string) bool {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return err == nil && id > 0
}

// rewriteDirectProjectArgs makes `sewplan <project-id>` work like
// `sewplan tui <project-id>`. Cobra treats the first positional token as a
// subcommand, so argv is rewritten before parsing. Persistent flags may come
// first, so the first positional token is searched for, not argv[1].
func rewriteDirectProjectArgs(argv []string) []string {
	if len(argv) < 2 {
		return argv
	}

	valueFlags := map[string]bool{
		"--dir":       true,
		"--format":    true,
		"--log-level": true,
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			if i+1 < len(argv) && isProjectID(argv[i+1]) {
				out := make([]string, 0, len(argv)+1)
				out = append(out, argv[:i+1]...)
				out = append(out, "tui")
				return append(out, argv[i+1:]...)
			}
			return argv
		}
		if strings.HasPrefix(a, "-") {
			// --flag=value and bool flags take no extra token.
			if !strings.Contains(a, "=") && valueFlags[a] {
				i++
			}
			continue
		}
		if isProjectID(a) {
			out := make([]string, 0, len(argv)+1)
			out = append(out, argv[:i]...)
			out = append(out, "tui")
			return append(out, argv[i:]...)
		}
		return argv
	}
	return argv
}

func main() {
	os.Args = rewriteDirectProjectArgs(os.Args)

	cmd := cli.NewRootCmd()
	if err := cmd.Execute(); err != nil {
		if store.IsFatal(err) || cli.IsConfigError(err) {
			fmt.Fprintln(os.Stderr, "sewplan: the data directory cannot be used; check --dir and its permissions")
			os.Exit(2)
		}
		os.Exit(1)
	}
}
