package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"did_alerts/internal/app"
	"did_alerts/internal/cache"
	"did_alerts/internal/config"
	"did_alerts/internal/snapshot"
)

// Services is what the commands need from the pipeline. *app.Runner
// satisfies it.
type Services interface {
	Load(ctx context.Context, force bool) (app.LoadResult, error)
	Run(ctx context.Context, targetDay int, force bool) (app.Result, error)
	CachedSnapshot(ctx context.Context) (snapshot.Snapshot, time.Time)
	ExportClient(ctx context.Context, client string) (string, error)
	ClearCache(ctx context.Context) error
	Config() config.Config
	Now() time.Time
}

// State carries the loaded snapshot between commands.
type State struct {
	Snapshot     snapshot.Snapshot
	LastModified time.Time
	Quit         bool
}

type Command func(ctx context.Context, svc Services, state State, args []string) (State, string, error)

const (
	previewCells = 3
	searchLimit  = 50
	clearConfirm = "DELETE"
)

var ErrUsage = errors.New("usage")

func usage(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, a...))
}

// ensureLoaded reuses the state's snapshot, loading through the cache on
// first use.
func ensureLoaded(ctx context.Context, svc Services, state State) (State, error) {
	if state.Snapshot != nil {
		return state, nil
	}
	load, err := svc.Load(ctx, false)
	if err != nil {
		return state, err
	}
	state.Snapshot = load.Snapshot
	state.LastModified = load.LastModified
	return state, nil
}

func listClients(ctx context.Context, svc Services, state State, args []string) (State, string, error) {
	state, err := ensureLoaded(ctx, svc, state)
	if err != nil {
		return state, "", err
	}
	names := state.Snapshot.Names()
	if len(names) == 0 {
		return state, "No clients loaded.\n", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d clients:\n", len(names))
	for i, name := range names {
		rows := state.Snapshot[name]
		fmt.Fprintf(&b, "%3d. %s (%d rows)", i+1, name, len(rows))
		if p := preview(rows); p != "" {
			fmt.Fprintf(&b, "  %s", p)
		}
		b.WriteString("\n")
	}
	return state, b.String(), nil
}

// preview shows the first cells of the first data row, or of the header
// when there is nothing else.
func preview(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	row := rows[0]
	if len(rows) > 1 {
		row = rows[1]
	}
	if len(row) > previewCells {
		row = row[:previewCells]
	}
	return strings.Join(row, " | ")
}

func syncAll(ctx context.Context, svc Services, state State, args []string) (State, string, error) {
	load, err := svc.Load(ctx, true)
	if err != nil {
		return state, "", err
	}
	state.Snapshot = load.Snapshot
	state.LastModified = load.LastModified

	return state, "Synced " + load.Summary(), nil
}

func search(ctx context.Context, svc Services, state State, args []string) (State, string, error) {
	term := strings.TrimSpace(strings.Join(args, " "))
	if term == "" {
		return state, "", usage("search <term>")
	}
	state, err := ensureLoaded(ctx, svc, state)
	if err != nil {
		return state, "", err
	}

	needle := strings.ToLower(term)
	var b strings.Builder
	found := 0
	for _, name := range state.Snapshot.Names() {
		for i, row := range state.Snapshot[name] {
			if !rowContains(row, needle) {
				continue
			}
			found++
			if found <= searchLimit {
				fmt.Fprintf(&b, "%s row %d: %s\n", name, i+1, strings.Join(row, " | "))
			}
		}
	}
	switch {
	case found == 0:
		return state, fmt.Sprintf("No matches for %q.\n", term), nil
	case found > searchLimit:
		fmt.Fprintf(&b, "... %d more\n", found-searchLimit)
	}
	fmt.Fprintf(&b, "Found %d matches for %q.\n", found, term)
	return state, b.String(), nil
}

func rowContains(row []string, needle string) bool {
	for _, cell := range row {
		if strings.Contains(strings.ToLower(cell), needle) {
			return true
		}
	}
	return false
}

func today(ctx context.Context, svc Services, state State, args []string) (State, string, error) {
	return report(ctx, svc, state, svc.Now().Day())
}

func day(ctx context.Context, svc Services, state State, args []string) (State, string, error) {
	if len(args) != 1 {
		return state, "", usage("day <1-31>")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return state, "", usage("day <1-31>, got %q", args[0])
	}
	return report(ctx, svc, state, n)
}

func report(ctx context.Context, svc Services, state State, targetDay int) (State, string, error) {
	result, err := svc.Run(ctx, targetDay, false)
	if err != nil {
		return state, "", err
	}
	state.Snapshot = result.Load.Snapshot
	state.LastModified = result.Load.LastModified

	out := result.Rendered + result.Load.Summary()
	if result.Export.Dir != "" {
		out += fmt.Sprintf("Exported %d files to %s\n", len(result.Export.Files), result.Export.Dir)
	}
	return state, out, nil
}

func exportClient(ctx context.Context, svc Services, state State, args []string) (State, string, error) {
	client := strings.TrimSpace(strings.Join(args, " "))
	if client == "" {
		return state, "", usage("export <client>")
	}
	path, err := svc.ExportClient(ctx, client)
	if err != nil {
		return state, "", err
	}
	return state, fmt.Sprintf("Exported %s to %s\n", client, path), nil
}

func stats(ctx context.Context, svc Services, state State, args []string) (State, string, error) {
	snap, last := svc.CachedSnapshot(ctx)
	now := svc.Now()
	status := cache.StatusFor(last, now)

	var b strings.Builder
	fmt.Fprintf(&b, "Cache backend: %s\n", svc.Config().Cache.Backend)
	fmt.Fprintf(&b, "Status: %s\n", status)
	if status != cache.StatusEmpty {
		fmt.Fprintf(&b, "Last updated: %s (%s ago)\n", last.Format(time.DateTime), now.Sub(last).Round(time.Second))
	}
	rows := 0
	for _, r := range snap {
		rows += len(r)
	}
	fmt.Fprintf(&b, "Clients: %d\n", len(snap))
	fmt.Fprintf(&b, "Total rows: %d\n", rows)
	return state, b.String(), nil
}

func clearCache(ctx context.Context, svc Services, state State, args []string) (State, string, error) {
	if len(args) != 1 || args[0] != clearConfirm {
		return state, fmt.Sprintf("Cache not cleared. Type 'clear %s' to confirm.\n", clearConfirm), nil
	}
	if err := svc.ClearCache(ctx); err != nil {
		return state, "", err
	}
	state.Snapshot = nil
	state.LastModified = cache.Never
	return state, "Cache cleared.\n", nil
}

func help(ctx context.Context, svc Services, state State, args []string) (State, string, error) {
	return state, Menu(), nil
}

func quit(ctx context.Context, svc Services, state State, args []string) (State, string, error) {
	state.Quit = true
	return state, "Bye.\n", nil
}

type entry struct {
	name    string
	alias   string
	usage   string
	summary string
	run     Command
}

var entries []entry

// entries is set in init because help refers back to it through Menu.
func init() {
	entries = []entry{
		{"list", "", "list", "clients with row counts", listClients},
		{"sync", "", "sync", "fetch every sheet again", syncAll},
		{"search", "", "search <term>", "find cells containing term", search},
		{"today", "", "today", "report for today", today},
		{"day", "", "day <n>", "report for day n (1-31)", day},
		{"", "", "<n>", "same as day <n>", day},
		{"export", "", "export <client>", "dump one client to CSV", exportClient},
		{"stats", "", "stats", "cache status", stats},
		{"clear", "", "clear DELETE", "empty the cache", clearCache},
		{"help", "?", "help", "show this menu", help},
		{"quit", "q", "quit", "exit", quit},
	}
}

func lookup(name string) (entry, bool) {
	for _, e := range entries {
		if (e.name != "" && name == e.name) || (e.alias != "" && name == e.alias) {
			return e, true
		}
	}
	return entry{}, false
}

func Menu() string {
	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, e := range entries {
		key := e.alias
		if key == "" {
			key = " "
		}
		fmt.Fprintf(&b, "  %s  %-16s %s\n", key, e.usage, e.summary)
	}
	return b.String()
}

// Dispatch runs one input line. A bare number is always a day report.
func Dispatch(ctx context.Context, svc Services, state State, line string) (State, string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return state, "", nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	if _, err := strconv.Atoi(name); err == nil {
		if len(args) > 0 {
			return state, "", usage("<n> takes no arguments, got %q", line)
		}
		return day(ctx, svc, state, []string{name})
	}
	if e, ok := lookup(name); ok {
		return e.run(ctx, svc, state, args)
	}
	return state, "", usage("unknown command %q, type help", fields[0])
}
