package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/wippyai/wasm-workspace/config"
)

func main() {
	var (
		configPath  = flag.String("config", "workspace.yaml", "Path to YAML config (missing file uses defaults)")
		wasmFile    = flag.String("wasm", "", "Run a guest (raw or base64 file) once and print the result")
		serve       = flag.Bool("serve", false, "Serve /run, /ws, /databases and /healthz")
		interactive = flag.Bool("i", false, "Interactive console with TUI")
		sqlDB       = flag.String("sql", "", "Run one statement against the named database: -sql <db> \"<stmt>\"")
		schema      = flag.Bool("config-schema", false, "Print the config JSON schema and exit")
	)
	flag.Parse()

	if *schema {
		data, err := config.Schema()
		if err != nil {
			fail(err)
		}
		fmt.Println(string(data))
		return
	}

	if *wasmFile == "" && !*serve && !*interactive && *sqlDB == "" {
		fmt.Fprintln(os.Stderr, "Usage: workspace -wasm <guest.wasm>")
		fmt.Fprintln(os.Stderr, "       workspace -sql <db> \"<statement>\"")
		fmt.Fprintln(os.Stderr, "       workspace -serve")
		fmt.Fprintln(os.Stderr, "       workspace -i  (interactive mode)")
		fmt.Fprintln(os.Stderr, "       workspace -config-schema")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fail(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ws, err := open(ctx, cfg)
	if err != nil {
		fail(err)
	}
	defer ws.Close(context.Background())

	switch {
	case *interactive:
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			fail(fmt.Errorf("interactive mode needs a terminal"))
		}
		err = runInteractive(ctx, ws)
	case *serve:
		err = ws.Serve(ctx)
	case *sqlDB != "":
		err = runSQL(ctx, ws, *sqlDB, strings.Join(flag.Args(), " "))
	default:
		err = runFile(ctx, ws, *wasmFile)
	}
	if err != nil {
		ws.Close(context.Background())
		fail(err)
	}
}

func runFile(ctx context.Context, ws *workspace, path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	res := ws.host.Run(ctx, payload)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("invocation %s failed", res.ID)
	}
	return nil
}

// runSQL routes row-returning statements to Query and everything else to
// Execute, like the interactive console.
func runSQL(ctx context.Context, ws *workspace, db, stmt string) error {
	if strings.TrimSpace(stmt) == "" {
		return fmt.Errorf("-sql needs a statement argument")
	}
	if !returnsRows(stmt) {
		n, err := ws.dbs.Execute(ctx, db, stmt)
		if err != nil {
			return err
		}
		fmt.Printf("%d row(s) changed\n", n)
		return nil
	}
	rs, err := ws.dbs.Query(ctx, db, stmt)
	if err != nil {
		return err
	}
	fmt.Println(strings.Join(rs.Columns, "\t"))
	for _, row := range rs.Rows {
		fmt.Println(strings.Join(row, "\t"))
	}
	return nil
}

func returnsRows(stmt string) bool {
	fields := strings.Fields(stmt)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH", "PRAGMA", "EXPLAIN", "VALUES":
		return true
	}
	return false
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
