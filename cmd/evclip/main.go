package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/clipworks/evclip/internal/bundles"
	"github.com/clipworks/evclip/internal/catalog"
	"github.com/clipworks/evclip/internal/config"
	"github.com/clipworks/evclip/internal/mcp"
	"github.com/clipworks/evclip/internal/store"
	"github.com/clipworks/evclip/internal/uploader"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"capture": true, "bundles": true, "create": true, "delete": true,
	"clear": true, "move": true, "remove": true, "export": true,
	"lookup": true, "sync": true, "event-update": true, "settings": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
             _ _
   _____   _| (_)_ __
  / _ \ \ / / | | '_ \
 |  __/\ V /| | | |_) |
  \___| \_/ |_|_| .__/
                |_|

  Event website capture bundles

  Usage: evclip <command> [options]
         evclip --help

  MCP server mode requires piped input.`)
}

// appEnv wires the shared pieces the CLI and MCP server run on.
type appEnv struct {
	baseDir string
	cfg     *config.Config
	st      *store.Store
	mgr     *bundles.Manager
	flow    *bundles.Flow
	queue   *uploader.Queue
	client  *catalog.Client
	cache   *catalog.Cache
	match   *catalog.MatchState
}

func newAppEnv(baseDir string, cfg *config.Config) (*appEnv, error) {
	st, err := store.Open(baseDir)
	if err != nil {
		return nil, err
	}

	state, err := st.Load()
	if err != nil {
		st.Close()
		return nil, err
	}

	env := &appEnv{
		baseDir: baseDir,
		cfg:     cfg,
		st:      st,
		mgr:     bundles.NewManager(state, st),
		cache:   catalog.NewCache(),
		match:   catalog.NewMatchState(),
	}

	// Persisted settings win over the config file for the API target.
	baseURL, token := cfg.APIBaseURL, cfg.APIToken
	if s := env.mgr.Settings(); s.APIBaseURL != "" {
		baseURL, token = s.APIBaseURL, s.APIToken
	}
	if baseURL != "" {
		env.client = catalog.NewClient(baseURL, token,
			time.Duration(cfg.RequestTimeoutSecs)*time.Second)
	}

	var transport uploader.Transport = unconfiguredTransport{}
	if env.client != nil {
		transport = env.client
	}
	env.queue = uploader.New(transport, env.match, uploader.Options{
		Timeout: time.Duration(cfg.UploadTimeoutSecs) * time.Second,
		Notify: func(msg string) {
			fmt.Fprintln(os.Stderr, msg)
		},
	})

	src := &stdinSource{}
	env.flow = bundles.NewFlow(env.mgr, src, src)
	env.flow.ActiveEvent = env.match.ActiveID
	env.flow.EnqueueUpload = func(eventID int64, eventName, imageData, filename string) {
		env.queue.Enqueue(eventID, eventName, imageData, filename)
	}

	return env, nil
}

func (env *appEnv) Close() {
	if env.st != nil {
		env.st.Close()
	}
}

func (env *appEnv) handlers() *mcp.Handlers {
	return mcp.NewHandlers(env.baseDir, env.cfg, env.mgr, env.flow, env.queue,
		env.client, env.cache, env.match)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before opening the store (no store needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}

	baseDir := filepath.Join(homeDir, ".evclip")

	cfg, err := config.Load(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	env, err := newAppEnv(baseDir, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer env.Close()

	for _, name := range mcp.ValidateDisabledTools(cfg.DisabledTools) {
		fmt.Fprintf(os.Stderr, "warning: unknown tool in disabled_tools: %q\n", name)
	}

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(env)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'evclip --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	if err := mcp.Run(env.handlers(), cfg, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
