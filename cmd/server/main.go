package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/coppice-labs/switchboard/internal/api"
	"github.com/coppice-labs/switchboard/internal/auth"
	"github.com/coppice-labs/switchboard/internal/cleanup"
	"github.com/coppice-labs/switchboard/internal/config"
	"github.com/coppice-labs/switchboard/internal/executor"
	"github.com/coppice-labs/switchboard/internal/logger"
	"github.com/coppice-labs/switchboard/internal/session"
)

// Version is set at build time via -ldflags "-X main.Version=v1.0.0"
var Version = "dev"

func main() {
	// Check for subcommands before parsing flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "init":
			cmdInit()
			return
		case "token":
			cmdToken(os.Args[2:])
			return
		case "--version", "-v":
			fmt.Printf("switchboard %s\n", Version)
			return
		case "--help", "-h", "help":
			printUsage()
			return
		}
	}

	// Default: run server
	runServer()
}

func printUsage() {
	fmt.Printf(`Switchboard %s - Remote Execution Broker for Screen Automation

Usage: switchboard [command] [options]

Commands:
  (default)    Start the execution server
  init         Initialize switchboard directory structure
  token        Manage authentication tokens

Server Options:
  --dir <path>       Switchboard home directory

Config Precedence (for server):
  1. --dir flag
  2. SWITCHBOARD_HOME env var
  3. ./.switchboard (if initialized in current directory)
  4. ~/.switchboard (default)

Examples:
  switchboard                              Start the server (auto-detect config)
  switchboard --dir /path/to/switchboard   Start with specific config directory
  switchboard init                         Set up ~/.switchboard
  switchboard token create --name "CI"     Mint an API token
`, Version)
}

func runServer() {
	showVersion := flag.Bool("version", false, "Print version and exit")
	dirFlag := flag.String("dir", "", "Switchboard home directory (default: ~/.switchboard)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("switchboard %s\n", Version)
		os.Exit(0)
	}

	homeDir := resolveHomeDir(*dirFlag)
	dataDir := filepath.Join(homeDir, "data")
	configDir := filepath.Join(homeDir, "config")
	logDir := filepath.Join(dataDir, "logs")

	cfg, err := config.Load(configDir)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(logDir); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Close() }()
	if err := logger.InitSlog(logDir, cfg.Log.Level, cfg.Log.JSON); err != nil {
		log.Fatalf("Failed to initialize structured logger: %v", err)
	}
	defer func() { _ = logger.CloseSlog() }()

	logger.Println("📟 Switchboard - Remote Execution Broker")
	logger.Println("")

	// Auth store backs tokens minted via the token subcommand.
	authStore, err := auth.NewStore(dataDir)
	if err != nil {
		logger.Fatalf("Failed to initialize auth store: %v", err)
	}
	defer func() { _ = authStore.Close() }()
	logger.Printf("🔐 Auth database: %s/auth.db", dataDir)

	authn := auth.NewAuthenticator(cfg.Auth.Enabled, cfg.Auth.Tokens, authStore)
	if !cfg.Auth.Enabled {
		logger.Println("⚠️  WARNING: authentication disabled; all requests accepted")
	}

	limiter := auth.NewRateLimiter(cfg.Auth.RequestsPerMinute)
	manager := session.NewManager(cfg.Executor.MaxConcurrentSessions, cfg.Executor.MaxSessionHistory)

	var exec executor.Executor
	if cfg.Executor.MockMode || cfg.Server.DevMode {
		exec = executor.NewMockExecutor(50 * time.Millisecond)
		logger.Println("🤖 Executor: mock (no CLI will be spawned)")
	} else {
		exec = executor.NewCLIExecutor(cfg.Executor.CLIPath,
			time.Duration(cfg.Executor.LineTimeoutSeconds)*time.Second)
		logger.Printf("🤖 Executor: %s", cfg.Executor.CLIPath)
		if err := exec.Ping(context.Background()); err != nil {
			logger.Printf("⚠️  WARNING: agent CLI not found: %v", err)
			logger.Println("   Executions will fail until it is installed")
		}
	}

	cleaner := cleanup.New(manager, limiter, cfg.Executor.MaxSessionHistory)
	if err := cleaner.Start(""); err != nil {
		logger.Fatalf("Failed to start cleanup: %v", err)
	}

	api.Version = Version
	server := api.NewServer(cfg, manager, exec, authn, limiter)

	logger.Println("🚀 Starting Switchboard server...")
	logger.Printf("📡 Listening on %s", cfg.Address())
	logger.Printf("📝 Logs directory: %s", logDir)
	logger.Println("")

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case err := <-serverErr:
		logger.Fatalf("Server error: %v", err)
	case sig := <-shutdownChan:
		logger.Printf("⚠️  Received signal %v, initiating graceful shutdown...", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		logger.Println("   Draining in-flight requests...")
		if err := server.Shutdown(ctx); err != nil {
			logger.Printf("⚠️  Shutdown error: %v", err)
		}

		logger.Println("   Stopping cleanup...")
		cleaner.Stop()

		logger.Println("   Closing auth database...")
		_ = authStore.Close()

		logger.Println("✅ Shutdown complete")
		_ = logger.Close()
	}
}

func cmdInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	dirFlag := fs.String("dir", "", "Directory to initialize (default: ~/.switchboard)")
	_ = fs.Parse(os.Args[2:])

	var homeDir string
	if *dirFlag != "" {
		absDir, err := filepath.Abs(*dirFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid directory: %v\n", err)
			os.Exit(1)
		}
		homeDir = absDir
	} else {
		userHome, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: could not determine home directory: %v\n", err)
			os.Exit(1)
		}
		homeDir = filepath.Join(userHome, ".switchboard")
	}

	configDir := filepath.Join(homeDir, "config")
	dataDir := filepath.Join(homeDir, "data")

	configFile := filepath.Join(configDir, "switchboard.jsonc")
	if _, err := os.Stat(configFile); err == nil {
		fmt.Printf("⚠️  %s is already initialized.\n", homeDir)
		fmt.Print("Overwrite? [y/N]: ")
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return
		}
	}

	fmt.Println("📟 Initializing Switchboard")
	fmt.Println("")

	dirs := []string{
		configDir,
		filepath.Join(dataDir, "logs"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating %s: %v\n", dir, err)
			os.Exit(1)
		}
		fmt.Printf("   Created %s\n", dir)
	}

	defaultConfig := `{
  // Switchboard Configuration

  "server": {
    "host": "127.0.0.1",
    "port": 8085,
    // Dev mode forces the mock executor
    "dev_mode": false,
    "tls": {
      "enabled": false,
      "cert_file": "",
      "key_file": ""
    }
  },

  "auth": {
    "enabled": true,
    // Static tokens accepted alongside those minted via 'switchboard token'
    "tokens": [],
    "requests_per_minute": 60,
    // The unauthenticated /inference endpoint is limited per client address
    "inference_requests_per_second": 5,
    "inference_burst": 10
  },

  "executor": {
    "cli_path": "claude",
    "mock_mode": false,
    "default_timeout_seconds": 300,
    "line_timeout_seconds": 5,
    "max_concurrent_sessions": 10,
    "max_session_history": 100
  },

  "limits": {
    "max_request_bytes": 52428800,
    "max_screenshots": 10,
    "max_prompt_length": 50000,
    "max_intent_length": 5000
  },

  "log": {
    "level": "info",
    "json": false
  }
}
`
	if err := os.WriteFile(configFile, []byte(defaultConfig), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating switchboard.jsonc: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("   Created %s\n", configFile)

	fmt.Println("")
	fmt.Println("Creating admin token...")
	authStore, err := auth.NewStore(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing auth store: %v\n", err)
		os.Exit(1)
	}

	_, tokenID, err := authStore.CreateToken("admin", nil)
	if err != nil {
		_ = authStore.Close()
		fmt.Fprintf(os.Stderr, "Error creating token: %v\n", err)
		os.Exit(1)
	}
	_ = authStore.Close()

	fmt.Println("")
	fmt.Println("Admin token (save this - it cannot be retrieved later):")
	fmt.Printf("   %s\n", tokenID)

	fmt.Println("")
	fmt.Println("✅ Switchboard initialized!")
	fmt.Println("")
	fmt.Println("Next steps:")
	fmt.Printf("   1. Review %s\n", configFile)
	fmt.Println("   2. Run 'switchboard' to start the server")
}

// cmdToken handles the 'token' subcommand for managing authentication tokens
func cmdToken(args []string) {
	if len(args) < 1 {
		printTokenUsage()
		os.Exit(1)
	}

	homeDir := resolveHomeDir("")
	dataDir := filepath.Join(homeDir, "data")

	store, err := auth.NewStore(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing auth store: %v\n", err)
		os.Exit(1)
	}

	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "create":
		tokenCreate(store, cmdArgs)
	case "list":
		tokenList(store)
	case "revoke":
		tokenRevoke(store, cmdArgs)
	case "info":
		tokenInfo(store, cmdArgs)
	case "help", "-h", "--help":
		_ = store.Close()
		printTokenUsage()
		return
	default:
		_ = store.Close()
		fmt.Fprintf(os.Stderr, "Unknown token command: %s\n", cmd)
		printTokenUsage()
		os.Exit(1)
	}
	_ = store.Close()
}

func printTokenUsage() {
	fmt.Println(`Token Management

Usage: switchboard token <command> [options]

Commands:
  create    Create a new API token
  list      List all tokens
  revoke    Revoke a token
  info      Get token details
  help      Show this help

Examples:
  switchboard token create --name "Local Dev"
  switchboard token create --name "CI" --expires 720h
  switchboard token list
  switchboard token revoke swb_xxxx...
  switchboard token info swb_xxxx...`)
}

func tokenCreate(store *auth.Store, args []string) {
	fs := flag.NewFlagSet("token create", flag.ExitOnError)
	name := fs.String("name", "", "Human-readable token name (required)")
	expires := fs.Duration("expires", 0, "Token lifetime (e.g. 720h); zero means never")
	_ = fs.Parse(args)

	if *name == "" {
		fmt.Fprintln(os.Stderr, "Error: --name is required")
		fs.PrintDefaults()
		os.Exit(1)
	}

	var expiresAt *time.Time
	if *expires > 0 {
		t := time.Now().Add(*expires)
		expiresAt = &t
	}

	token, tokenID, err := store.CreateToken(*name, expiresAt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Token created successfully!")
	fmt.Println()
	fmt.Printf("Token ID: %s\n", tokenID)
	fmt.Printf("Name:     %s\n", token.Name)
	if token.ExpiresAt != nil {
		fmt.Printf("Expires:  %s\n", token.ExpiresAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Println()
	fmt.Println("IMPORTANT: Save this token now. It cannot be retrieved later.")
}

func tokenList(store *auth.Store) {
	tokens, err := store.ListTokens()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing tokens: %v\n", err)
		os.Exit(1)
	}

	if len(tokens) == 0 {
		fmt.Println("No tokens found.")
		fmt.Println()
		fmt.Println("Create one with: switchboard token create --name \"My Token\"")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tCREATED\tLAST USED")
	_, _ = fmt.Fprintln(w, "--\t----\t-------\t---------")

	for _, t := range tokens {
		lastUsed := "never"
		if t.LastUsedAt != nil {
			lastUsed = t.LastUsedAt.Format("2006-01-02 15:04")
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			auth.MaskToken(t.ID),
			t.Name,
			t.CreatedAt.Format("2006-01-02 15:04"),
			lastUsed,
		)
	}
	_ = w.Flush()
}

func tokenRevoke(store *auth.Store, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Error: token ID required")
		fmt.Fprintln(os.Stderr, "Usage: switchboard token revoke <token_id>")
		os.Exit(1)
	}

	tokenID := args[0]
	if err := store.RevokeToken(tokenID); err != nil {
		fmt.Fprintf(os.Stderr, "Error revoking token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Token %s revoked successfully.\n", auth.MaskToken(tokenID))
}

func tokenInfo(store *auth.Store, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Error: token ID required")
		fmt.Fprintln(os.Stderr, "Usage: switchboard token info <token_id>")
		os.Exit(1)
	}

	token, err := store.GetToken(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Token ID:    %s\n", auth.MaskToken(token.ID))
	fmt.Printf("Name:        %s\n", token.Name)
	fmt.Printf("Created:     %s\n", token.CreatedAt.Format("2006-01-02 15:04:05"))
	if token.LastUsedAt != nil {
		fmt.Printf("Last Used:   %s\n", token.LastUsedAt.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Printf("Last Used:   never\n")
	}
	if token.ExpiresAt != nil {
		fmt.Printf("Expires:     %s\n", token.ExpiresAt.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Printf("Expires:     never\n")
	}
}

// resolveHomeDir determines the switchboard home directory with precedence:
// 1. Explicit flag (if provided)
// 2. SWITCHBOARD_HOME env var
// 3. ./.switchboard (current directory, if initialized)
// 4. ~/.switchboard (default)
func resolveHomeDir(flagDir string) string {
	if flagDir != "" {
		absDir, err := filepath.Abs(flagDir)
		if err != nil {
			log.Fatalf("Invalid directory: %v", err)
		}
		return absDir
	}

	if envDir := os.Getenv("SWITCHBOARD_HOME"); envDir != "" {
		absDir, err := filepath.Abs(envDir)
		if err != nil {
			log.Fatalf("Invalid SWITCHBOARD_HOME: %v", err)
		}
		return absDir
	}

	cwd, err := os.Getwd()
	if err == nil {
		directConfig := filepath.Join(cwd, "config", "switchboard.jsonc")
		if _, err := os.Stat(directConfig); err == nil {
			return cwd
		}
		localDir := filepath.Join(cwd, ".switchboard")
		configFile := filepath.Join(localDir, "config", "switchboard.jsonc")
		if _, err := os.Stat(configFile); err == nil {
			return localDir
		}
	}

	userHome, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("Failed to get home directory: %v", err)
	}
	return filepath.Join(userHome, ".switchboard")
}
