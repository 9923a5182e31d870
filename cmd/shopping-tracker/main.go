package main

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/shopping-tracker/internal/logging"
	"github.com/zombor/shopping-tracker/internal/purchaser"
	"github.com/zombor/shopping-tracker/internal/receipt"
	"github.com/zombor/shopping-tracker/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	flags := ff.NewFlagSet("shopping-tracker")
	var (
		port           = flags.IntLong("port", 8080, "HTTP server port")
		dbPath         = flags.StringLong("db", "shopping-tracker.db", "Database file path")
		storagePath    = flags.StringLong("storage", "./receipts", "Storage directory path")
		purchasersPath = flags.StringLong("purchasers", "purchasers.toml", "Purchaser directory (TOML) mapping card suffixes to names")
		scannerType    = flags.StringLong("scanner", "gemini", "Scanner type: 'gemini', 'ollama' or 'text'")
		geminiKey      = flags.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel    = flags.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL      = flags.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel    = flags.StringLong("ollama-model", "llava", "Ollama vision model name")
		authUser       = flags.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass       = flags.StringLong("auth-pass", "", "Basic auth password (optional)")
		authPassHash   = flags.StringLong("auth-pass-hash", "", "Bcrypt hash of the basic auth password; overrides --auth-pass")
		logLevel       = flags.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		enableMetrics  = flags.BoolLong("metrics", "Serve Prometheus metrics on /metrics")
		showVersion    = flags.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(flags, os.Args[1:],
		ff.WithEnvVarPrefix("SHOPPING_TRACKER"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(flags))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	logging.Setup(os.Stderr, *logLevel)

	slog.Info("Loading purchasers...", "path", *purchasersPath)
	directory, err := purchaser.Load(*purchasersPath)
	if errors.Is(err, fs.ErrNotExist) {
		// Receipts still import; purchasers are assigned by hand
		slog.Warn("Purchaser directory not found, every purchaser will be Unknown", "path", *purchasersPath)
		directory, err = purchaser.New(nil)
	}
	if err != nil {
		slog.Error("Failed to load purchasers", "error", err)
		os.Exit(1)
	}
	slog.Info("Purchasers loaded", "members", directory.Members())

	slog.Info("Initializing database...")
	db, err := receipt.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var scanner scanning.Scanner
	switch *scannerType {
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini scanner...", "model", *geminiModel)
		scanner, err = scanning.NewGemini(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", *ollamaURL, "model", *ollamaModel)
		scanner, err = scanning.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	case "text":
		slog.Info("Accepting plain-text transcripts only")
		scanner = scanning.NewPlainText()
	default:
		slog.Error("Invalid scanner type", "type", *scannerType, "valid", "gemini, ollama or text")
		os.Exit(1)
	}
	defer scanner.Close()

	slog.Info("Initializing storage...")
	store, err := receipt.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	receiptService := receipt.NewService(db, scanner, store, directory)
	var metrics *receipt.Metrics
	if *enableMetrics {
		metrics = receipt.NewMetrics()
		receiptService.WithMetrics(metrics)
	}

	basicAuth := receipt.BasicAuth{
		Username:     *authUser,
		Password:     *authPass,
		PasswordHash: *authPassHash,
	}
	server := receipt.NewServer(receiptService, basicAuth)
	if metrics != nil {
		server.EnableMetrics(metrics)
	}

	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if *authUser != "" || *authPass != "" || *authPassHash != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}
