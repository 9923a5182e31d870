// Command parse-receipt parses OCR transcripts of till receipts and prints
// one JSON record per input.
//
// Usage:
//
//	parse-receipt [--purchasers purchasers.toml] [--pretty] <transcript.txt|-> ...
//	parse-receipt --list-merchants
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/shopping-tracker/internal/logging"
	"github.com/zombor/shopping-tracker/internal/parser"
	"github.com/zombor/shopping-tracker/internal/purchaser"
)

// result is the JSON written for each input
type result struct {
	Source  string          `json:"source"`
	Receipt *parser.Receipt `json:"receipt,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func main() {
	fs := ff.NewFlagSet("parse-receipt")
	var (
		purchasersPath = fs.StringLong("purchasers", "", "Purchaser directory (TOML); purchasers are Unknown without it")
		pretty         = fs.BoolLong("pretty", "Indent JSON output")
		logLevel       = fs.StringLong("log-level", "warn", "Log level: debug, info, warn or error")
		listMerchants  = fs.BoolLong("list-merchants", "Print the supported merchants and exit")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("SHOPPING_TRACKER"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(os.Stderr, *logLevel)

	if *listMerchants {
		for _, name := range parser.DefaultRegistry().Merchants() {
			fmt.Println(name)
		}
		return
	}

	inputs := fs.GetArgs()
	if len(inputs) == 0 {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintln(os.Stderr, "error: no transcripts given")
		os.Exit(1)
	}

	var directory parser.Directory
	if *purchasersPath != "" {
		dir, err := purchaser.Load(*purchasersPath)
		if err != nil {
			slog.Error("Failed to load purchasers", "error", err)
			os.Exit(1)
		}
		directory = dir
	}

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}

	failed := 0
	for _, input := range inputs {
		res := parseFile(input, directory)
		if res.Error != "" {
			failed++
		}
		if err := enc.Encode(res); err != nil {
			slog.Error("Failed to write output", "error", err)
			os.Exit(1)
		}
	}

	if failed > 0 {
		slog.Warn("Some transcripts could not be parsed", "failed", failed, "total", len(inputs))
		os.Exit(2)
	}
}

// parseFile reads one transcript ("-" for stdin) and parses it
func parseFile(path string, directory parser.Directory) result {
	res := result{Source: path}

	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		res.Error = err.Error()
		return res
	}

	receipt, err := parser.ParseText(string(data), directory)
	if err != nil {
		slog.Debug("Parse failed", "source", path, "error", err)
		res.Error = err.Error()
		return res
	}
	if receipt.Truncated {
		slog.Warn("Items stopped at an unreadable line", "source", path, "items", len(receipt.Items))
	}

	res.Receipt = receipt
	return res
}
