// chatline - Interactive chat with an OpenAI-compatible completions API.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/jeranaias/chatline/internal/auth"
	"github.com/jeranaias/chatline/internal/cli"
	"github.com/jeranaias/chatline/internal/config"
	"github.com/jeranaias/chatline/internal/openai"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	args := cli.ParseArgs(os.Args[1:])

	if args.ShowHelp {
		fmt.Print(cli.Usage())
		return
	}
	if args.ShowVersion {
		fmt.Printf("chatline %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	if err := run(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args cli.Args) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	if args.Model != "" {
		cfg.DefaultModel = args.Model
	}
	if args.Verbose {
		cfg.UI.Verbose = true
	}

	// Wire-level status logging is noise unless verbose mode is on.
	if !cfg.UI.Verbose {
		log.SetOutput(io.Discard)
	}

	apiKey, err := auth.TokenFromFile(cfg.API.KeyFile)
	if err != nil {
		return err
	}

	client := openai.NewClient(apiKey).
		WithBaseURL(cfg.API.BaseURL).
		WithModel(cfg.DefaultModel).
		WithParams(openai.Params{
			Temperature: cfg.Chat.Temperature,
			MaxTokens:   cfg.Chat.MaxTokens,
		}).
		WithTimeout(time.Duration(cfg.API.TimeoutSecs) * time.Second)
	if cfg.UI.Verbose {
		client.WithObserver(cli.VerboseObserver())
	}

	session := cli.NewChatSession(client, cfg)
	session.Quiet = args.Quiet
	session.KeyDisplay = auth.Masked(apiKey)

	watcher := startConfigWatcher(args)

	return cli.HandleChatCommand(session, watcher)
}

// loadConfig resolves the config file, honoring --config.
func loadConfig(args cli.Args) (*config.Config, error) {
	if args.ConfigPath != "" {
		return config.LoadFromPath(args.ConfigPath)
	}
	return config.Load()
}

// startConfigWatcher starts the config file watcher when a config file
// exists. A missing or unwatchable file degrades to a static config.
func startConfigWatcher(args cli.Args) *config.Watcher {
	path := args.ConfigPath
	if path == "" {
		var err error
		path, err = config.ConfigPath()
		if err != nil {
			return nil
		}
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	watcher, err := config.Watch(context.Background(), path)
	if err != nil {
		return nil
	}
	return watcher
}
