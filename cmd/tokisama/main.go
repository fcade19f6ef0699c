package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/japaniel/tokisama/pkg/app"
	"github.com/japaniel/tokisama/pkg/config"
	"github.com/japaniel/tokisama/pkg/db"
	"github.com/japaniel/tokisama/pkg/index"
	"github.com/japaniel/tokisama/pkg/server"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		slog.Error("tokisama failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("tokisama", flag.ContinueOnError)
	configFlag := fs.String("config", "", "Path to YAML config (default $CONFIG_PATH or ./config.yaml)")
	dbFlag := fs.String("db", "", "Path to SQLite database, overrides database.path")
	mineFlag := fs.Bool("mine", false, "Mine the corpus and write the generated dictionary")
	fromDBFlag := fs.Bool("from-db", false, "With -mine, re-mine the corpus pairs stored in the database")
	storedFlag := fs.Bool("stored", false, "Build the index from the merged dictionary stored in the database")
	serveFlag := fs.Bool("serve", false, "Serve /search over HTTP")
	queryFlag := fs.String("q", "", "Look up a single prefix and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		cfg *config.Config
		err error
	)
	if *configFlag != "" {
		cfg, err = config.LoadFile(*configFlag, true)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if *dbFlag != "" {
		cfg.Database.Path = *dbFlag
	}
	logger := config.NewLogger(cfg.Log)

	var conn *sql.DB
	if cfg.Database.Path != "" {
		conn, err = db.Open(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer conn.Close()
		logger.Info("database ready", slog.String("path", cfg.Database.Path))
	}

	lx, err := app.LoadLexicon(ctx, cfg.Data, logger)
	if err != nil {
		return err
	}

	if *mineFlag {
		mine := app.Mine
		if *fromDBFlag {
			mine = app.MineStored
		}
		res, err := mine(ctx, cfg, lx, conn, logger)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Mined %d bags from %d files, wrote %d lines to %s\n", res.Bags, res.Files, res.Lines, res.ModelPath)
		return nil
	}

	var ix *index.Index
	if *storedFlag {
		ix, err = app.LoadStoredIndex(cfg, lx, conn, logger)
	} else {
		ix, err = app.BuildIndex(ctx, cfg, lx, conn, logger)
	}
	if err != nil {
		return err
	}

	if *serveFlag {
		h := server.NewHandler(ix, nil, logger)
		if conn != nil {
			h = server.NewHandler(ix, conn, logger)
		}
		return server.Run(ctx, cfg.Server, h.Routes(), logger)
	}

	enc := json.NewEncoder(stdout)
	if *queryFlag != "" {
		return enc.Encode(ix.Lookup(*queryFlag))
	}

	scanner := bufio.NewScanner(stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		prefix := strings.TrimSpace(scanner.Text())
		if prefix == "" {
			continue
		}
		if err := enc.Encode(ix.Lookup(prefix)); err != nil {
			return err
		}
	}
	return scanner.Err()
}
