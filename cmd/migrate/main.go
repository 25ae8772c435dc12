package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/advising-api/pkg/config"
	"github.com/noah-isme/advising-api/pkg/database"
	"github.com/noah-isme/advising-api/pkg/logger"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [up|down|version]\n", os.Args[0])
		flag.PrintDefaults()
	}
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline")
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("connect postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	migrator, err := database.NewMigrator(db.DB, logr)
	if err != nil {
		logr.Fatal("init migrator", zap.Error(err))
	}

	switch command {
	case "up":
		err = migrator.Up(ctx)
	case "down":
		err = migrator.Down(ctx)
	case "version":
		var version int64
		version, err = migrator.Version(ctx)
		if err == nil {
			fmt.Println(version)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logr.Fatal("migration failed", zap.String("command", command), zap.Error(err))
	}
}
