package main

import (
	"flag"
	"log"
	"os"

	"github.com/banshee-data/qrdar/internal/db"
)

func handleMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	dbPath := fs.String("db", defaultDBPath, "Path to the SQLite database")
	fs.Parse(args)

	if err := db.RunMigrateCommand(fs.Args(), *dbPath, os.Stdout); err != nil {
		log.Fatalf("migrate: %v", err)
	}
}
