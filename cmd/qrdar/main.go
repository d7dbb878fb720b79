package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/banshee-data/qrdar/internal/version"
)

const defaultDBPath = "qrdar.db"

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	switch command {
	case "import":
		handleImport(args)
	case "read":
		handleRead(args)
	case "migrate":
		handleMigrate(args)
	case "serve":
		handleServe(args)
	case "version":
		fmt.Println(version.String())
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`qrdar - fiducial marker registration and decoding for TLS surveys

Usage: qrdar <command> [options]

Commands:
  import     Load a directory of PCD tiles and its tile_index.dat into the database
  read       Locate, register and decode every marker of a survey
  migrate    Manage the database schema (qrdar migrate help)
  serve      Serve stored runs as JSON and the SQL debug UI
  version    Show version information
  help       Show this help message

Examples:
  qrdar import -db survey.db -tiles ./tiles
  qrdar read -db survey.db -stickers stickers.pcd -dictionary codes.json
  qrdar read -tiles ./tiles -stickers stickers.pcd -dictionary codes.json -workers 4
  qrdar migrate -db survey.db status
  qrdar serve -db survey.db -listen localhost:8080`)
}
