package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"

	"github.com/banshee-data/qrdar/internal/db"
	"github.com/banshee-data/qrdar/internal/monitoring"
	"github.com/banshee-data/qrdar/internal/pointcloud"
)

// everything is a box that keeps every point of a tile.
var everything = pointcloud.Bounds{
	MinX: math.Inf(-1), MinY: math.Inf(-1), MinZ: math.Inf(-1),
	MaxX: math.Inf(1), MaxY: math.Inf(1), MaxZ: math.Inf(1),
}

func handleImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	dbPath := fs.String("db", defaultDBPath, "Path to the SQLite database")
	tilesDir := fs.String("tiles", "", "Directory holding <tile>.pcd files and tile_index.dat (required)")
	fs.Parse(args)

	if *tilesDir == "" {
		fmt.Fprintln(os.Stderr, "Error: -tiles is required")
		fs.Usage()
		os.Exit(1)
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	n, err := importTiles(context.Background(), pointcloud.NewDirStore(*tilesDir), database)
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}
	log.Printf("imported %d tiles from %s", n, *tilesDir)
}

// importTiles copies the index and every tile of src into dst.
func importTiles(ctx context.Context, src pointcloud.TileStore, dst *db.DB) (int, error) {
	index, err := src.TileIndex(ctx)
	if err != nil {
		return 0, err
	}
	if err := dst.PutTileIndex(ctx, index); err != nil {
		return 0, err
	}
	for _, t := range index {
		points, err := src.ReadTile(ctx, t.Name, everything)
		if err != nil {
			return 0, err
		}
		if err := dst.WriteTile(ctx, t.Name, points); err != nil {
			return 0, err
		}
		monitoring.Logf("tile %s: %d points", t.Name, len(points))
	}
	return len(index), nil
}
