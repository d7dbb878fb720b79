package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/banshee-data/qrdar/internal/pointcloud"
)

var _ pointcloud.TileStore = (*DB)(nil)

// ErrTileNotFound is returned when reading a tile that was never imported.
var ErrTileNotFound = errors.New("tile not found")

// PutTileIndex inserts or updates the centres of the given tiles.
func (db *DB) PutTileIndex(ctx context.Context, index pointcloud.TileIndex) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tiles (name, x, y) VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET x = excluded.x, y = excluded.y`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, t := range index {
		if _, err := stmt.ExecContext(ctx, t.Name, t.X, t.Y); err != nil {
			return fmt.Errorf("failed to store tile %s: %w", t.Name, err)
		}
	}
	return tx.Commit()
}

// TileIndex lists the stored tiles in import order.
func (db *DB) TileIndex(ctx context.Context) (pointcloud.TileIndex, error) {
	rows, err := db.QueryContext(ctx, `SELECT name, x, y FROM tiles ORDER BY tile_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var index pointcloud.TileIndex
	for rows.Next() {
		var t pointcloud.Tile
		if err := rows.Scan(&t.Name, &t.X, &t.Y); err != nil {
			return nil, err
		}
		index = append(index, t)
	}
	return index, rows.Err()
}

// WriteTile replaces the points of a tile. A tile missing from the index is
// added with its centre at the middle of the points' horizontal extent.
func (db *DB) WriteTile(ctx context.Context, name string, points []pointcloud.Point) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var tileID int64
	err = tx.QueryRowContext(ctx, `SELECT tile_id FROM tiles WHERE name = ?`, name).Scan(&tileID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		b := pointcloud.BoundsOf(points)
		var cx, cy float64
		if len(points) > 0 {
			cx, cy = (b.MinX+b.MaxX)/2, (b.MinY+b.MaxY)/2
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO tiles (name, x, y) VALUES (?, ?, ?)`, name, cx, cy)
		if err != nil {
			return fmt.Errorf("failed to add tile %s: %w", name, err)
		}
		if tileID, err = res.LastInsertId(); err != nil {
			return err
		}
	case err != nil:
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tile_points WHERE tile_id = ?`, tileID); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tile_points (tile_id, seq, x, y, z, intensity, label)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, p := range points {
		if _, err := stmt.ExecContext(ctx, tileID, i, p.X, p.Y, p.Z, p.Intensity, p.Label); err != nil {
			return fmt.Errorf("failed to store point %d of tile %s: %w", i, name, err)
		}
	}
	return tx.Commit()
}

// ReadTile returns the tile's points inside bounds, in stored order.
func (db *DB) ReadTile(ctx context.Context, name string, bounds pointcloud.Bounds) ([]pointcloud.Point, error) {
	var tileID int64
	err := db.QueryRowContext(ctx, `SELECT tile_id FROM tiles WHERE name = ?`, name).Scan(&tileID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTileNotFound, name)
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT x, y, z, intensity, label FROM tile_points
		WHERE tile_id = ?
		  AND x BETWEEN ? AND ?
		  AND y BETWEEN ? AND ?
		  AND z BETWEEN ? AND ?
		ORDER BY seq`,
		tileID, bounds.MinX, bounds.MaxX, bounds.MinY, bounds.MaxY, bounds.MinZ, bounds.MaxZ)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []pointcloud.Point
	for rows.Next() {
		var p pointcloud.Point
		if err := rows.Scan(&p.X, &p.Y, &p.Z, &p.Intensity, &p.Label); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
