package pointcloud

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/qrdar/internal/fsutil"
)

// TileIndexFile is the name of the tile index inside a tile directory.
const TileIndexFile = "tile_index.dat"

// DirStore is a TileStore over a directory of ASCII PCD tiles, one
// <name>.pcd per tile, indexed by a tile_index.dat of "name x y" lines.
type DirStore struct {
	FS  fsutil.FileSystem
	Dir string
}

// NewDirStore returns a store rooted at dir on the OS filesystem.
func NewDirStore(dir string) *DirStore {
	return &DirStore{FS: fsutil.OSFileSystem{}, Dir: dir}
}

var _ TileStore = (*DirStore)(nil)

func (s *DirStore) tilePath(name string) string {
	return filepath.Join(s.Dir, name+".pcd")
}

// TileIndex parses the directory's tile index. Blank lines and lines
// starting with '#' are skipped; fields may be separated by spaces, tabs or
// commas.
func (s *DirStore) TileIndex(ctx context.Context) (TileIndex, error) {
	data, err := s.FS.ReadFile(filepath.Join(s.Dir, TileIndexFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read tile index: %w", err)
	}
	return ParseTileIndex(bytes.NewReader(data))
}

// ParseTileIndex reads "name x y" lines.
func ParseTileIndex(r io.Reader) (TileIndex, error) {
	var idx TileIndex
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.FieldsFunc(line, func(r rune) bool {
			return r == ' ' || r == '\t' || r == ','
		})
		if len(parts) < 3 {
			return nil, fmt.Errorf("tile index line %d: expected name x y, got %q", lineNo, line)
		}
		x, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("tile index line %d: bad x: %w", lineNo, err)
		}
		y, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return nil, fmt.Errorf("tile index line %d: bad y: %w", lineNo, err)
		}
		idx = append(idx, Tile{Name: parts[0], X: x, Y: y})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return idx, nil
}

// ReadTile reads the named tile and keeps the points inside bounds.
func (s *DirStore) ReadTile(ctx context.Context, name string, bounds Bounds) ([]Point, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := s.FS.Open(s.tilePath(name))
	if err != nil {
		return nil, fmt.Errorf("failed to open tile %s: %w", name, err)
	}
	defer f.Close()

	points, err := ReadPCD(f)
	if err != nil {
		return nil, fmt.Errorf("tile %s: %w", name, err)
	}
	return Filter(points, bounds), nil
}

// WriteTile writes points to <dir>/<name>.pcd.
func (s *DirStore) WriteTile(ctx context.Context, name string, points []Point) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.FS.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.Dir, err)
	}
	w, err := s.FS.Create(s.tilePath(name))
	if err != nil {
		return fmt.Errorf("failed to create tile %s: %w", name, err)
	}
	if err := WritePCD(w, points); err != nil {
		w.Close()
		return fmt.Errorf("failed to write tile %s: %w", name, err)
	}
	return w.Close()
}
