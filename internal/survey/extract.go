package survey

import (
	"context"
	"fmt"

	"github.com/banshee-data/qrdar/internal/pointcloud"
)

// ExtractTile gathers a target's full-resolution points. For each corner the
// first tile whose centre is within TileSearchRadius is read, once per tile,
// keeping points inside the corners' box grown by TileMargin. Labelled sticker
// points brighter than zero inside the corners' box are appended, since
// deviation filtering can drop them from the tiles. The names of the tiles
// read are returned in read order.
func ExtractTile(ctx context.Context, store pointcloud.TileReader, index pointcloud.TileIndex,
	target Located, stickers []pointcloud.Point, opts Options) ([]pointcloud.Point, []string, error) {

	box := target.Bounds()
	read := map[string]bool{}
	var names []string
	var points []pointcloud.Point

	for _, c := range target.Corners {
		near := index.Near(c.X, c.Y, opts.TileSearchRadius)
		if len(near) == 0 {
			continue
		}
		name := near[0].Name
		if read[name] {
			continue
		}
		read[name] = true
		names = append(names, name)

		tile, err := store.ReadTile(ctx, name, box.Expand(opts.TileMargin))
		if err != nil {
			return nil, names, fmt.Errorf("failed to read tile %s: %w", name, err)
		}
		points = append(points, tile...)
	}
	if len(names) == 0 {
		return nil, nil, fmt.Errorf("no tile within %.1f m of target %d", opts.TileSearchRadius, target.ID)
	}

	for _, p := range stickers {
		if p.Intensity > brightCutoff && box.Contains(p) {
			points = append(points, p)
		}
	}
	return points, names, nil
}
