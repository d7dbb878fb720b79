package survey

import (
	"sort"

	"github.com/banshee-data/qrdar/internal/cluster"
	"github.com/banshee-data/qrdar/internal/marker"
	"github.com/banshee-data/qrdar/internal/pointcloud"
)

// Located is a potential target: the centres of the sticker clusters that
// were grouped together and their mean.
type Located struct {
	ID       int
	Corners  []pointcloud.Point // one per sticker label, Label set to the sticker label
	Centroid marker.Vec3
}

// Bounds is the box spanned by the corners.
func (l Located) Bounds() pointcloud.Bounds {
	return pointcloud.BoundsOf(l.Corners)
}

// stickerCentres averages the points of each sticker label, ascending by
// label. Unlabelled points are ignored.
func stickerCentres(stickers []pointcloud.Point) []pointcloud.Point {
	groups := map[int][]pointcloud.Point{}
	for _, p := range stickers {
		if p.Label == pointcloud.NoLabel {
			continue
		}
		groups[p.Label] = append(groups[p.Label], p)
	}
	labels := make([]int, 0, len(groups))
	for l := range groups {
		labels = append(labels, l)
	}
	sort.Ints(labels)

	out := make([]pointcloud.Point, 0, len(labels))
	for _, l := range labels {
		c, _ := pointcloud.Centroid(groups[l])
		c.Label = l
		out = append(out, c)
	}
	return out
}

// LocateTargets groups labelled sticker points into potential targets.
// Sticker centres within TargetEps of each other, at least TargetMinPts of
// them, form a target; isolated stickers are dropped. Targets are numbered in
// clustering order.
func LocateTargets(stickers []pointcloud.Point, opts Options, clusterer cluster.Clusterer) []Located {
	dots := stickerCentres(stickers)
	if len(dots) == 0 {
		return nil
	}
	labels := clusterer.Labels(dots, cluster.Params{Eps: opts.TargetEps, MinPts: opts.TargetMinPts})

	var targets []Located
	for id, corners := range cluster.Groups(dots, labels) {
		if len(corners) == 0 {
			continue
		}
		c, _ := pointcloud.Centroid(corners)
		targets = append(targets, Located{
			ID:       id,
			Corners:  corners,
			Centroid: marker.Vec3{c.X, c.Y, c.Z},
		})
	}
	return targets
}
