package config

// GetIntensityStart returns the intensity_start value or the default.
func (c *Config) GetIntensityStart() float64 {
	if c.IntensityStart == nil {
		return 5.0
	}
	return *c.IntensityStart
}

// GetIntensityStep returns the intensity_step value or the default.
func (c *Config) GetIntensityStep() float64 {
	if c.IntensityStep == nil {
		return 0.5
	}
	return *c.IntensityStep
}

// GetMinIntensity returns the min_intensity value or the default.
func (c *Config) GetMinIntensity() float64 {
	if c.MinIntensity == nil {
		return 0
	}
	return *c.MinIntensity
}

// GetMinStickerPoints returns the min_sticker_points value or the default.
func (c *Config) GetMinStickerPoints() int {
	if c.MinStickerPoints == nil {
		return 10
	}
	return *c.MinStickerPoints
}

// GetStickerDBSCANEps returns the sticker_dbscan_eps value or the default.
func (c *Config) GetStickerDBSCANEps() float64 {
	if c.StickerDBSCANEps == nil {
		return 0.025
	}
	return *c.StickerDBSCANEps
}

// GetStickerDBSCANMinPts returns the sticker_dbscan_min_pts value or the default.
func (c *Config) GetStickerDBSCANMinPts() int {
	if c.StickerDBSCANMinPts == nil {
		return 5
	}
	return *c.StickerDBSCANMinPts
}

// GetMinStickerClusters returns the min_sticker_clusters value or the default.
func (c *Config) GetMinStickerClusters() int {
	if c.MinStickerClusters == nil {
		return 3
	}
	return *c.MinStickerClusters
}

// GetMaxStickerExtent returns the max_sticker_extent value or the default.
func (c *Config) GetMaxStickerExtent() float64 {
	if c.MaxStickerExtent == nil {
		return 0.05
	}
	return *c.MaxStickerExtent
}

// GetDistanceTolerance returns the distance_tolerance value or the default.
func (c *Config) GetDistanceTolerance() float64 {
	if c.DistanceTolerance == nil {
		return 0.01
	}
	return *c.DistanceTolerance
}

// GetMinNeighbourMatches returns the min_neighbour_matches value or the default.
func (c *Config) GetMinNeighbourMatches() int {
	if c.MinNeighbourMatches == nil {
		return 2
	}
	return *c.MinNeighbourMatches
}

// GetMaxCandidates returns the max_candidates value or the default.
func (c *Config) GetMaxCandidates() int {
	if c.MaxCandidates == nil {
		return 12
	}
	return *c.MaxCandidates
}

// GetAcceptRMSE returns the accept_rmse value or the default.
func (c *Config) GetAcceptRMSE() float64 {
	if c.AcceptRMSE == nil {
		return 0.015
	}
	return *c.AcceptRMSE
}

// GetZExtentMin returns the z_extent_min value or the default.
func (c *Config) GetZExtentMin() float64 {
	if c.ZExtentMin == nil {
		return 0.2
	}
	return *c.ZExtentMin
}

// GetZExtentMax returns the z_extent_max value or the default.
func (c *Config) GetZExtentMax() float64 {
	if c.ZExtentMax == nil {
		return 0.4
	}
	return *c.ZExtentMax
}

// GetCellSize returns the cell_size value or the default.
func (c *Config) GetCellSize() float64 {
	if c.CellSize == nil {
		return 0.032
	}
	return *c.CellSize
}

// GetLowIntensity returns the low_intensity value or the default.
func (c *Config) GetLowIntensity() float64 {
	if c.LowIntensity == nil {
		return -7
	}
	return *c.LowIntensity
}

// GetDensityThresholds returns the density_thresholds value or the default.
func (c *Config) GetDensityThresholds() []float64 {
	if len(c.DensityThresholds) == 0 {
		return []float64{0.4, 0.6}
	}
	return append([]float64(nil), c.DensityThresholds...)
}

// GetDictionary returns the dictionary path, empty when unset.
func (c *Config) GetDictionary() string {
	if c.Dictionary == nil {
		return ""
	}
	return *c.Dictionary
}

// GetTargetDBSCANEps returns the target_dbscan_eps value or the default.
func (c *Config) GetTargetDBSCANEps() float64 {
	if c.TargetDBSCANEps == nil {
		return 0.4
	}
	return *c.TargetDBSCANEps
}

// GetTargetMinPts returns the target_min_pts value or the default.
func (c *Config) GetTargetMinPts() int {
	if c.TargetMinPts == nil {
		return 3
	}
	return *c.TargetMinPts
}

// GetTileSearchRadius returns the tile_search_radius value or the default.
func (c *Config) GetTileSearchRadius() float64 {
	if c.TileSearchRadius == nil {
		return 5
	}
	return *c.TileSearchRadius
}

// GetTileMargin returns the tile_margin value or the default.
func (c *Config) GetTileMargin() float64 {
	if c.TileMargin == nil {
		return 0.1
	}
	return *c.TileMargin
}

// GetWorkers returns the workers value or the default.
func (c *Config) GetWorkers() int {
	if c.Workers == nil {
		return 1
	}
	return *c.Workers
}

// GetAmbiguityLogDir returns the ambiguity_log_dir value; empty disables the logs.
func (c *Config) GetAmbiguityLogDir() string {
	if c.AmbiguityLogDir == nil {
		return ""
	}
	return *c.AmbiguityLogDir
}

// GetPCDOutputDir returns the pcd_output_dir value; empty disables PCD output.
func (c *Config) GetPCDOutputDir() string {
	if c.PCDOutputDir == nil {
		return ""
	}
	return *c.PCDOutputDir
}
