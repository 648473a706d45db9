package config

import "time"

func Default() *Config {
	return &Config{
		World: WorldConfig{
			ChunkSize:   64,
			MaxHeight:   100,
			Octaves:     3,
			BaseDivisor: 8,
		},
		Density: DensityConfig{
			Enabled:     true,
			GridSpacing: 2.0,
			Seed:        10.0,
			Bias:        0.5,
		},
		Vegetation: VegetationConfig{
			Enabled:       true,
			TreesPerChunk: 3,
			Border:        5,
			Neighborhood:  5,
			ScanStride:    10,
			PrimaryChance: 0.25,
			Seed:          1337,
			Species:       DefaultSpecies(),
		},
		Markers: MarkerConfig{
			GoldenEvery:    64,
			GoldenMinIndex: 1000,
		},
		Cache: CacheConfig{
			Radius:       1,
			CacheLimit:   9,
			BuildWorkers: 4,
			NoiseMemo:    512,
		},
		Physics: PhysicsConfig{
			Gravity:          -9.8,
			JumpSpeed:        10,
			Radius:           0.4,
			MaxHeightToCheck: 2,
			BoundaryMargin:   2,
			WalkSpeed:        8,
			Spawn:            SpawnPoint{X: 0, Z: 0},
		},
		Environment: EnvironmentConfig{
			DayLength:   Duration(20 * time.Minute),
			InitialHour: 12,
			CycleSpeed:  1,
		},
		Server: ServerConfig{
			TickRate:         Duration(16 * time.Millisecond),
			Listen:           ":28090",
			MaxQueue:         64,
			EditsPerSecond:   20,
			EditBurst:        5,
			CompressionLevel: "fastest",
		},
	}
}

// DefaultSpecies returns the two stock tree grammars: a broad leafy tree
// typed by leaf marks and a tall conifer typed by height.
func DefaultSpecies() []SpeciesConfig {
	return []SpeciesConfig{
		{
			Name:          "broadleaf",
			Axiom:         "FFFFA",
			Rules:         map[string]string{"A": "[&FFL]/////[&FFL]/////[&FFL]", "L": "*A"},
			Depth:         5,
			Angle:         30,
			SegmentLength: 1,
			Typing:        "leaf",
			FoliageAfter:  100,
		},
		{
			Name:          "conifer",
			Axiom:         "FFA",
			Rules:         map[string]string{"A": "F[&+FA][^-FA]FA"},
			Depth:         4,
			Angle:         25,
			SegmentLength: 1,
			Typing:        "height",
			TrunkHeight:   3,
			BlendHeight:   4,
		},
	}
}
