package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/chatgraph/data/graph.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/chatgraph/data/indices/conversations"
	}
	if cfg.Processing.BatchSize == 0 {
		cfg.Processing.BatchSize = 200
	}
	if cfg.Processing.MinOccurrences == 0 {
		cfg.Processing.MinOccurrences = 1
	}
	if cfg.Search.MaxResults == 0 {
		cfg.Search.MaxResults = 50
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 500
	}
	if cfg.Search.RecentLimit == 0 {
		cfg.Search.RecentLimit = 20
	}
	applyGraphDefaults(&cfg.Graph)
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".json", ".zip"}
	}
	if cfg.Watch.DebounceMilli == 0 {
		cfg.Watch.DebounceMilli = 2000
	}
}

func applyGraphDefaults(g *GraphConfig) {
	if g.Width == 0 {
		g.Width = 1200
	}
	if g.Height == 0 {
		g.Height = 800
	}
	if g.LayoutIterations == 0 {
		g.LayoutIterations = 300
	}
	if g.CenterForce == 0 {
		g.CenterForce = 0.01
	}
	if g.Repulsion == 0 {
		g.Repulsion = 800
	}
	if g.RepulsionCutoff == 0 {
		g.RepulsionCutoff = 250
	}
	if g.SpringConstant == 0 {
		g.SpringConstant = 0.05
	}
	if g.SpringLength == 0 {
		g.SpringLength = 80
	}
	if g.Damping == 0 {
		g.Damping = 0.6
	}
	if g.AlphaDecay == 0 {
		g.AlphaDecay = 0.0228
	}
	if g.AlphaMin == 0 {
		g.AlphaMin = 0.001
	}
	if g.MinScale == 0 {
		g.MinScale = 0.1
	}
	if g.MaxScale == 0 {
		g.MaxScale = 5
	}
	if g.LabelScale == 0 {
		g.LabelScale = 0.8
	}
	if g.MaxLabelWidth == 0 {
		g.MaxLabelWidth = 140
	}
	if g.CullMargin == 0 {
		g.CullMargin = 50
	}
	if g.FocusScale == 0 {
		g.FocusScale = 1.5
	}
	if g.FocusDurationMilli == 0 {
		g.FocusDurationMilli = 750
	}
}
