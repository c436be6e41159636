package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/buildsearch/data/db/builds.db"
	}
	if cfg.Storage.IndexDir == "" {
		cfg.Storage.IndexDir = "/usr/local/var/buildsearch/data/indices"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "mock"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.BatchChunkSize == 0 {
		cfg.Embedding.BatchChunkSize = 32
	}
	if cfg.Embedding.Parallelism == 0 {
		cfg.Embedding.Parallelism = 4
	}
	if cfg.Index.Metric == "" {
		cfg.Index.Metric = "cosine"
	}
	if cfg.Index.Clusters == 0 {
		cfg.Index.Clusters = 100
	}
	if cfg.Index.NProbe == 0 {
		cfg.Index.NProbe = 8
	}
	if cfg.Index.RebuildThreshold == 0 {
		cfg.Index.RebuildThreshold = 0.3
	}
	applySearchDefaults(&cfg.Search)
	if cfg.Watch.DebounceMillis == 0 {
		cfg.Watch.DebounceMillis = 500
	}
}

func applySearchDefaults(s *SearchConfig) {
	if s.MaxResults == 0 {
		s.MaxResults = 20
	}
	if s.MinSimilarity == 0 {
		s.MinSimilarity = 0.3
	}
	if s.SimilarityWeight == 0 && s.PopularityWeight == 0 && s.QualityWeight == 0 {
		s.SimilarityWeight = 0.6
		s.PopularityWeight = 0.2
		s.QualityWeight = 0.2
	}
	if s.ClassAscendancyBoost == 0 {
		s.ClassAscendancyBoost = 1.3
	}
	if s.ClassBoost == 0 {
		s.ClassBoost = 1.15
	}
	if s.MainSkillBoost == 0 {
		s.MainSkillBoost = 1.2
	}
	if s.GoalBoost == 0 {
		s.GoalBoost = 1.1
	}
	if s.QualityBoost == 0 {
		s.QualityBoost = 1.05
	}
	if s.PopularityBoost == 0 {
		s.PopularityBoost = 1.1
	}
	if s.PopularityBoostRank == 0 {
		s.PopularityBoostRank = 100
	}
	if s.MaxSimilarPerGroup == 0 {
		s.MaxSimilarPerGroup = 2
	}
	if s.VariantMinSimilarity == 0 {
		s.VariantMinSimilarity = 0.6
	}
}
