package config

// DefaultPath is the config file location relative to the home directory.
const DefaultPath = ".config/kioku/config.yaml"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Notes.Directory == "" {
		cfg.Notes.Directory = ".local/share/kioku/notes"
	}
	if cfg.Notes.Extension == "" {
		cfg.Notes.Extension = ".txt"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "json"
	}
	if cfg.Storage.CachePath == "" {
		cfg.Storage.CachePath = ".local/share/kioku/embeddings_cache.json"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = ".local/share/kioku/embeddings.db"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.Model == "" && cfg.Embedding.Provider == "ollama" {
		cfg.Embedding.Model = "nomic-embed-text"
	}
	if cfg.Embedding.OllamaURL == "" {
		cfg.Embedding.OllamaURL = "http://localhost:11434"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = ".local/share/kioku/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.Title.Provider == "" {
		cfg.Title.Provider = "openai"
	}
	if cfg.Title.Model == "" {
		cfg.Title.Model = "gpt-3.5-turbo"
	}
	if cfg.Related.Limit == 0 {
		cfg.Related.Limit = 5
	}
	if len(cfg.Related.Thresholds) == 0 {
		cfg.Related.Thresholds = []float64{0.8, 0.7, 0.6, 0.5}
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = 500
	}
}
