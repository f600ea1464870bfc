package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

// Storage backends.
const (
	BackendMemory    = "memory"
	BackendBolt      = "bolt"
	BackendRedis     = "redis"
	BackendSQLite    = "sqlite"
	BackendFirestore = "firestore"
)

type Config struct {
	Mode Mode `yaml:"mode"`

	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`
	// LogFile receives logs in console mode; empty means stderr.
	LogFile string `yaml:"log_file"`

	GCPProjectID string `yaml:"gcp_project"`
	GCPLocation  string `yaml:"gcp_location"`
	ModelName    string `yaml:"model_name"`
	// APIKey selects the Gemini API instead of Vertex AI.
	APIKey        string `yaml:"api_key"`
	UseMockLLM    bool   `yaml:"-"` // true = use mock even on GCP
	MaxToolRounds int    `yaml:"max_tool_rounds"`

	// ThreadListLimit caps the picker and the HTTP thread listing.
	ThreadListLimit int `yaml:"thread_list_limit"`

	Storage StorageConfig `yaml:"storage"`
}

type StorageConfig struct {
	Backend string `yaml:"backend"`

	BoltPath   string `yaml:"bolt_path"`
	SQLitePath string `yaml:"sqlite_path"`

	RedisURL    string `yaml:"redis_url"`
	RedisPrefix string `yaml:"redis_prefix"`

	FirestoreCollection string `yaml:"firestore_collection"`
	FirestoreEnvelope   bool   `yaml:"firestore_envelope"`
}

func defaults() *Config {
	return &Config{
		Mode:            ModeLocal,
		Port:            "8080",
		LogLevel:        "info",
		GCPLocation:     "us-central1",
		ModelName:       "gemini-2.5-flash-lite",
		MaxToolRounds:   4,
		ThreadListLimit: 20,
		Storage: StorageConfig{
			Backend:             BackendMemory,
			BoltPath:            "data/farum.bolt",
			SQLitePath:          "data/farum.db",
			RedisURL:            "redis://localhost:6379/0",
			FirestoreCollection: "documents",
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if v == "1" || v == "true" || v == "TRUE" {
		return true
	}
	return false
}

func getIntEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Load builds the config from defaults, the optional YAML file named by
// FARUM_CONFIG_FILE and FARUM_* env vars, in that order of precedence
// (env wins).
func Load() (*Config, error) {
	cfg := defaults()

	var mockFromFile *bool
	if path := os.Getenv("FARUM_CONFIG_FILE"); path != "" {
		var err error
		mockFromFile, err = loadFile(path, cfg)
		if err != nil {
			return nil, err
		}
	}

	switch getEnv("FARUM_MODE", string(cfg.Mode)) {
	case "gcp":
		cfg.Mode = ModeGCP
	default:
		cfg.Mode = ModeLocal
	}

	cfg.Port = getEnv("FARUM_PORT", getEnv("PORT", cfg.Port))
	cfg.LogLevel = getEnv("FARUM_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = getEnv("FARUM_LOG_FILE", cfg.LogFile)

	cfg.GCPProjectID = getEnv("FARUM_GCP_PROJECT", cfg.GCPProjectID)
	cfg.GCPLocation = getEnv("FARUM_GCP_LOCATION", cfg.GCPLocation)
	cfg.ModelName = getEnv("FARUM_MODEL_NAME", cfg.ModelName)
	cfg.APIKey = getEnv("FARUM_GEMINI_API_KEY", cfg.APIKey)
	cfg.MaxToolRounds = getIntEnv("FARUM_MAX_TOOL_ROUNDS", cfg.MaxToolRounds)
	cfg.ThreadListLimit = getIntEnv("FARUM_THREAD_LIST_LIMIT", cfg.ThreadListLimit)

	mockDefault := cfg.Mode == ModeLocal
	if mockFromFile != nil {
		mockDefault = *mockFromFile
	}
	cfg.UseMockLLM = getBoolEnv("FARUM_USE_MOCK_LLM", mockDefault)

	st := &cfg.Storage
	st.Backend = getEnv("FARUM_STORAGE_BACKEND", st.Backend)
	st.BoltPath = getEnv("FARUM_BOLT_PATH", st.BoltPath)
	st.SQLitePath = getEnv("FARUM_SQLITE_PATH", st.SQLitePath)
	st.RedisURL = getEnv("FARUM_REDIS_URL", st.RedisURL)
	st.RedisPrefix = getEnv("FARUM_REDIS_PREFIX", st.RedisPrefix)
	st.FirestoreCollection = getEnv("FARUM_FIRESTORE_COLLECTION", st.FirestoreCollection)
	st.FirestoreEnvelope = getBoolEnv("FARUM_FIRESTORE_ENVELOPE", st.FirestoreEnvelope)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile overlays the YAML file onto cfg. use_mock_llm is reported
// separately so that an explicit false in the file survives the mode default.
func loadFile(path string, cfg *Config) (*bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	var flags struct {
		UseMockLLM *bool `yaml:"use_mock_llm"`
	}
	if err := yaml.Unmarshal(data, &flags); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return flags.UseMockLLM, nil
}

// Validate checks the settings the selected mode and backend depend on.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendBolt, BackendRedis, BackendSQLite:
	case BackendFirestore:
		if c.GCPProjectID == "" {
			return fmt.Errorf("FARUM_GCP_PROJECT is required for the firestore storage backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	if !c.UseMockLLM && c.APIKey == "" && c.GCPProjectID == "" {
		return fmt.Errorf("FARUM_GCP_PROJECT or FARUM_GEMINI_API_KEY must be set when the mock LLM is disabled")
	}
	if c.ThreadListLimit < 0 {
		return fmt.Errorf("thread list limit must not be negative")
	}
	return nil
}
