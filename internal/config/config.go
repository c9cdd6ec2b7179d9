package config

import (
	"encoding/json"
	"fmt"
	"os"
)

type Config struct {
	ListenAddr  string            `json:"listen_addr"`
	AuthToken   string            `json:"auth_token"`
	ObjectStore ObjectStoreConfig `json:"object_store"`
	Ingest      IngestConfig      `json:"ingest"`
	Search      SearchConfig      `json:"search"`
	Snapshot    SnapshotConfig    `json:"snapshot"`
	Timeout     TimeoutConfig     `json:"timeout"`
}

type ObjectStoreConfig struct {
	Type      string `json:"type"`
	Endpoint  string `json:"endpoint"`
	Bucket    string `json:"bucket"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Region    string `json:"region"`
	UseSSL    bool   `json:"use_ssl"`
	RootPath  string `json:"root_path"`
}

// IngestConfig holds bulk ingest configuration.
type IngestConfig struct {
	// MaxBulkRecords caps the number of records accepted in one bulk call.
	// 0 means use the default.
	MaxBulkRecords int `json:"max_bulk_records,omitempty"`
}

// GetMaxBulkRecords returns MaxBulkRecords with default fallback.
func (c IngestConfig) GetMaxBulkRecords() int {
	if c.MaxBulkRecords <= 0 {
		return 1000
	}
	return c.MaxBulkRecords
}

// SearchConfig holds search pagination limits.
type SearchConfig struct {
	// DefaultPageSize is the page size when the request gives no limit.
	// 0 means use the default.
	DefaultPageSize int `json:"default_page_size,omitempty"`
	// MaxPageSize caps the requested page size. 0 means use the default.
	MaxPageSize int `json:"max_page_size,omitempty"`
	// WordCloudStemming enables snowball stemming for the words aggregation.
	WordCloudStemming bool `json:"word_cloud_stemming,omitempty"`
}

// GetDefaultPageSize returns DefaultPageSize with default fallback.
func (c SearchConfig) GetDefaultPageSize() int {
	if c.DefaultPageSize <= 0 {
		return 50
	}
	return c.DefaultPageSize
}

// GetMaxPageSize returns MaxPageSize with default fallback.
func (c SearchConfig) GetMaxPageSize() int {
	if c.MaxPageSize <= 0 {
		return 1000
	}
	return c.MaxPageSize
}

// SnapshotConfig holds snapshot export configuration.
type SnapshotConfig struct {
	// Prefix is the object store key prefix for snapshot artifacts.
	Prefix string `json:"prefix,omitempty"`
	// ScanPageSize is the page size used when draining a dataset for export.
	// 0 means use the default.
	ScanPageSize int `json:"scan_page_size,omitempty"`
}

// GetPrefix returns Prefix with default fallback.
func (c SnapshotConfig) GetPrefix() string {
	if c.Prefix == "" {
		return "anno/snapshots"
	}
	return c.Prefix
}

// GetScanPageSize returns ScanPageSize with default fallback.
func (c SnapshotConfig) GetScanPageSize() int {
	if c.ScanPageSize <= 0 {
		return 500
	}
	return c.ScanPageSize
}

// TimeoutConfig holds per-request timeout configuration.
type TimeoutConfig struct {
	// SearchTimeoutMs is the maximum time allowed for search requests in milliseconds.
	// Default: 30000 (30 seconds)
	SearchTimeoutMs int `json:"search_timeout_ms"`
	// WriteTimeoutMs is the maximum time allowed for bulk requests in milliseconds.
	// Default: 60000 (60 seconds)
	WriteTimeoutMs int `json:"write_timeout_ms"`
}

// GetSearchTimeout returns the search timeout in milliseconds with default fallback.
func (c TimeoutConfig) GetSearchTimeout() int {
	if c.SearchTimeoutMs <= 0 {
		return 30000
	}
	return c.SearchTimeoutMs
}

// GetWriteTimeout returns the write timeout in milliseconds with default fallback.
func (c TimeoutConfig) GetWriteTimeout() int {
	if c.WriteTimeoutMs <= 0 {
		return 60000
	}
	return c.WriteTimeoutMs
}

func Default() *Config {
	return &Config{
		ListenAddr: ":6900",
		ObjectStore: ObjectStoreConfig{
			Type:      "memory",
			Endpoint:  "http://localhost:9000",
			Bucket:    "anno",
			AccessKey: "minioadmin",
			SecretKey: "minioadmin",
			Region:    "us-east-1",
			UseSSL:    false,
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("ANNO_CONFIG")
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	if env := os.Getenv("ANNO_LISTEN_ADDR"); env != "" {
		cfg.ListenAddr = env
	}
	if env := os.Getenv("ANNO_AUTH_TOKEN"); env != "" {
		cfg.AuthToken = env
	}
	if env := os.Getenv("ANNO_OBJECT_STORE_TYPE"); env != "" {
		cfg.ObjectStore.Type = env
	}
	if env := os.Getenv("ANNO_OBJECT_STORE_ENDPOINT"); env != "" {
		cfg.ObjectStore.Endpoint = env
	}
	if env := os.Getenv("ANNO_OBJECT_STORE_BUCKET"); env != "" {
		cfg.ObjectStore.Bucket = env
	}
	if env := os.Getenv("ANNO_OBJECT_STORE_ROOT"); env != "" {
		cfg.ObjectStore.RootPath = env
	}
	if env := os.Getenv("ANNO_OBJECT_STORE_ACCESS_KEY"); env != "" {
		cfg.ObjectStore.AccessKey = env
	}
	if env := os.Getenv("ANNO_OBJECT_STORE_SECRET_KEY"); env != "" {
		cfg.ObjectStore.SecretKey = env
	}
	if env := os.Getenv("ANNO_OBJECT_STORE_REGION"); env != "" {
		cfg.ObjectStore.Region = env
	}
	if env := os.Getenv("ANNO_OBJECT_STORE_USE_SSL"); env != "" {
		cfg.ObjectStore.UseSSL = env == "true" || env == "1"
	}

	if env := os.Getenv("ANNO_INGEST_MAX_BULK_RECORDS"); env != "" {
		if n, err := parseIntEnv(env); err == nil {
			cfg.Ingest.MaxBulkRecords = n
		}
	}
	if env := os.Getenv("ANNO_SEARCH_DEFAULT_PAGE_SIZE"); env != "" {
		if n, err := parseIntEnv(env); err == nil {
			cfg.Search.DefaultPageSize = n
		}
	}
	if env := os.Getenv("ANNO_SEARCH_MAX_PAGE_SIZE"); env != "" {
		if n, err := parseIntEnv(env); err == nil {
			cfg.Search.MaxPageSize = n
		}
	}
	if env := os.Getenv("ANNO_SEARCH_WORD_CLOUD_STEMMING"); env != "" {
		cfg.Search.WordCloudStemming = env == "true" || env == "1"
	}
	if env := os.Getenv("ANNO_SNAPSHOT_PREFIX"); env != "" {
		cfg.Snapshot.Prefix = env
	}
	if env := os.Getenv("ANNO_SNAPSHOT_SCAN_PAGE_SIZE"); env != "" {
		if n, err := parseIntEnv(env); err == nil {
			cfg.Snapshot.ScanPageSize = n
		}
	}

	if env := os.Getenv("ANNO_TIMEOUT_SEARCH_MS"); env != "" {
		if n, err := parseIntEnv(env); err == nil {
			cfg.Timeout.SearchTimeoutMs = n
		}
	}
	if env := os.Getenv("ANNO_TIMEOUT_WRITE_MS"); env != "" {
		if n, err := parseIntEnv(env); err == nil {
			cfg.Timeout.WriteTimeoutMs = n
		}
	}

	return cfg, nil
}

func parseIntEnv(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}
