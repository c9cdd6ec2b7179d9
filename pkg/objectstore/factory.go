package objectstore

import "fmt"

// Config selects and configures a Store implementation.
type Config struct {
	// Type is one of "memory", "filesystem", or "s3".
	Type      string
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	// RootPath is the base directory for the filesystem store.
	RootPath string
}

// New builds the configured store, wrapped with operation metrics.
func New(cfg Config) (Store, error) {
	var store Store
	switch cfg.Type {
	case "", "memory":
		store = NewMemoryStore()
	case "filesystem", "fs":
		fs, err := NewFSStore(cfg.RootPath)
		if err != nil {
			return nil, fmt.Errorf("filesystem store: %w", err)
		}
		store = fs
	case "s3", "minio":
		s3, err := NewS3Store(S3Config{
			Endpoint:  cfg.Endpoint,
			Bucket:    cfg.Bucket,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Region:    cfg.Region,
			UseSSL:    cfg.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 store: %w", err)
		}
		store = s3
	default:
		return nil, fmt.Errorf("unknown object store type %q", cfg.Type)
	}
	return NewInstrumentedStore(store), nil
}
