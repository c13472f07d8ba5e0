// Package config assembles a mediasaver.Service from declarative settings:
// functional options layered over defaults, optionally fed from the
// environment by WithEnv.
package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/tendant/image-saver/pkg/mediasaver"
	"github.com/tendant/image-saver/pkg/mediasaver/objectkey"
	"github.com/tendant/image-saver/pkg/mediasaver/preview"
	fsstorage "github.com/tendant/image-saver/pkg/mediasaver/storage/fs"
	s3storage "github.com/tendant/image-saver/pkg/mediasaver/storage/s3"
)

// Backend types.
const (
	BackendMemory = "memory"
	BackendFS     = "fs"
	BackendS3     = "s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// ServerConfig describes where the media index and saved images live and how
// the platform behaves.
type ServerConfig struct {
	Database DatabaseConfig
	Storage  StorageConfig
	Platform PlatformConfig
	Saving   SavingConfig
}

// DatabaseConfig locates the media index. An empty URL keeps it in memory.
type DatabaseConfig struct {
	URL         string
	Schema      string // search_path; empty keeps the server default
	AutoMigrate bool   // create the media_entry table on startup
}

// InMemory reports whether the index lives in process memory.
func (d DatabaseConfig) InMemory() bool {
	return d.URL == ""
}

// Kind names the index implementation, for logs.
func (d DatabaseConfig) Kind() string {
	if d.InMemory() {
		return "memory"
	}
	return "postgres"
}

// StorageConfig lists the blob stores and the one new entries are written to.
type StorageConfig struct {
	Default  string
	Backends []BackendConfig
}

// BackendConfig is one named blob store. Only the section matching Type is
// read.
type BackendConfig struct {
	Name string
	Type string
	FS   fsstorage.Config
	S3   s3storage.Config
}

// PlatformConfig carries the device-level settings that pick the strategy.
type PlatformConfig struct {
	APILevel    int
	ExternalDir string // root of legacy copies
	TempDir     string // staging for legacy downloads; empty uses the OS default
}

// Legacy reports whether APILevel selects the legacy strategy.
func (p PlatformConfig) Legacy() bool {
	return p.APILevel < mediasaver.ModernAPILevel
}

// SavingConfig tunes how entries are named, previewed and reported.
type SavingConfig struct {
	ObjectKeys     string // objectkey generator name
	Previews       bool
	PreviewMaxEdge int
	EventLog       bool
	NoticeCapacity int
}

func defaults() ServerConfig {
	return ServerConfig{
		Storage: StorageConfig{
			Default:  BackendMemory,
			Backends: []BackendConfig{{Name: BackendMemory, Type: BackendMemory}},
		},
		Platform: PlatformConfig{
			APILevel:    mediasaver.ModernAPILevel,
			ExternalDir: "./data/external",
		},
		Saving: SavingConfig{
			ObjectKeys:     objectkey.NameRelativePath,
			Previews:       true,
			PreviewMaxEdge: preview.DefaultMaxEdge,
			EventLog:       true,
			NoticeCapacity: 50,
		},
	}
}

// Load applies opts over the defaults and validates the result.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Backend returns the backend registered under name.
func (s *StorageConfig) Backend(name string) (BackendConfig, bool) {
	for _, b := range s.Backends {
		if b.Name == name {
			return b, true
		}
	}
	return BackendConfig{}, false
}

// put registers b, replacing a backend of the same name.
func (s *StorageConfig) put(b BackendConfig) {
	for i := range s.Backends {
		if s.Backends[i].Name == b.Name {
			s.Backends[i] = b
			return
		}
	}
	s.Backends = append(s.Backends, b)
}

// Validate reports every problem at once.
func (c *ServerConfig) Validate() error {
	var errs []error

	if !c.Database.InMemory() {
		u, err := url.Parse(c.Database.URL)
		if err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errs = append(errs, fmt.Errorf("database url must be a postgres:// url"))
		}
	}

	if c.Platform.APILevel <= 0 {
		errs = append(errs, fmt.Errorf("api level must be positive, got %d", c.Platform.APILevel))
	}
	if c.Platform.Legacy() && c.Platform.ExternalDir == "" {
		errs = append(errs, fmt.Errorf("external dir is required below api level %d", mediasaver.ModernAPILevel))
	}

	if _, err := objectkey.New(c.Saving.ObjectKeys); err != nil {
		errs = append(errs, err)
	}
	if c.Saving.PreviewMaxEdge < 0 {
		errs = append(errs, errors.New("preview max edge must not be negative"))
	}
	if c.Saving.NoticeCapacity < 0 {
		errs = append(errs, errors.New("notice capacity must not be negative"))
	}

	seen := make(map[string]bool, len(c.Storage.Backends))
	for _, b := range c.Storage.Backends {
		if b.Name == "" {
			errs = append(errs, errors.New("storage backend without a name"))
			continue
		}
		if seen[b.Name] {
			errs = append(errs, fmt.Errorf("storage backend %q is defined twice", b.Name))
		}
		seen[b.Name] = true
		if err := b.validate(); err != nil {
			errs = append(errs, fmt.Errorf("storage backend %q: %w", b.Name, err))
		}
	}

	// Legacy saves go to ExternalDir and never touch a blob store.
	if !c.Platform.Legacy() && !seen[c.Storage.Default] {
		errs = append(errs, fmt.Errorf("default storage backend %q is not configured", c.Storage.Default))
	}

	return errors.Join(errs...)
}

func (b BackendConfig) validate() error {
	switch b.Type {
	case BackendMemory:
		return nil
	case BackendFS:
		if b.FS.BaseDir == "" {
			return errors.New("base dir is required")
		}
		return nil
	case BackendS3:
		s3 := b.S3
		return s3.Validate()
	default:
		return fmt.Errorf("unsupported type %q", b.Type)
	}
}
