package config

import (
	"errors"
	"fmt"

	"github.com/tendant/image-saver/pkg/mediasaver/objectkey"
	s3storage "github.com/tendant/image-saver/pkg/mediasaver/storage/s3"
)

// WithDatabase keeps the media index in Postgres. An empty url keeps it in
// memory.
func WithDatabase(url string) Option {
	return func(c *ServerConfig) error {
		c.Database.URL = url
		return nil
	}
}

func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.Database.Schema = schema
		return nil
	}
}

func WithAutoMigrate(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.Database.AutoMigrate = enabled
		return nil
	}
}

// WithBackend registers a blob store, replacing one of the same name.
func WithBackend(backend BackendConfig) Option {
	return func(c *ServerConfig) error {
		if backend.Name == "" {
			return errors.New("storage backend name is required")
		}
		c.Storage.put(backend)
		return nil
	}
}

func WithMemoryStorage(name string) Option {
	return WithBackend(BackendConfig{Name: name, Type: BackendMemory})
}

// WithFilesystemStorage stores blobs under baseDir. urlPrefix, when set, is
// the base URL of a static server publishing baseDir.
func WithFilesystemStorage(name, baseDir, urlPrefix string) Option {
	backend := BackendConfig{Name: name, Type: BackendFS}
	backend.FS.BaseDir = baseDir
	backend.FS.URLPrefix = urlPrefix
	return WithBackend(backend)
}

func WithS3Storage(name string, s3 s3storage.Config) Option {
	return WithBackend(BackendConfig{Name: name, Type: BackendS3, S3: s3})
}

// WithDefaultStorage selects the backend new entries are written to.
func WithDefaultStorage(name string) Option {
	return func(c *ServerConfig) error {
		c.Storage.Default = name
		return nil
	}
}

func WithAPILevel(level int) Option {
	return func(c *ServerConfig) error {
		if level <= 0 {
			return fmt.Errorf("api level must be positive, got %d", level)
		}
		c.Platform.APILevel = level
		return nil
	}
}

func WithExternalDir(dir string) Option {
	return func(c *ServerConfig) error {
		c.Platform.ExternalDir = dir
		return nil
	}
}

func WithTempDir(dir string) Option {
	return func(c *ServerConfig) error {
		c.Platform.TempDir = dir
		return nil
	}
}

// WithObjectKeyGenerator selects how modern entries name their blobs.
func WithObjectKeyGenerator(name string) Option {
	return func(c *ServerConfig) error {
		if _, err := objectkey.New(name); err != nil {
			return err
		}
		c.Saving.ObjectKeys = name
		return nil
	}
}

func WithPreviews(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.Saving.Previews = enabled
		return nil
	}
}

func WithPreviewMaxEdge(pixels int) Option {
	return func(c *ServerConfig) error {
		c.Saving.PreviewMaxEdge = pixels
		return nil
	}
}

func WithEventLogging(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.Saving.EventLog = enabled
		return nil
	}
}

func WithNoticeCapacity(capacity int) Option {
	return func(c *ServerConfig) error {
		c.Saving.NoticeCapacity = capacity
		return nil
	}
}
