package config

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/image-saver/pkg/mediasaver"
	"github.com/tendant/image-saver/pkg/mediasaver/objectkey"
	"github.com/tendant/image-saver/pkg/mediasaver/preview"
	"github.com/tendant/image-saver/pkg/mediasaver/repo/memory"
	repopg "github.com/tendant/image-saver/pkg/mediasaver/repo/postgres"
	fsstorage "github.com/tendant/image-saver/pkg/mediasaver/storage/fs"
	memorystorage "github.com/tendant/image-saver/pkg/mediasaver/storage/memory"
	s3storage "github.com/tendant/image-saver/pkg/mediasaver/storage/s3"
)

const migrateTimeout = 30 * time.Second

// BuildService creates a Service from the configuration. extra options are
// applied last and override the configured ones.
func (c *ServerConfig) BuildService(extra ...mediasaver.Option) (mediasaver.Service, error) {
	repo, err := c.Database.open()
	if err != nil {
		return nil, fmt.Errorf("failed to open media index: %w", err)
	}

	generator, err := objectkey.New(c.Saving.ObjectKeys)
	if err != nil {
		return nil, err
	}

	options := []mediasaver.Option{
		mediasaver.WithRepository(repo),
		mediasaver.WithObjectKeyGenerator(generator),
		mediasaver.WithAPILevel(c.Platform.APILevel),
		mediasaver.WithExternalDir(c.Platform.ExternalDir),
		mediasaver.WithTempDir(c.Platform.TempDir),
	}

	// Legacy saves never write to a blob store, but entries saved before a
	// downgrade must still resolve.
	for _, b := range c.Storage.Backends {
		store, err := b.open()
		if err != nil {
			return nil, fmt.Errorf("failed to open storage backend %s: %w", b.Name, err)
		}
		options = append(options, mediasaver.WithBlobStore(b.Name, store))
	}
	if !c.Platform.Legacy() {
		options = append(options, mediasaver.WithDefaultBackend(c.Storage.Default))
	}

	if c.Saving.EventLog {
		options = append(options, mediasaver.WithEventSink(mediasaver.NewLoggingEventSink(slog.Default())))
	}
	if c.Saving.Previews {
		options = append(options, mediasaver.WithPreviewer(preview.New(c.Saving.PreviewMaxEdge)))
	}

	return mediasaver.New(append(options, extra...)...)
}

func (d DatabaseConfig) open() (mediasaver.Repository, error) {
	if d.InMemory() {
		return memory.New(), nil
	}

	poolConfig, err := pgxpool.ParseConfig(d.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid database url: %w", err)
	}
	if d.Schema != "" {
		searchPath := "SET search_path TO " + pgx.Identifier{d.Schema}.Sanitize()
		poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, searchPath)
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	if d.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
		defer cancel()
		if err := repopg.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return repopg.NewWithPool(pool), nil
}

func (b BackendConfig) open() (mediasaver.BlobStore, error) {
	switch b.Type {
	case BackendMemory:
		return memorystorage.New(), nil
	case BackendFS:
		return fsstorage.New(b.FS)
	case BackendS3:
		return s3storage.New(b.S3)
	default:
		return nil, fmt.Errorf("unsupported storage backend type %q", b.Type)
	}
}
