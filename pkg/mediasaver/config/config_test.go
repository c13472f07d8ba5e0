package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/image-saver/pkg/mediasaver"
	"github.com/tendant/image-saver/pkg/mediasaver/objectkey"
	s3storage "github.com/tendant/image-saver/pkg/mediasaver/storage/s3"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Database.InMemory())
	assert.Equal(t, "memory", cfg.Database.Kind())
	assert.Equal(t, BackendMemory, cfg.Storage.Default)
	assert.Len(t, cfg.Storage.Backends, 1)
	assert.Equal(t, mediasaver.ModernAPILevel, cfg.Platform.APILevel)
	assert.False(t, cfg.Platform.Legacy())
	assert.Equal(t, objectkey.NameRelativePath, cfg.Saving.ObjectKeys)
	assert.True(t, cfg.Saving.Previews)
	assert.True(t, cfg.Saving.EventLog)
	assert.Equal(t, 50, cfg.Saving.NoticeCapacity)
}

func TestBuildService_Modern(t *testing.T) {
	cfg, err := Load(
		WithFilesystemStorage("fs", t.TempDir(), ""),
		WithDefaultStorage("fs"),
		WithObjectKeyGenerator(objectkey.NameHashed),
	)
	require.NoError(t, err)

	svc, err := cfg.BuildService()
	require.NoError(t, err)
	assert.Equal(t, mediasaver.StrategyModern, svc.Strategy())
}

func TestBuildService_Legacy(t *testing.T) {
	cfg, err := Load(
		WithAPILevel(23),
		WithExternalDir(t.TempDir()),
		WithTempDir(t.TempDir()),
		WithPreviews(false),
		WithDefaultStorage("unused"),
	)
	require.NoError(t, err, "legacy saves never read the default backend")
	assert.True(t, cfg.Platform.Legacy())

	svc, err := cfg.BuildService(mediasaver.WithNotifier(mediasaver.NewNoticeFeed(5)))
	require.NoError(t, err)
	assert.Equal(t, mediasaver.StrategyLegacy, svc.Strategy())
}

func TestBuildService_UnknownBackendType(t *testing.T) {
	cfg := defaults()
	cfg.Storage.Backends = append(cfg.Storage.Backends, BackendConfig{Name: "gcs", Type: "gcs"})

	_, err := cfg.BuildService()
	assert.ErrorContains(t, err, `unsupported storage backend type "gcs"`)
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := defaults()
	cfg.Database.URL = "mysql://localhost/media"
	cfg.Saving.ObjectKeys = "random"
	cfg.Saving.NoticeCapacity = -1
	cfg.Storage.Default = "s3"
	cfg.Storage.Backends = append(cfg.Storage.Backends,
		BackendConfig{Name: BackendMemory, Type: BackendMemory},
		BackendConfig{Name: "disk", Type: BackendFS},
		BackendConfig{Name: "bucket", Type: BackendS3, S3: s3storage.Config{Encryption: "rot13"}},
	)

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"postgres:// url",
		`unknown object key generator "random"`,
		"notice capacity",
		`storage backend "memory" is defined twice`,
		`storage backend "disk": base dir is required`,
		`storage backend "bucket"`,
		`default storage backend "s3" is not configured`,
	} {
		assert.ErrorContains(t, err, want)
	}
}

func TestValidate_LegacyNeedsExternalDir(t *testing.T) {
	_, err := Load(WithAPILevel(28), WithExternalDir(""))
	assert.ErrorContains(t, err, "external dir is required below api level 29")
}

func TestStorageConfig_PutReplacesByName(t *testing.T) {
	var s StorageConfig
	s.put(BackendConfig{Name: "main", Type: BackendMemory})
	s.put(BackendConfig{Name: "main", Type: BackendFS})

	require.Len(t, s.Backends, 1)
	b, ok := s.Backend("main")
	require.True(t, ok)
	assert.Equal(t, BackendFS, b.Type)

	_, ok = s.Backend("other")
	assert.False(t, ok)
}
