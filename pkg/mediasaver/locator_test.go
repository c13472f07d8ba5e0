package mediasaver_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/image-saver/pkg/mediasaver"
	"github.com/tendant/image-saver/pkg/mediasaver/repo/memory"
	memorystorage "github.com/tendant/image-saver/pkg/mediasaver/storage/memory"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type locatorFixture struct {
	cfg   mediasaver.LocatorConfig
	store mediasaver.BlobStore
	gate  *mediasaver.MemoryPermissionGate
	sink  *recordingSink
}

func newLocatorFixture(t *testing.T, repo mediasaver.Repository, granted ...string) *locatorFixture {
	t.Helper()
	store := memorystorage.New()
	resolver := mediasaver.NewResolver(repo, map[string]mediasaver.BlobStore{"memory": store}, nil)
	gate := mediasaver.NewPermissionGate(granted...)
	sink := &recordingSink{}
	return &locatorFixture{
		cfg: mediasaver.LocatorConfig{
			Repository:  repo,
			Resolver:    resolver,
			Loader:      mediasaver.NewLoader(resolver, t.TempDir()),
			Permissions: gate,
			Events:      sink,
			Backend:     "memory",
			ExternalDir: t.TempDir(),
			Now:         func() time.Time { return fixedNow },
		},
		store: store,
		gate:  gate,
		sink:  sink,
	}
}

func TestSelectStrategy(t *testing.T) {
	cfg := mediasaver.LocatorConfig{Repository: memory.New()}

	tests := []struct {
		apiLevel int
		want     mediasaver.StrategyKind
	}{
		{21, mediasaver.StrategyLegacy},
		{28, mediasaver.StrategyLegacy},
		{29, mediasaver.StrategyModern},
		{34, mediasaver.StrategyModern},
	}
	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.apiLevel), func(t *testing.T) {
			assert.Equal(t, tt.want, mediasaver.SelectStrategy(tt.apiLevel, cfg).Kind())
		})
	}
}

func TestModernStrategy_Locate(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	f := newLocatorFixture(t, repo)
	strategy := mediasaver.SelectStrategy(29, f.cfg).(*mediasaver.ModernStrategy)

	entry, err := strategy.Locate(ctx, "https://example.com/images/cat.png")
	require.NoError(t, err)

	stored, err := repo.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "cat.png", stored.DisplayName)
	assert.Equal(t, strconv.FormatInt(fixedNow.UnixMilli(), 10), stored.Title)
	assert.Equal(t, mediasaver.BookmarkRelativePath, stored.RelativePath)
	assert.Equal(t, mediasaver.DefaultMimeType, stored.MimeType)
	assert.Equal(t, string(mediasaver.EntryStatusPending), stored.Status)
	assert.True(t, fixedNow.Equal(stored.DateAdded))
	assert.Equal(t, "memory", stored.StorageBackendName)
	assert.Contains(t, stored.ObjectKey, "cat.png")
	assert.Equal(t, []string(nil), f.sink.updated)
	assert.Len(t, f.sink.created, 1)

	_, err = strategy.Locate(ctx, "https://example.com/")
	assert.ErrorIs(t, err, mediasaver.ErrNoDisplayName)
}

func TestModernStrategy_Persist(t *testing.T) {
	ctx := context.Background()
	body := testPNG(t, 40, 30)
	server := newImageServer(t, body)
	repo := memory.New()
	f := newLocatorFixture(t, repo)
	strategy := mediasaver.SelectStrategy(mediasaver.ModernAPILevel, f.cfg)

	entry, err := strategy.Persist(ctx, server.ref("cat.png"))
	require.NoError(t, err)

	assert.Equal(t, string(mediasaver.EntryStatusReady), entry.Status)
	assert.Equal(t, "image/png", entry.MimeType)
	assert.Equal(t, int64(len(body)), entry.SizeBytes)

	rc, err := f.store.Download(ctx, entry.ObjectKey)
	require.NoError(t, err)
	saved, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, body, saved)

	stored, err := repo.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, string(mediasaver.EntryStatusReady), stored.Status)
	assert.Equal(t, []string{string(mediasaver.EntryStatusReady)}, f.sink.updated)
}

func TestModernStrategy_InsertFailureSkipsCopy(t *testing.T) {
	server := newImageServer(t, testPNG(t, 4, 4))
	repo := newFailingRepository()
	f := newLocatorFixture(t, repo)
	strategy := mediasaver.SelectStrategy(mediasaver.ModernAPILevel, f.cfg)

	entry, err := strategy.Persist(context.Background(), server.ref("cat.png"))

	assert.Nil(t, entry)
	assert.ErrorIs(t, err, mediasaver.ErrNoDestination)
	assert.Equal(t, int32(1), repo.inserts.Load())
	assert.Equal(t, int32(0), server.hits.Load(), "source must not be read")
	assert.Empty(t, f.sink.created)
}

func TestModernStrategy_SourceFailureMarksEntryFailed(t *testing.T) {
	ctx := context.Background()
	server := newImageServer(t, nil)
	repo := memory.New()
	f := newLocatorFixture(t, repo)
	strategy := mediasaver.SelectStrategy(mediasaver.ModernAPILevel, f.cfg)

	_, err := strategy.Persist(ctx, mediasaver.ImageRef(server.URL+"/missing/cat.png"))
	assert.ErrorIs(t, err, mediasaver.ErrCopyFailed)

	failed, err := repo.ListEntries(ctx, mediasaver.ListEntriesRequest{Status: string(mediasaver.EntryStatusFailed)})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "cat.png", failed[0].DisplayName)
}

func TestLegacyStrategy_RequiresPermission(t *testing.T) {
	ctx := context.Background()
	server := newImageServer(t, testPNG(t, 4, 4))
	repo := memory.New()
	f := newLocatorFixture(t, repo)
	strategy := mediasaver.SelectStrategy(28, f.cfg)

	entry, err := strategy.Persist(ctx, server.ref("cat.png"))

	assert.Nil(t, entry)
	assert.ErrorIs(t, err, mediasaver.ErrPermissionRequired)
	assert.True(t, f.gate.Pending(mediasaver.PermissionWriteExternalStorage))
	assert.Equal(t, int32(0), server.hits.Load())

	files, err := os.ReadDir(f.cfg.ExternalDir)
	require.NoError(t, err)
	assert.Empty(t, files)

	// a grant does not resume the aborted save
	require.NoError(t, f.gate.Resolve(ctx, mediasaver.PermissionWriteExternalStorage, true))
	assert.Equal(t, int32(0), server.hits.Load())

	entry, err = strategy.Persist(ctx, server.ref("cat.png"))
	require.NoError(t, err)
	assert.Equal(t, int32(1), server.hits.Load())
	assert.True(t, entry.IsLegacy())
}

func TestLegacyStrategy_Persist(t *testing.T) {
	ctx := context.Background()
	body := testPNG(t, 64, 64)
	server := newImageServer(t, body)
	repo := memory.New()
	f := newLocatorFixture(t, repo, mediasaver.PermissionWriteExternalStorage)
	strategy := mediasaver.SelectStrategy(28, f.cfg)

	entry, err := strategy.Persist(ctx, server.ref("dog.png"))
	require.NoError(t, err)

	want := filepath.Join(f.cfg.ExternalDir, "Pictures", "bookmark", "dog.png")
	assert.Equal(t, want, entry.DataPath)
	assert.Equal(t, "dog.png", entry.DisplayName)
	assert.Equal(t, "image/png", entry.MimeType)
	assert.Equal(t, string(mediasaver.EntryStatusReady), entry.Status)
	assert.Equal(t, int64(len(body)), entry.SizeBytes)

	saved, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, body, saved)

	stored, err := repo.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, want, stored.DataPath)

	staged, err := os.ReadDir(filepath.Dir(want))
	require.NoError(t, err)
	assert.Len(t, staged, 1)
}

func TestLegacyStrategy_InsertFailure(t *testing.T) {
	server := newImageServer(t, testPNG(t, 4, 4))
	repo := newFailingRepository()
	f := newLocatorFixture(t, repo, mediasaver.PermissionWriteExternalStorage)
	strategy := mediasaver.SelectStrategy(28, f.cfg)

	entry, err := strategy.Persist(context.Background(), server.ref("cat.png"))

	assert.Nil(t, entry)
	assert.ErrorIs(t, err, mediasaver.ErrNoDestination)
	assert.Empty(t, f.sink.created)
}

func TestLegacyStrategy_NoDisplayName(t *testing.T) {
	f := newLocatorFixture(t, memory.New(), mediasaver.PermissionWriteExternalStorage)
	strategy := mediasaver.SelectStrategy(28, f.cfg)

	_, err := strategy.Persist(context.Background(), "https://example.com/")
	assert.ErrorIs(t, err, mediasaver.ErrNoDisplayName)
}
