// Package presets builds ready-to-use saver sessions for common setups.
package presets

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/tendant/image-saver/pkg/mediasaver"
	memoryrepo "github.com/tendant/image-saver/pkg/mediasaver/repo/memory"
	fsstorage "github.com/tendant/image-saver/pkg/mediasaver/storage/fs"
	memorystorage "github.com/tendant/image-saver/pkg/mediasaver/storage/memory"
)

// NewDevelopment creates a session configured for local development.
//
// Features:
//   - In-memory media index (instant startup, no setup required)
//   - Filesystem blob storage under ./dev-data/blobs
//   - Legacy external storage under ./dev-data/external
//   - Permission requests granted up front
//
// Returns:
//   - Service instance
//   - Cleanup function (call with defer to remove the dev-data directory)
//   - Error if setup fails
//
// Example:
//
//	svc, cleanup, err := presets.NewDevelopment()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cleanup()
func NewDevelopment(opts ...DevelopmentOption) (mediasaver.Service, func(), error) {
	cfg := &devConfig{
		dataDir:  "./dev-data",
		apiLevel: mediasaver.ModernAPILevel,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	fsBackend, err := fsstorage.New(fsstorage.Config{
		BaseDir: filepath.Join(cfg.dataDir, "blobs"),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create filesystem storage: %w", err)
	}

	svc, err := mediasaver.New(
		mediasaver.WithRepository(memoryrepo.New()),
		mediasaver.WithBlobStore("fs", fsBackend),
		mediasaver.WithAPILevel(cfg.apiLevel),
		mediasaver.WithExternalDir(filepath.Join(cfg.dataDir, "external")),
		mediasaver.WithPermissionGate(mediasaver.NewPermissionGate(mediasaver.PermissionWriteExternalStorage)),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create service: %w", err)
	}

	cleanup := func() {
		os.RemoveAll(cfg.dataDir)
	}
	return svc, cleanup, nil
}

// NewTesting creates a session configured for unit and integration tests.
//
// Features:
//   - In-memory media index and blob storage (isolated per test)
//   - External and staging directories under t.TempDir()
//   - Notices collected in the returned feed
//
// Example:
//
//	func TestMyFeature(t *testing.T) {
//	    svc, notices := presets.NewTesting(t)
//	    // Use service in test...
//	}
func NewTesting(t testing.TB, opts ...TestingOption) (mediasaver.Service, *mediasaver.NoticeFeed) {
	t.Helper()
	cfg := &testConfig{
		apiLevel: mediasaver.ModernAPILevel,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	feed := mediasaver.NewNoticeFeed(0)
	options := []mediasaver.Option{
		mediasaver.WithRepository(memoryrepo.New()),
		mediasaver.WithBlobStore("memory", memorystorage.New()),
		mediasaver.WithNotifier(feed),
		mediasaver.WithAPILevel(cfg.apiLevel),
		mediasaver.WithExternalDir(t.TempDir()),
		mediasaver.WithTempDir(t.TempDir()),
	}
	if cfg.granted {
		options = append(options, mediasaver.WithPermissionGate(
			mediasaver.NewPermissionGate(mediasaver.PermissionWriteExternalStorage),
		))
	}

	svc, err := mediasaver.New(append(options, cfg.extra...)...)
	if err != nil {
		t.Fatalf("failed to create test service: %v", err)
	}
	return svc, feed
}

// devConfig holds development preset configuration
type devConfig struct {
	dataDir  string
	apiLevel int
}

// testConfig holds testing preset configuration
type testConfig struct {
	apiLevel int
	granted  bool
	extra    []mediasaver.Option
}

// DevelopmentOption is a functional option for NewDevelopment
type DevelopmentOption func(*devConfig)

// WithDevDataDir sets the development data directory
func WithDevDataDir(dir string) DevelopmentOption {
	return func(cfg *devConfig) {
		cfg.dataDir = dir
	}
}

// WithDevAPILevel sets the platform API level of the development session
func WithDevAPILevel(level int) DevelopmentOption {
	return func(cfg *devConfig) {
		cfg.apiLevel = level
	}
}

// TestingOption is a functional option for NewTesting
type TestingOption func(*testConfig)

// WithLegacy selects the legacy strategy. granted pre-grants the write permission.
func WithLegacy(granted bool) TestingOption {
	return func(cfg *testConfig) {
		cfg.apiLevel = mediasaver.ModernAPILevel - 1
		cfg.granted = granted
	}
}

// WithServiceOptions appends raw service options, applied last.
func WithServiceOptions(opts ...mediasaver.Option) TestingOption {
	return func(cfg *testConfig) {
		cfg.extra = append(cfg.extra, opts...)
	}
}
