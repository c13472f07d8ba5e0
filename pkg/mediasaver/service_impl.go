package mediasaver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/image-saver/pkg/mediasaver/objectkey"
)

// service implements the Service interface
type service struct {
	repository     Repository
	blobStores     map[string]BlobStore
	defaultBackend string
	eventSink      EventSink
	notifier       Notifier
	permissions    PermissionGate
	previewer      Previewer
	keyGenerator   objectkey.Generator
	httpClient     *http.Client
	apiLevel       int
	externalDir    string
	tempDir        string
	now            func() time.Time

	resolver *Resolver
	loader   *Loader
	strategy Strategy

	mu        sync.Mutex
	busy      bool
	input     ImageRef
	inputLoad *Pending[[]byte]
	output    *MediaEntry
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the media index for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore adds a blob storage backend
func WithBlobStore(name string, store BlobStore) Option {
	return func(s *service) {
		if s.blobStores == nil {
			s.blobStores = make(map[string]BlobStore)
		}
		s.blobStores[name] = store
	}
}

// WithDefaultBackend names the backend new entries are written to
func WithDefaultBackend(name string) Option {
	return func(s *service) {
		s.defaultBackend = name
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithNotifier sets where user notices go
func WithNotifier(notifier Notifier) Option {
	return func(s *service) {
		s.notifier = notifier
	}
}

// WithPermissionGate sets the runtime permission gate
func WithPermissionGate(gate PermissionGate) Option {
	return func(s *service) {
		s.permissions = gate
	}
}

// WithPreviewer sets the previewer for the service
func WithPreviewer(previewer Previewer) Option {
	return func(s *service) {
		s.previewer = previewer
	}
}

// WithObjectKeyGenerator sets how blob keys of new entries are named
func WithObjectKeyGenerator(generator objectkey.Generator) Option {
	return func(s *service) {
		s.keyGenerator = generator
	}
}

// WithHTTPClient sets the client used to fetch http(s) sources
func WithHTTPClient(client *http.Client) Option {
	return func(s *service) {
		s.httpClient = client
	}
}

// WithAPILevel sets the platform API level the strategy is selected from
func WithAPILevel(level int) Option {
	return func(s *service) {
		s.apiLevel = level
	}
}

// WithExternalDir sets the root directory of legacy copies
func WithExternalDir(dir string) Option {
	return func(s *service) {
		s.externalDir = dir
	}
}

// WithTempDir sets where the loader stages downloads
func WithTempDir(dir string) Option {
	return func(s *service) {
		s.tempDir = dir
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// New creates a new service instance with the given options. The storage
// strategy is chosen here, from the API level, and never revisited.
func New(options ...Option) (Service, error) {
	s := &service{
		blobStores: make(map[string]BlobStore),
		apiLevel:   ModernAPILevel,
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}

	modern := s.apiLevel >= ModernAPILevel
	if modern {
		if s.defaultBackend == "" && len(s.blobStores) == 1 {
			for name := range s.blobStores {
				s.defaultBackend = name
			}
		}
		if _, ok := s.blobStores[s.defaultBackend]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrStorageBackendNotFound, s.defaultBackend)
		}
	}

	if s.externalDir == "" {
		s.externalDir = filepath.Join(os.TempDir(), "image-saver", "external")
	}
	if s.eventSink == nil {
		s.eventSink = NewNoopEventSink()
	}
	if s.notifier == nil {
		s.notifier = NewLogNotifier(nil)
	}
	if s.previewer == nil {
		s.previewer = passthroughPreviewer{}
	}
	if s.permissions == nil {
		if modern {
			s.permissions = AlwaysGranted{}
		} else {
			s.permissions = NewPermissionGate()
		}
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}

	s.resolver = NewResolver(s.repository, s.blobStores, s.httpClient)
	s.loader = NewLoader(s.resolver, s.tempDir)
	s.strategy = SelectStrategy(s.apiLevel, LocatorConfig{
		Repository:   s.repository,
		Resolver:     s.resolver,
		Loader:       s.loader,
		Permissions:  s.permissions,
		Events:       s.eventSink,
		Backend:      s.defaultBackend,
		KeyGenerator: s.keyGenerator,
		ExternalDir:  s.externalDir,
		Now:          s.now,
	})

	slog.Info("Media saver ready", "strategy", s.strategy.Kind(), "api_level", s.apiLevel, "backend", s.defaultBackend)
	return s, nil
}

func (s *service) Strategy() StrategyKind {
	return s.strategy.Kind()
}

func (s *service) ReceiveShare(ctx context.Context, intent ShareIntent) error {
	if intent.Action != ActionSend || !strings.HasPrefix(intent.Type, "image/") || intent.Stream == "" {
		slog.Debug("Ignoring share", "action", intent.Action, "type", intent.Type)
		return ErrShareIgnored
	}

	// The preview load outlives the request that delivered the share.
	load := s.loader.Load(context.WithoutCancel(ctx), intent.Stream)

	s.mu.Lock()
	s.input = intent.Stream
	s.inputLoad = load
	s.mu.Unlock()

	slog.Info("Received shared image", "ref", intent.Stream, "type", intent.Type)
	return nil
}

func (s *service) Save(ctx context.Context) (*MediaEntry, error) {
	s.mu.Lock()
	input := s.input
	if input == "" {
		s.mu.Unlock()
		return nil, ErrNoInput
	}
	if s.busy {
		s.mu.Unlock()
		return nil, ErrSaveInProgress
	}
	s.busy = true
	s.mu.Unlock()
	defer s.release()

	entry, err := s.strategy.Persist(ctx, input)
	if err != nil {
		// A missing permission is answered through PermissionResult; index
		// refusals abort without a notice.
		if errors.Is(err, ErrCopyFailed) {
			s.notify(ctx, NoticeError, NoticeDownloadFail)
		}
		slog.Warn("Save aborted", "ref", input, "strategy", s.strategy.Kind(), "error", err)
		return nil, err
	}

	s.mu.Lock()
	s.output = entry
	s.mu.Unlock()

	s.notify(ctx, NoticeInfo, NoticeDownloadSuccess)
	slog.Info("Saved shared image", "entry_id", entry.ID, "uri", entry.URI(), "size_bytes", entry.SizeBytes)
	return entry, nil
}

func (s *service) PermissionResult(ctx context.Context, permission string, granted bool) error {
	if s.strategy.Kind() != StrategyLegacy || permission != PermissionWriteExternalStorage {
		slog.Debug("Ignoring permission result", "permission", permission, "granted", granted)
		return nil
	}
	if err := s.permissions.Resolve(ctx, permission, granted); err != nil {
		return err
	}
	if !granted {
		s.notify(ctx, NoticeError, NoticeNoPermission)
	}
	return nil
}

func (s *service) PreviewInput(ctx context.Context) (*Preview, error) {
	s.mu.Lock()
	load := s.inputLoad
	s.mu.Unlock()
	if load == nil {
		return nil, ErrNoInput
	}

	data, err := load.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load input: %w", err)
	}
	return s.previewer.Preview(ctx, data)
}

func (s *service) OpenOutput(ctx context.Context) (string, error) {
	entry, err := s.currentOutput()
	if err != nil {
		return "", err
	}
	return s.resolver.ViewURL(ctx, entry)
}

func (s *service) LoadOutput(ctx context.Context) (*Preview, error) {
	entry, err := s.currentOutput()
	if err != nil {
		return nil, err
	}

	data, err := s.loader.Load(ctx, entry.URI()).Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load output: %w", err)
	}
	return s.previewer.Preview(ctx, data)
}

func (s *service) DeleteOutput(ctx context.Context) error {
	s.mu.Lock()
	entry := s.output
	if entry == nil {
		s.mu.Unlock()
		return ErrNoOutput
	}
	if s.busy {
		s.mu.Unlock()
		return ErrSaveInProgress
	}
	s.busy = true
	s.mu.Unlock()
	defer s.release()

	if err := s.repository.DeleteEntry(ctx, entry.ID); err != nil {
		return &EntryError{EntryID: entry.ID, Op: "delete", Err: err}
	}
	if err := s.resolver.RemoveEntryBytes(ctx, entry); err != nil {
		slog.Warn("Failed to remove entry bytes", "entry_id", entry.ID, "error", err)
	}
	if err := s.eventSink.EntryDeleted(ctx, entry.ID); err != nil {
		slog.Warn("Event sink failed", "event", "entry_deleted", "entry_id", entry.ID, "error", err)
	}

	s.mu.Lock()
	s.output = nil
	s.mu.Unlock()

	s.notify(ctx, NoticeInfo, NoticeImageDeleted)
	return nil
}

func (s *service) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := SessionState{Input: s.input}
	if s.output != nil {
		output := *s.output
		state.Output = &output
	}
	return state
}

func (s *service) GetEntry(ctx context.Context, id uuid.UUID) (*MediaEntry, error) {
	return s.repository.GetEntry(ctx, id)
}

func (s *service) OpenEntry(ctx context.Context, id uuid.UUID) (*MediaEntry, io.ReadCloser, error) {
	entry, err := s.repository.GetEntry(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.resolver.OpenEntry(ctx, entry)
	if err != nil {
		return nil, nil, err
	}
	return entry, rc, nil
}

func (s *service) ListEntries(ctx context.Context, req ListEntriesRequest) ([]*MediaEntry, error) {
	return s.repository.ListEntries(ctx, req)
}

func (s *service) currentOutput() (*MediaEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.output == nil {
		return nil, ErrNoOutput
	}
	return s.output, nil
}

func (s *service) release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

func (s *service) notify(ctx context.Context, level NoticeLevel, message string) {
	s.notifier.Notify(ctx, Notice{Level: level, Message: message, At: s.now()})
}
