package objectkey

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generator defines the interface for object key generation strategies
type Generator interface {
	// GenerateKey creates the storage key for a media entry's bytes
	GenerateKey(entryID uuid.UUID, metadata *KeyMetadata) string
}

// KeyMetadata contains information that influences key generation
type KeyMetadata struct {
	DisplayName  string
	RelativePath string
	MimeType     string
}

// Generator names accepted by New.
const (
	NameRelativePath = "relative-path"
	NameGitLike      = "git-like"
	NameHashed       = "hashed"
)

// New returns the generator registered under name. An empty name selects the
// relative-path generator.
func New(name string) (Generator, error) {
	switch name {
	case "", NameRelativePath:
		return NewRelativePathGenerator(), nil
	case NameGitLike:
		return NewGitLikeGenerator(), nil
	case NameHashed:
		return NewHashedGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown object key generator %q (valid: %s, %s, %s)", name, NameRelativePath, NameGitLike, NameHashed)
	}
}

// RelativePathGenerator files blobs under the entry's relative path, mirroring
// the collection layout of the media index.
// Layout: {relative_path}/{entry_id}/{display_name}
type RelativePathGenerator struct {
	DefaultPath string
}

func NewRelativePathGenerator() *RelativePathGenerator {
	return &RelativePathGenerator{DefaultPath: "Pictures"}
}

func (g *RelativePathGenerator) GenerateKey(entryID uuid.UUID, metadata *KeyMetadata) string {
	prefix := g.DefaultPath
	if metadata != nil && metadata.RelativePath != "" {
		prefix = strings.Trim(metadata.RelativePath, "/")
	}
	if metadata != nil && metadata.DisplayName != "" {
		return fmt.Sprintf("%s/%s/%s", prefix, entryID, sanitizeFilename(metadata.DisplayName))
	}
	return fmt.Sprintf("%s/%s", prefix, entryID)
}

// GitLikeGenerator provides Git-style sharded storage
// Layout: objects/ab/cd1234ef5678_filename
type GitLikeGenerator struct {
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
}

func NewGitLikeGenerator() *GitLikeGenerator {
	return &GitLikeGenerator{
		ShardLength: 2,
	}
}

func (g *GitLikeGenerator) GenerateKey(entryID uuid.UUID, metadata *KeyMetadata) string {
	idStr := strings.ReplaceAll(entryID.String(), "-", "")
	return shardedKey(idStr, g.ShardLength, metadata)
}

// HashedGenerator derives the shard from a hash of the entry ID, giving an
// even spread even for sequential IDs.
type HashedGenerator struct {
	ShardLength int
}

func NewHashedGenerator() *HashedGenerator {
	return &HashedGenerator{
		ShardLength: 2,
	}
}

func (g *HashedGenerator) GenerateKey(entryID uuid.UUID, metadata *KeyMetadata) string {
	hash := sha256.Sum256([]byte(entryID.String()))
	hashStr := fmt.Sprintf("%x", hash)
	return shardedKey(hashStr[:16], g.ShardLength, metadata)
}

func shardedKey(id string, shardLength int, metadata *KeyMetadata) string {
	if shardLength <= 0 || shardLength > len(id) {
		shardLength = 2
	}
	shardDir := id[:shardLength]
	filename := id[shardLength:]
	if metadata != nil && metadata.DisplayName != "" {
		filename = fmt.Sprintf("%s_%s", filename, sanitizeFilename(metadata.DisplayName))
	}
	return fmt.Sprintf("objects/%s/%s", shardDir, filename)
}

func sanitizeFilename(filename string) string {
	if filename == "." || filename == ".." {
		return "_"
	}
	// Replace problematic characters for filesystem compatibility
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	return replacer.Replace(filename)
}
