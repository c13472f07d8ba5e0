package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/image-saver/pkg/mediasaver"
)

//go:embed schema.sql
var schema string

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements mediasaver.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL media index
func New(db DBTX) mediasaver.Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL media index with connection pool
func NewWithPool(pool *pgxpool.Pool) mediasaver.Repository {
	return &Repository{db: pool}
}

// EnsureSchema creates the media_entry table and its indexes if missing.
func EnsureSchema(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply media index schema: %w", err)
	}
	return nil
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("media entry already exists")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return mediasaver.ErrEntryNotFound
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

const entryColumns = `id, title, display_name, mime_type, relative_path, data_path,
	storage_backend_name, object_key, status, size_bytes, date_added,
	created_at, updated_at, deleted_at`

func scanEntry(row pgx.Row) (*mediasaver.MediaEntry, error) {
	var e mediasaver.MediaEntry
	err := row.Scan(
		&e.ID, &e.Title, &e.DisplayName, &e.MimeType, &e.RelativePath, &e.DataPath,
		&e.StorageBackendName, &e.ObjectKey, &e.Status, &e.SizeBytes, &e.DateAdded,
		&e.CreatedAt, &e.UpdatedAt, &e.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *Repository) InsertEntry(ctx context.Context, entry *mediasaver.MediaEntry) error {
	query := `
		INSERT INTO media_entry (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.db.Exec(ctx, query,
		entry.ID, entry.Title, entry.DisplayName, entry.MimeType, entry.RelativePath, entry.DataPath,
		entry.StorageBackendName, entry.ObjectKey, entry.Status, entry.SizeBytes, entry.DateAdded,
		entry.CreatedAt, entry.UpdatedAt, entry.DeletedAt)
	if err != nil {
		return r.handlePostgresError("insert entry", err)
	}
	return nil
}

func (r *Repository) GetEntry(ctx context.Context, id uuid.UUID) (*mediasaver.MediaEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM media_entry WHERE id = $1 AND deleted_at IS NULL`

	entry, err := scanEntry(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, r.handlePostgresError("get entry", err)
	}
	return entry, nil
}

func (r *Repository) UpdateEntry(ctx context.Context, entry *mediasaver.MediaEntry) error {
	query := `
		UPDATE media_entry SET
			title = $2, display_name = $3, mime_type = $4, relative_path = $5,
			data_path = $6, storage_backend_name = $7, object_key = $8,
			status = $9, size_bytes = $10, updated_at = $11
		WHERE id = $1 AND deleted_at IS NULL`

	tag, err := r.db.Exec(ctx, query,
		entry.ID, entry.Title, entry.DisplayName, entry.MimeType, entry.RelativePath,
		entry.DataPath, entry.StorageBackendName, entry.ObjectKey,
		entry.Status, entry.SizeBytes, entry.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("update entry", err)
	}
	if tag.RowsAffected() == 0 {
		return mediasaver.ErrEntryNotFound
	}
	return nil
}

func (r *Repository) DeleteEntry(ctx context.Context, id uuid.UUID) error {
	// Soft delete
	query := `
		UPDATE media_entry SET status = $2, deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	tag, err := r.db.Exec(ctx, query, id, string(mediasaver.EntryStatusDeleted))
	if err != nil {
		return r.handlePostgresError("delete entry", err)
	}
	if tag.RowsAffected() == 0 {
		return mediasaver.ErrEntryNotFound
	}
	return nil
}

func (r *Repository) ListEntries(ctx context.Context, req mediasaver.ListEntriesRequest) ([]*mediasaver.MediaEntry, error) {
	query, args := buildListQuery(req)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("list entries", err)
	}
	defer rows.Close()

	var entries []*mediasaver.MediaEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan entry", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list entries", err)
	}
	return entries, nil
}

func buildListQuery(req mediasaver.ListEntriesRequest) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	if req.Status != "" {
		args = append(args, req.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	} else {
		where = append(where, "deleted_at IS NULL")
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + entryColumns + ` FROM media_entry WHERE `)
	b.WriteString(strings.Join(where, " AND "))
	b.WriteString(" ORDER BY created_at DESC, id")

	if req.Limit > 0 {
		args = append(args, req.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if req.Offset > 0 {
		args = append(args, req.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}
	return b.String(), args
}
