// Package sqlite provides a SQLite-backed implementation of the
// storage.Storage interface using Go's standard database/sql package.
//
// Students are stored as JSON documents, one row per document:
//
//	seq      — insertion order, used to list documents
//	id       — the document id (a UUID string) handed out to clients
//	document — the Student as JSON, nested scholarship included
//
// Selective updates are applied to the stored JSON as RFC 6902 "add"
// operations, one per path: "scholarship.merit" becomes
// {"op": "add", "path": "/scholarship/merit", ...}.
//
// The blank import below registers the sqlite3 driver with database/sql.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/google/uuid"

	"github.com/aanand-mishra/scholarship-api/internal/schema"
	"github.com/aanand-mishra/scholarship-api/internal/storage"
	"github.com/aanand-mishra/scholarship-api/internal/types"
	"github.com/aanand-mishra/scholarship-api/internal/update"
	"github.com/aanand-mishra/scholarship-api/internal/utils/apperr"

	// Blank import: side-effect only (registers the "sqlite3" driver).
	_ "github.com/mattn/go-sqlite3"
)

// SQLite is the concrete implementation of storage.Storage.
// It holds a *sql.DB which is a connection pool managed by database/sql.
type SQLite struct {
	Db *sql.DB
}

var _ storage.Storage = (*SQLite)(nil)

// New opens the SQLite database at path, creates the students table if it
// does not already exist, and returns a ready-to-use *SQLite.
//
// The pool is limited to one connection: SQLite allows a single writer
// anyway, and the read-modify-write of a selective update runs in a
// transaction on that connection, so concurrent writes to the same
// document are applied one after the other (last write wins).
func New(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); path != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite.New: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS students (
			seq      INTEGER PRIMARY KEY AUTOINCREMENT,
			id       TEXT    NOT NULL UNIQUE,
			document TEXT    NOT NULL
		)
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite.New: create table: %w", err)
	}

	return &SQLite{Db: db}, nil
}

// Close closes the database.
func (s *SQLite) Close(_ context.Context) error {
	return s.Db.Close()
}

// parseID checks that id is a UUID before any query runs.
func parseID(id string) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", apperr.InvalidID(id, err)
	}
	return u.String(), nil
}

func decode(id string, document string) (types.Student, error) {
	var student types.Student
	if err := json.Unmarshal([]byte(document), &student); err != nil {
		return types.Student{}, fmt.Errorf("decode document %s: %w", id, err)
	}
	student.ID = id
	return student, nil
}

func encode(student types.Student) (string, error) {
	student.ID = "" // the id lives in its own column
	b, err := json.Marshal(student)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(b), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// FindAll returns every document in insertion order.
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) FindAll(ctx context.Context) ([]types.Student, error) {
	stmt, err := s.Db.PrepareContext(ctx,
		"SELECT id, document FROM students ORDER BY seq",
	)
	if err != nil {
		return nil, fmt.Errorf("FindAll: prepare: %w", err)
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("FindAll: query: %w", err)
	}
	defer rows.Close()

	students := make([]types.Student, 0)

	for rows.Next() {
		var id, document string
		if err := rows.Scan(&id, &document); err != nil {
			return nil, fmt.Errorf("FindAll: scan row: %w", err)
		}

		student, err := decode(id, document)
		if err != nil {
			return nil, fmt.Errorf("FindAll: %w", err)
		}
		students = append(students, student)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("FindAll: rows iteration: %w", err)
	}

	return students, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// FindByID fetches exactly one document by id. A valid id that matches
// nothing is not an error: it returns nil.
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) FindByID(ctx context.Context, id string) (*types.Student, error) {
	key, err := parseID(id)
	if err != nil {
		return nil, fmt.Errorf("FindByID: %w", err)
	}

	var document string
	err = s.Db.QueryRowContext(ctx,
		"SELECT document FROM students WHERE id = ? LIMIT 1", key,
	).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindByID: scan: %w", err)
	}

	student, err := decode(key, document)
	if err != nil {
		return nil, fmt.Errorf("FindByID: %w", err)
	}
	return &student, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Insert validates the document, assigns it a new id and stores it.
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) Insert(ctx context.Context, student types.Student) (types.Student, error) {
	if err := schema.Validate(student); err != nil {
		return types.Student{}, fmt.Errorf("Insert: %w", err)
	}

	document, err := encode(student)
	if err != nil {
		return types.Student{}, fmt.Errorf("Insert: %w", err)
	}

	stmt, err := s.Db.PrepareContext(ctx,
		"INSERT INTO students (id, document) VALUES (?, ?)",
	)
	if err != nil {
		return types.Student{}, fmt.Errorf("Insert: prepare: %w", err)
	}
	defer stmt.Close()

	student.ID = uuid.NewString()
	if _, err := stmt.ExecContext(ctx, student.ID, document); err != nil {
		return types.Student{}, fmt.Errorf("Insert: exec: %w", err)
	}

	return student, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// ReplaceByID overwrites the stored document with student. Nothing of the
// previous document survives except its id.
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) ReplaceByID(ctx context.Context, id string, student types.Student, opts storage.UpdateOptions) (types.Student, error) {
	key, err := parseID(id)
	if err != nil {
		return types.Student{}, fmt.Errorf("ReplaceByID: %w", err)
	}

	if opts.Validate {
		if err := schema.Validate(student); err != nil {
			return types.Student{}, fmt.Errorf("ReplaceByID: %w", err)
		}
	}

	document, err := encode(student)
	if err != nil {
		return types.Student{}, fmt.Errorf("ReplaceByID: %w", err)
	}

	var before types.Student
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		prev, err := current(ctx, tx, key)
		if err != nil {
			return err
		}
		before, err = decode(key, prev)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE students SET document = ? WHERE id = ?", document, key)
		return err
	})
	if err != nil {
		return types.Student{}, fmt.Errorf("ReplaceByID: %w", err)
	}

	if !opts.ReturnUpdated {
		return before, nil
	}
	student.ID = key
	return student, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// UpdateByID applies a selective update. Only the paths present in spec
// are touched; every other field keeps its stored value.
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) UpdateByID(ctx context.Context, id string, spec update.Spec, opts storage.UpdateOptions) (types.Student, error) {
	key, err := parseID(id)
	if err != nil {
		return types.Student{}, fmt.Errorf("UpdateByID: %w", err)
	}

	spec, err = schema.Sanitize(spec, opts.Validate)
	if err != nil {
		return types.Student{}, fmt.Errorf("UpdateByID: %w", err)
	}

	patch, err := Patch(spec)
	if err != nil {
		return types.Student{}, fmt.Errorf("UpdateByID: %w", err)
	}

	var before, after types.Student
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		prev, err := current(ctx, tx, key)
		if err != nil {
			return err
		}
		if before, err = decode(key, prev); err != nil {
			return err
		}
		if len(patch) == 0 {
			after = before
			return nil
		}

		next, err := patch.Apply([]byte(prev))
		if err != nil {
			return apperr.Validation(fmt.Errorf("apply update: %w", err))
		}
		if after, err = decode(key, string(next)); err != nil {
			return err
		}

		document, err := encode(after)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE students SET document = ? WHERE id = ?", document, key)
		return err
	})
	if err != nil {
		return types.Student{}, fmt.Errorf("UpdateByID: %w", err)
	}

	if !opts.ReturnUpdated {
		return before, nil
	}
	return after, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// DeleteByID removes a document by id. A valid id that matches nothing
// reports DeletedCount 0.
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) DeleteByID(ctx context.Context, id string) (types.DeleteResult, error) {
	key, err := parseID(id)
	if err != nil {
		return types.DeleteResult{}, fmt.Errorf("DeleteByID: %w", err)
	}

	stmt, err := s.Db.PrepareContext(ctx, "DELETE FROM students WHERE id = ?")
	if err != nil {
		return types.DeleteResult{}, fmt.Errorf("DeleteByID: prepare: %w", err)
	}
	defer stmt.Close()

	result, err := stmt.ExecContext(ctx, key)
	if err != nil {
		return types.DeleteResult{}, fmt.Errorf("DeleteByID: exec: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return types.DeleteResult{}, fmt.Errorf("DeleteByID: rows affected: %w", err)
	}

	return types.DeleteResult{Acknowledged: true, DeletedCount: n}, nil
}

// inTx runs fn in a transaction, committing on success.
func (s *SQLite) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.Db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// current reads the stored document inside tx.
func current(ctx context.Context, tx *sql.Tx, key string) (string, error) {
	var document string
	err := tx.QueryRowContext(ctx,
		"SELECT document FROM students WHERE id = ?", key,
	).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("select: %w", err)
	}
	return document, nil
}

// Patch translates an update specification into an RFC 6902 patch with one
// "add" operation per path. "add" replaces a member that already exists.
func Patch(spec update.Spec) (jsonpatch.Patch, error) {
	type operation struct {
		Op    string `json:"op"`
		Path  string `json:"path"`
		Value any    `json:"value"`
	}

	ops := make([]operation, 0, len(spec))
	for _, p := range spec.Paths() {
		ops = append(ops, operation{Op: "add", Path: pointer(p), Value: spec[p]})
	}

	raw, err := json.Marshal(ops)
	if err != nil {
		return nil, fmt.Errorf("encode patch: %w", err)
	}
	return jsonpatch.DecodePatch(raw)
}

var pointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

// pointer converts a dotted update path into a JSON pointer.
func pointer(path string) string {
	var b strings.Builder
	for _, seg := range update.Split(path) {
		b.WriteByte('/')
		b.WriteString(pointerEscaper.Replace(seg))
	}
	return b.String()
}
