// Package cacheapi exposes the table-generation pipeline as an HTTP
// workbench: a grammar file posted to the service is compiled once and the
// resulting lexer/parser tables are cached under a content hash, so repeat
// submissions of the same grammar text return instantly instead of
// re-running the regex/DFA and LL/LH pipelines (spec.md §4.L orchestrator,
// exposed as a network-reachable cache rather than a one-shot CLI run).
package cacheapi

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dekarrin/gentab/internal/emit"
	"github.com/dekarrin/rezi"
	"github.com/google/uuid"
	"modernc.org/sqlite"
)

var (
	ErrNotFound            = errors.New("the requested job could not be found")
	ErrConstraintViolation = errors.New("a uniqueness constraint was violated")
)

// Job is one compiled grammar's cached result.
type Job struct {
	ID          uuid.UUID
	ContentHash string
	Owner       string
	Created     time.Time
	Lexer       emit.LexerTables
	Parser      emit.ParserTables
}

// Store persists compiled Jobs and the API keys allowed to submit them.
type Store interface {
	// FindByHash looks a job up by its grammar source's content hash,
	// letting the caller skip recompiling source text it has already seen.
	FindByHash(ctx context.Context, hash string) (Job, error)
	GetByID(ctx context.Context, id uuid.UUID) (Job, error)
	Create(ctx context.Context, j Job) (Job, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error

	CreateAPIKey(ctx context.Context, owner string, keyHash string) (APIKey, error)
	GetAPIKeyByOwner(ctx context.Context, owner string) (APIKey, error)

	Close() error
}

// APIKey is a bcrypt-hashed credential a caller presents to /login to
// receive a bearer JWT (see auth.go).
type APIKey struct {
	Owner   string
	Hash    string
	Created time.Time
}

// ContentHash returns the cache key for a grammar source: submitting the
// exact same text twice is a cache hit rather than a second compile.
func ContentHash(grammarSrc string) string {
	sum := sha256.Sum256([]byte(grammarSrc))
	return hex.EncodeToString(sum[:])
}

type sqliteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) a sqlite-backed Store at file.
func NewSQLiteStore(file string) (Store, error) {
	db, err := sql.Open("sqlite", file)
	if err != nil {
		return nil, wrapDBError(err)
	}

	st := &sqliteStore{db: db}
	if err := st.init(); err != nil {
		db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS jobs (
		id TEXT NOT NULL PRIMARY KEY,
		content_hash TEXT NOT NULL UNIQUE,
		owner TEXT NOT NULL,
		created INTEGER NOT NULL,
		lexer_tables BLOB NOT NULL,
		parser_tables BLOB NOT NULL
	);`)
	if err != nil {
		return wrapDBError(err)
	}

	_, err = s.db.Exec(`CREATE TABLE IF NOT EXISTS api_keys (
		owner TEXT NOT NULL PRIMARY KEY,
		key_hash TEXT NOT NULL,
		created INTEGER NOT NULL
	);`)
	return wrapDBError(err)
}

func (s *sqliteStore) FindByHash(ctx context.Context, hash string) (Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, content_hash, owner, created, lexer_tables, parser_tables FROM jobs WHERE content_hash = ?`, hash)
	return scanJob(row)
}

func (s *sqliteStore) GetByID(ctx context.Context, id uuid.UUID) (Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, content_hash, owner, created, lexer_tables, parser_tables FROM jobs WHERE id = ?`, id.String())
	return scanJob(row)
}

func (s *sqliteStore) Create(ctx context.Context, j Job) (Job, error) {
	if j.ID == uuid.Nil {
		newID, err := uuid.NewRandom()
		if err != nil {
			return Job{}, fmt.Errorf("could not generate job ID: %w", err)
		}
		j.ID = newID
	}
	if j.Created.IsZero() {
		j.Created = time.Now()
	}

	lexBytes := rezi.EncBinary(&j.Lexer)
	parserBytes := rezi.EncBinary(&j.Parser)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, content_hash, owner, created, lexer_tables, parser_tables) VALUES (?, ?, ?, ?, ?, ?)`,
		j.ID.String(), j.ContentHash, j.Owner, j.Created.Unix(), lexBytes, parserBytes,
	)
	if err != nil {
		return Job{}, wrapDBError(err)
	}
	return j, nil
}

func (s *sqliteStore) DeleteByID(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id.String())
	if err != nil {
		return wrapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBError(err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) CreateAPIKey(ctx context.Context, owner string, keyHash string) (APIKey, error) {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_keys (owner, key_hash, created) VALUES (?, ?, ?)
		 ON CONFLICT(owner) DO UPDATE SET key_hash = excluded.key_hash, created = excluded.created`,
		owner, keyHash, now.Unix(),
	)
	if err != nil {
		return APIKey{}, wrapDBError(err)
	}
	return APIKey{Owner: owner, Hash: keyHash, Created: now}, nil
}

func (s *sqliteStore) GetAPIKeyByOwner(ctx context.Context, owner string) (APIKey, error) {
	row := s.db.QueryRowContext(ctx, `SELECT owner, key_hash, created FROM api_keys WHERE owner = ?`, owner)

	var k APIKey
	var created int64
	if err := row.Scan(&k.Owner, &k.Hash, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return APIKey{}, ErrNotFound
		}
		return APIKey{}, wrapDBError(err)
	}
	k.Created = time.Unix(created, 0)
	return k, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (Job, error) {
	var j Job
	var idStr string
	var created int64
	var lexBytes, parserBytes []byte

	err := row.Scan(&idStr, &j.ContentHash, &j.Owner, &created, &lexBytes, &parserBytes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, ErrNotFound
		}
		return Job{}, wrapDBError(err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return Job{}, fmt.Errorf("stored job ID %q is not a valid UUID: %w", idStr, err)
	}
	j.ID = id
	j.Created = time.Unix(created, 0)

	if _, err := rezi.DecBinary(lexBytes, &j.Lexer); err != nil {
		return Job{}, fmt.Errorf("decode cached lexer tables: %w", err)
	}
	if _, err := rezi.DecBinary(parserBytes, &j.Parser); err != nil {
		return Job{}, fmt.Errorf("decode cached parser tables: %w", err)
	}

	return j, nil
}

func wrapDBError(err error) error {
	if err == nil {
		return nil
	}
	sqliteErr := &sqlite.Error{}
	if errors.As(err, &sqliteErr) {
		if sqliteErr.Code() == 19 {
			return ErrConstraintViolation
		}
		return fmt.Errorf("%s", sqlite.ErrorCodeString[sqliteErr.Code()])
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
