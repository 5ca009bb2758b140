package cacheapi

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dekarrin/gentab/internal/emit"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	dbFile := filepath.Join(t.TempDir(), "cache.db")
	st, err := NewSQLiteStore(dbFile)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %s", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func Test_Store_CreateAndFindByHash(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	st := newTestStore(t)

	j := Job{
		ContentHash: ContentHash("grammar text"),
		Owner:       "alice",
		Lexer:       emit.LexerTables{Namespace: "ll", Prefix: "LL"},
		Parser:      emit.ParserTables{Namespace: "pp", Prefix: "PP", StateCount: 3},
	}

	created, err := st.Create(ctx, j)
	assert.NoError(err)
	assert.NotEqual(uuid.Nil, created.ID)

	found, err := st.FindByHash(ctx, j.ContentHash)
	assert.NoError(err)
	assert.Equal(created.ID, found.ID)
	assert.Equal("alice", found.Owner)
	assert.Equal(3, found.Parser.StateCount)
	assert.Equal("ll", found.Lexer.Namespace)
}

func Test_Store_FindByHash_NotFound(t *testing.T) {
	assert := assert.New(t)
	st := newTestStore(t)

	_, err := st.FindByHash(context.Background(), "nonexistent")
	assert.ErrorIs(err, ErrNotFound)
}

func Test_Store_GetByID_NotFound(t *testing.T) {
	assert := assert.New(t)
	st := newTestStore(t)

	randID, err := uuid.NewRandom()
	assert.NoError(err)

	_, err = st.GetByID(context.Background(), randID)
	assert.ErrorIs(err, ErrNotFound)
}

func Test_Store_Create_DuplicateHashRejected(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	st := newTestStore(t)

	j := Job{ContentHash: ContentHash("same text"), Owner: "alice"}
	_, err := st.Create(ctx, j)
	assert.NoError(err)

	_, err = st.Create(ctx, Job{ContentHash: ContentHash("same text"), Owner: "bob"})
	assert.ErrorIs(err, ErrConstraintViolation)
}

func Test_Store_DeleteByID(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	st := newTestStore(t)

	created, err := st.Create(ctx, Job{ContentHash: ContentHash("del me"), Owner: "alice"})
	assert.NoError(err)

	assert.NoError(st.DeleteByID(ctx, created.ID))

	_, err = st.GetByID(ctx, created.ID)
	assert.ErrorIs(err, ErrNotFound)
}

func Test_Store_DeleteByID_NotFound(t *testing.T) {
	assert := assert.New(t)
	st := newTestStore(t)

	randID, err := uuid.NewRandom()
	assert.NoError(err)

	err = st.DeleteByID(context.Background(), randID)
	assert.ErrorIs(err, ErrNotFound)
}

func Test_Store_APIKey_CreateAndGet(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	st := newTestStore(t)

	hash, err := hashAPIKey("s3cr3t")
	assert.NoError(err)

	_, err = st.CreateAPIKey(ctx, "alice", hash)
	assert.NoError(err)

	rec, err := st.GetAPIKeyByOwner(ctx, "alice")
	assert.NoError(err)
	assert.Equal("alice", rec.Owner)
	assert.NoError(checkAPIKey(rec.Hash, "s3cr3t"))
}

func Test_Store_APIKey_GetByOwner_NotFound(t *testing.T) {
	assert := assert.New(t)
	st := newTestStore(t)

	_, err := st.GetAPIKeyByOwner(context.Background(), "nobody")
	assert.ErrorIs(err, ErrNotFound)
}

func Test_Store_APIKey_CreateTwice_UpdatesHash(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	st := newTestStore(t)

	h1, _ := hashAPIKey("first")
	h2, _ := hashAPIKey("second")

	_, err := st.CreateAPIKey(ctx, "alice", h1)
	assert.NoError(err)
	_, err = st.CreateAPIKey(ctx, "alice", h2)
	assert.NoError(err)

	rec, err := st.GetAPIKeyByOwner(ctx, "alice")
	assert.NoError(err)
	assert.NoError(checkAPIKey(rec.Hash, "second"))
	assert.Error(checkAPIKey(rec.Hash, "first"))
}
