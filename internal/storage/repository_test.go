package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestCreateAndListTransactions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	older, err := repo.CreateTransaction(ctx, core.Transaction{
		UserID: "u1", Amount: decimal.RequireFromString("12.50"), Type: core.Expense,
		Category: "Food", Date: "2024-01-01", ReceiptImages: []string{"https://img/1.png"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, older.ID)
	assert.NotEmpty(t, older.CreatedAt)

	newer, err := repo.CreateTransaction(ctx, core.Transaction{
		UserID: "u1", Amount: decimal.NewFromInt(1000), Type: core.Income, Category: "Salary", Date: "2024-02-01",
	})
	require.NoError(t, err)

	_, err = repo.CreateTransaction(ctx, core.Transaction{
		UserID: "u2", Amount: decimal.NewFromInt(1), Type: core.Income, Category: "Gifts", Date: "2024-03-01",
	})
	require.NoError(t, err)

	got, err := repo.ListTransactions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, newer.ID, got[0].ID)
	assert.Equal(t, older.ID, got[1].ID)
	assert.True(t, got[1].Amount.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, []string{"https://img/1.png"}, got[1].ReceiptImages)
	assert.Equal(t, core.Expense, got[1].Type)
}

func TestCreateTransactionRejectsInvalid(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.CreateTransaction(context.Background(), core.Transaction{Amount: decimal.NewFromInt(1), Type: core.Income})
	assert.ErrorIs(t, err, core.ErrMissingUser)
}

func TestDeleteTransactionIsOwnerScoped(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tx, err := repo.CreateTransaction(ctx, core.Transaction{
		UserID: "u1", Amount: decimal.NewFromInt(5), Type: core.Expense, Category: "Food", Date: "2024-01-01",
	})
	require.NoError(t, err)

	err = repo.DeleteTransaction(ctx, tx.ID, "someone-else")
	assert.True(t, errors.Is(err, core.ErrNotFound))

	require.NoError(t, repo.DeleteTransaction(ctx, tx.ID, "u1"))
	left, err := repo.ListTransactions(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestSeededCategories(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	cats, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, cats)
	for _, c := range cats {
		assert.True(t, c.Type.Valid(), "category %s has type %s", c.Name, c.Type)
	}

	_, err = repo.CreateCategory(ctx, core.Category{Name: "Food", Type: core.Expense})
	assert.Error(t, err, "duplicate name/type must be rejected")

	created, err := repo.CreateCategory(ctx, core.Category{Name: "Pets", Type: core.Expense})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
}

func TestKVStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.db")
	kv, err := NewKVStore(path)
	require.NoError(t, err)

	_, ok, err := kv.GetItem("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.SetItem("k", "v1"))
	require.NoError(t, kv.SetItem("k", "v2"))
	v, ok, err := kv.GetItem("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", v)
	require.NoError(t, kv.Close())

	// Values survive reopening the file.
	kv, err = NewKVStore(path)
	require.NoError(t, err)
	defer kv.Close()
	v, ok, err = kv.GetItem("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", v)
}
