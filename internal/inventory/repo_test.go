package inventory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/khatabill/khatabill-backend/pkg/db"
	"github.com/khatabill/khatabill-backend/pkg/db/models"
	"github.com/khatabill/khatabill-backend/pkg/db/testdb"
)

func seedItem(t *testing.T, client *db.Client, shop uuid.UUID, name string, stock, threshold int) *models.CatalogItem {
	t.Helper()
	item := &models.CatalogItem{
		ShopOwnerID:       shop,
		Name:              name,
		Price:             decimal.NewFromInt(10),
		GSTRate:           decimal.NewFromInt(12),
		StockQty:          stock,
		LowStockThreshold: threshold,
	}
	require.NoError(t, NewRepository(client.DB()).Create(context.Background(), item))
	return item
}

func TestDebitStock(t *testing.T) {
	client := testdb.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()
	shop := uuid.New()
	pen := seedItem(t, client, shop, "Pen", 5, 1)

	ok, err := repo.DebitStock(ctx, shop, pen.ID, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.DebitStock(ctx, shop, pen.ID, 3)
	require.NoError(t, err)
	assert.False(t, ok, "insufficient stock must not debit")

	ok, err = repo.DebitStock(ctx, uuid.New(), pen.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok, "another shop must not debit")

	ok, err = repo.DebitStock(ctx, shop, uuid.New(), 1)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.DebitStock(ctx, shop, pen.ID, 0)
	assert.Error(t, err)

	got, err := repo.FindByID(ctx, shop, pen.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.StockQty)
}

func TestDebitStockConcurrentNeverOversells(t *testing.T) {
	client := testdb.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()
	shop := uuid.New()
	const initial = 10
	item := seedItem(t, client, shop, "Notebook", initial, 0)

	var (
		wg      sync.WaitGroup
		debited atomic.Int64
	)
	for i := 0; i < 24; i++ {
		qty := i%3 + 1
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := client.WithTx(ctx, func(tx *gorm.DB) error {
				ok, err := repo.WithTx(tx).DebitStock(ctx, shop, item.ID, qty)
				if err != nil {
					return err
				}
				if ok {
					debited.Add(int64(qty))
				}
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := repo.FindByID(ctx, shop, item.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got.StockQty, 0)
	assert.LessOrEqual(t, debited.Load(), int64(initial))
	assert.Equal(t, int64(initial)-debited.Load(), int64(got.StockQty))
}

func TestAddAndSetStock(t *testing.T) {
	client := testdb.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()
	shop := uuid.New()
	item := seedItem(t, client, shop, "Ink", 1, 2)

	ok, err := repo.AddStock(ctx, shop, item.ID, 4)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.SetStock(ctx, uuid.New(), item.ID, 9)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.SetStock(ctx, shop, item.ID, -1)
	assert.Error(t, err)

	got, err := repo.FindByID(ctx, shop, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.StockQty)

	ok, err = repo.SetStock(ctx, shop, item.ID, 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestListLowStockIsShopScoped(t *testing.T) {
	client := testdb.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()
	shop := uuid.New()
	seedItem(t, client, shop, "Eraser", 1, 5)
	seedItem(t, client, shop, "Ruler", 5, 5)
	seedItem(t, client, shop, "Stapler", 9, 5)
	seedItem(t, client, uuid.New(), "Glue", 0, 5)

	items, err := repo.ListLowStock(ctx, shop)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Eraser", items[0].Name)
	assert.Equal(t, "Ruler", items[1].Name)

	count, err := repo.CountLowStock(ctx, shop)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
