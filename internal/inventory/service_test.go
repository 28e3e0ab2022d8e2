package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khatabill/khatabill-backend/pkg/db/testdb"
	pkgerrors "github.com/khatabill/khatabill-backend/pkg/errors"
)

func newTestService(t *testing.T) (Service, Repository) {
	t.Helper()
	client := testdb.Open(t)
	repo := NewRepository(client.DB())
	svc, err := NewService(repo, client)
	require.NoError(t, err)
	return svc, repo
}

func TestNewServiceRequiresDeps(t *testing.T) {
	_, err := NewService(nil, nil)
	assert.Error(t, err)
}

func TestCreateItemValidation(t *testing.T) {
	svc, _ := newTestService(t)
	shop := uuid.New()

	cases := map[string]CreateItemInput{
		"missing name":   {Name: "  ", Price: decimal.NewFromInt(1)},
		"negative price": {Name: "Pen", Price: decimal.NewFromInt(-1)},
		"negative rate":  {Name: "Pen", GSTRate: decimal.NewFromInt(-5)},
		"negative stock": {Name: "Pen", StockQty: -1},
		"negative limit": {Name: "Pen", LowStockThreshold: -1},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateItem(context.Background(), shop, input)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
}

func TestRestockAndSetStock(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	shop := uuid.New()

	item, err := svc.CreateItem(ctx, shop, CreateItemInput{
		Name:     " Pen ",
		HSNCode:  "9608",
		Price:    decimal.NewFromInt(10),
		GSTRate:  decimal.NewFromInt(12),
		StockQty: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, "Pen", item.Name)

	item, err = svc.Restock(ctx, shop, item.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, 12, item.StockQty)

	item, err = svc.SetStock(ctx, shop, item.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, item.StockQty)

	_, err = svc.Restock(ctx, shop, item.ID, 0)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Restock(ctx, uuid.New(), item.ID, 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "foreign shop sees nothing, got %v", err)

	_, err = svc.GetItem(ctx, shop, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListLowStockService(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	shop := uuid.New()

	_, err := svc.CreateItem(ctx, shop, CreateItemInput{Name: "Pen", StockQty: 1, LowStockThreshold: 3})
	require.NoError(t, err)
	_, err = svc.CreateItem(ctx, shop, CreateItemInput{Name: "Book", StockQty: 10, LowStockThreshold: 3})
	require.NoError(t, err)

	items, err := svc.ListLowStock(ctx, shop)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Pen", items[0].Name)
}

func TestExplainDebitFailure(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	shop := uuid.New()

	item, err := svc.CreateItem(ctx, shop, CreateItemInput{Name: "Pen", StockQty: 2})
	require.NoError(t, err)

	err = ExplainDebitFailure(ctx, repo, shop, item.ID, 3)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficient, typed.Code())
	assert.Equal(t, "insufficient stock for Pen: available 2, requested 3", typed.Message())
	assert.Equal(t, Shortage{ItemID: item.ID, ItemName: "Pen", Available: 2, Requested: 3}, typed.Details())

	err = ExplainDebitFailure(ctx, repo, shop, uuid.New(), 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	err = ExplainDebitFailure(ctx, repo, uuid.New(), item.ID, 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "item of another shop is not found")
}
