package customers

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khatabill/khatabill-backend/pkg/db/testdb"
	pkgerrors "github.com/khatabill/khatabill-backend/pkg/errors"
)

func TestCreateAndGet(t *testing.T) {
	client := testdb.Open(t)
	svc, err := NewService(NewRepository(client.DB()), client)
	require.NoError(t, err)
	ctx := context.Background()
	shop := uuid.New()

	created, err := svc.Create(ctx, shop, CreateInput{Name: " Ravi ", Phone: " 9876543210 "})
	require.NoError(t, err)
	assert.Equal(t, "Ravi", created.Name)
	assert.Equal(t, "9876543210", created.Phone)
	assert.NotEqual(t, uuid.Nil, created.ID)

	got, err := svc.Get(ctx, shop, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = svc.Get(ctx, uuid.New(), created.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "other shops must not see the customer")
}

func TestCreateRequiresName(t *testing.T) {
	client := testdb.Open(t)
	svc, err := NewService(NewRepository(client.DB()), client)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), uuid.New(), CreateInput{Name: "   "})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestMapLookupErr(t *testing.T) {
	boom := errors.New("connection reset")
	err := MapLookupErr(boom, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.ErrorIs(t, err, boom)

	typed := pkgerrors.New(pkgerrors.CodeForbidden, "nope")
	assert.Same(t, typed, MapLookupErr(typed, uuid.New()))
}

func TestNewServiceRequiresDeps(t *testing.T) {
	_, err := NewService(nil, nil)
	assert.Error(t, err)
}
