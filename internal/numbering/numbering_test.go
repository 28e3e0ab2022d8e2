package numbering

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/khatabill/khatabill-backend/pkg/db/testdb"
)

func TestFormatNumber(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	cases := []struct {
		at   time.Time
		seq  int64
		want string
	}{
		{at: time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC), seq: 1, want: "20260307-0001"},
		{at: time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC), seq: 42, want: "20260307-0042"},
		{at: time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC), seq: 12345, want: "20260307-12345"},
		// 02:00 IST on the 8th is still the 7th in UTC.
		{at: time.Date(2026, 3, 8, 2, 0, 0, 0, ist), seq: 3, want: "20260307-0003"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatNumber(tc.at, tc.seq))
	}
}

func TestNextIncrementsPerShop(t *testing.T) {
	client := testdb.Open(t)
	authority := NewAuthority()
	ctx := context.Background()
	shopA, shopB := uuid.New(), uuid.New()
	issuedAt := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

	next := func(shop uuid.UUID) Assignment {
		var got Assignment
		require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			got, err = authority.Next(ctx, tx, shop, issuedAt)
			return err
		}))
		return got
	}

	assert.Equal(t, Assignment{Sequence: 1, Number: "20261018-0001"}, next(shopA))
	assert.Equal(t, Assignment{Sequence: 2, Number: "20261018-0002"}, next(shopA))
	assert.Equal(t, Assignment{Sequence: 1, Number: "20261018-0001"}, next(shopB))
	assert.Equal(t, Assignment{Sequence: 3, Number: "20261018-0003"}, next(shopA))
}

func TestNextRollbackReleasesNumber(t *testing.T) {
	client := testdb.Open(t)
	authority := NewAuthority()
	ctx := context.Background()
	shop := uuid.New()
	now := time.Now()

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := authority.Next(ctx, tx, shop, now); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	var got Assignment
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		got, err = authority.Next(ctx, tx, shop, now)
		return err
	}))
	assert.Equal(t, int64(1), got.Sequence)
}

func TestNextConcurrentCallersGetDistinctNumbers(t *testing.T) {
	client := testdb.Open(t)
	authority := NewAuthority()
	ctx := context.Background()
	shop := uuid.New()
	now := time.Now()

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = map[string]int{}
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := client.WithTx(ctx, func(tx *gorm.DB) error {
				got, err := authority.Next(ctx, tx, shop, now)
				if err != nil {
					return err
				}
				mu.Lock()
				numbers[got.Number]++
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, numbers, workers)
	for number, count := range numbers {
		assert.Equal(t, 1, count, "number %s issued twice", number)
	}
}

func TestNextRequiresTransactionAndShop(t *testing.T) {
	authority := NewAuthority()
	_, err := authority.Next(context.Background(), nil, uuid.New(), time.Now())
	assert.Error(t, err)

	client := testdb.Open(t)
	_, err = authority.Next(context.Background(), client.DB(), uuid.Nil, time.Now())
	assert.Error(t, err)
}
