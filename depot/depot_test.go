package depot

import (
	"context"
	"io"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"github.com/alovak/atm-playground/atm/models"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  NewRedisStore(client, "test:depot"),
	}
}

func TestDepot(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard))

	for name, store := range stores(t) {
		store := store

		t.Run(name, func(t *testing.T) {
			d := New(logger, store)

			require.NoError(t, d.Load(ctx, models.PL10, 2))
			require.NoError(t, d.Load(ctx, models.PL50, 1))
			require.NoError(t, d.Load(ctx, models.PL100, Unbounded))
			require.Error(t, d.Load(ctx, models.PL20, -5))

			t.Run("release takes notes", func(t *testing.T) {
				err := d.ReleaseBanknotes(ctx, []models.Banknote{models.PL10, models.PL100, models.PL100})
				require.NoError(t, err)

				stock, err := d.Stock(ctx)
				require.NoError(t, err)
				require.Equal(t, []Slot{
					{Banknote: models.PL10, Count: 1},
					{Banknote: models.PL50, Count: 1},
					{Banknote: models.PL100, Count: Unbounded},
				}, stock)
			})

			t.Run("shortage releases nothing", func(t *testing.T) {
				err := d.ReleaseBanknotes(ctx, []models.Banknote{models.PL10, models.PL50, models.PL50})
				require.ErrorIs(t, err, models.ErrOutOfBanknotes)
				require.ErrorIs(t, err, models.ErrDepot)

				stock, err := d.Stock(ctx)
				require.NoError(t, err)
				require.Equal(t, int64(1), stock[0].Count)
				require.Equal(t, int64(1), stock[1].Count)
			})

			t.Run("unknown denomination is out of stock", func(t *testing.T) {
				err := d.ReleaseBanknotes(ctx, []models.Banknote{models.PL200})
				require.ErrorIs(t, err, models.ErrOutOfBanknotes)
			})

			t.Run("loading more notes into an unbounded slot keeps it unbounded", func(t *testing.T) {
				require.NoError(t, d.Load(ctx, models.PL100, 10))

				stock, err := d.Stock(ctx)
				require.NoError(t, err)
				require.Equal(t, Unbounded, stock[2].Count)
			})

			t.Run("nothing to release", func(t *testing.T) {
				require.NoError(t, d.ReleaseBanknotes(ctx, nil))
			})
		})
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })

	d := New(slog.New(slog.NewTextHandler(io.Discard)), NewRedisStore(client, ""))
	mr.Close()

	err := d.ReleaseBanknotes(context.Background(), []models.Banknote{models.PL10})
	require.ErrorIs(t, err, models.ErrDepot)
	require.NotErrorIs(t, err, models.ErrOutOfBanknotes)
}
