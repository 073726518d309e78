package sequence

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// fakeCounterStore simulates the counter upsert: one row per pool with a
// locked read-modify-write, which is what the SQL statement does under row
// locking. pgx.Row is just a Scan, so the fake satisfies Querier directly.
type fakeCounterStore struct {
	mu       sync.Mutex
	counters map[string]int64
}

func newFakeCounterStore() *fakeCounterStore {
	return &fakeCounterStore{counters: make(map[string]int64)}
}

func (s *fakeCounterStore) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := args[0].(string) + "|" + args[1].(string)
	s.counters[key]++
	return fakeRow{value: s.counters[key]}
}

type fakeRow struct {
	value int64
}

func (r fakeRow) Scan(dest ...any) error {
	*(dest[0].(*int64)) = r.value
	return nil
}

func TestBaseCodeComposition(t *testing.T) {
	require.Equal(t, "0120251109", BaseCode("01", "20251109"))
}

func TestAllocationsStrictlyIncreasing(t *testing.T) {
	store := newFakeCounterStore()
	ctx := context.Background()

	var prev int64
	for i := 0; i < 10; i++ {
		v, err := Next(ctx, store, DomainVoucher, "0120251109")
		require.NoError(t, err)
		require.Greater(t, v, prev)
		prev = v
	}
	require.Equal(t, int64(10), prev)
}

func TestPoolsAreIndependent(t *testing.T) {
	store := newFakeCounterStore()
	ctx := context.Background()

	a, err := Next(ctx, store, DomainVoucher, "0120251109")
	require.NoError(t, err)
	b, err := Next(ctx, store, DomainVoucher, "0220251109")
	require.NoError(t, err)
	c, err := Next(ctx, store, "receipt", "0120251109")
	require.NoError(t, err)

	require.Equal(t, int64(1), a)
	require.Equal(t, int64(1), b)
	require.Equal(t, int64(1), c)
}

func TestConcurrentAllocationsNeverCollide(t *testing.T) {
	store := newFakeCounterStore()
	ctx := context.Background()

	const callers = 64
	values := make(chan int64, callers)
	var g errgroup.Group
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			v, err := Next(ctx, store, DomainVoucher, "0120251109")
			if err != nil {
				return err
			}
			values <- v
			return nil
		})
	}
	require.NoError(t, g.Wait())
	close(values)

	seen := make([]int64, 0, callers)
	for v := range values {
		seen = append(seen, v)
	}
	require.Len(t, seen, callers)
	sort.Slice(seen, func(i, j int) bool { return seen[i] < seen[j] })
	for i, v := range seen {
		require.Equal(t, int64(i+1), v, "values must be dense and unique")
	}
}

func TestEmptyPoolKeyRejected(t *testing.T) {
	store := newFakeCounterStore()
	_, err := Next(context.Background(), store, "", "0120251109")
	require.Error(t, err)

	_, err = Next(context.Background(), store, DomainVoucher, "")
	require.Error(t, err)
}
