package services_test

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"chatsino/internal/models"
	"chatsino/internal/services"
	"chatsino/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const testTicketSecret = "0123456789abcdef0123456789abcdef"

func testLogger() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return log.NewEntry(logger)
}

func setupTestRedis(t *testing.T) (*services.RedisService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return services.NewRedisServiceWithClient(client), mr
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "chatsino.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createClient(t *testing.T, s *store.Store, username string, chips int64) models.ClientIdentity {
	t.Helper()
	c, err := s.CreateClient(context.Background(), username, models.PermissionUser, chips)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return c
}

func balance(t *testing.T, s *store.Store, clientID int64) int64 {
	t.Helper()
	b, err := s.Balance(context.Background(), clientID)
	if err != nil {
		t.Fatalf("Failed to read balance: %v", err)
	}
	return b
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fixedSource returns the same value forever, which makes every shuffle of
// a fresh shoe come out the same way.
type fixedSource uint64

func (s fixedSource) Uint64() uint64 { return uint64(s) }

func withSource(v uint64) func() *rand.Rand {
	return func() *rand.Rand { return rand.New(fixedSource(v)) }
}

// Deals from a six deck shoe under fixedSource.
const (
	// Shoe stays in deck order: player 2C 2H, dealer 2D, then 2S, 3C...
	shoeInOrder uint64 = math.MaxUint64
	// Player AD KH, dealer 7D.
	shoeNatural uint64 = 0x0a70000000000001
	// Player TD 5S, dealer AH, and the dealer's next card is TS.
	shoeDealerAce uint64 = 0x0f30000000000001
)

var errSettle = errors.New("settle failed")

// flakyStore fails settlement while fail is set.
type flakyStore struct {
	*store.Store
	fail bool
}

func (f *flakyStore) SettleBlackjack(ctx context.Context, row *store.BlackjackRow, payout int64) error {
	if f.fail {
		return errSettle
	}
	return f.Store.SettleBlackjack(ctx, row, payout)
}

func (f *flakyStore) SettleRoulette(ctx context.Context, row *store.RouletteRow, winners map[int64]int64) error {
	if f.fail {
		return errSettle
	}
	return f.Store.SettleRoulette(ctx, row, winners)
}

func ledgerAmounts(t *testing.T, s *store.Store, clientID int64) map[models.TransactionType][]int64 {
	t.Helper()
	txs, err := s.Transactions(context.Background(), clientID, 100)
	if err != nil {
		t.Fatalf("Failed to list transactions: %v", err)
	}
	out := make(map[models.TransactionType][]int64)
	for i := len(txs) - 1; i >= 0; i-- {
		out[txs[i].Type] = append(out[txs[i].Type], txs[i].Amount)
	}
	return out
}
