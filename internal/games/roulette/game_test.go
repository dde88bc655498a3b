package roulette

import (
	"errors"
	"maps"
	"math/rand/v2"
	"slices"
	"strconv"
	"testing"
	"time"

	"chatsino/internal/models"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestGame(seed uint64) (*Game, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	g := New(DefaultDurations, WithClock(clock.now), WithRand(rand.New(rand.NewPCG(seed, seed))))
	return g, clock
}

func TestPhases(t *testing.T) {
	g, clock := newTestGame(1)
	if g.Status() != StatusWaiting {
		t.Fatalf("new game should be waiting, got %s", g.Status())
	}
	if err := g.StartTakingBets(); err != nil {
		t.Fatalf("StartTakingBets failed: %v", err)
	}
	if err := g.StartTakingBets(); !errors.Is(err, models.ErrCannotStartRound) {
		t.Errorf("second start should fail, got %v", err)
	}

	steps := []struct {
		advance time.Duration
		want    Status
	}{
		{0, StatusTakingBets},
		{15*time.Minute - time.Second, StatusTakingBets},
		{time.Second, StatusNoMoreBets},
		{8 * time.Second, StatusSpinning},
		{5 * time.Second, StatusFinished},
	}
	for _, s := range steps {
		clock.advance(s.advance)
		if got := g.Status(); got != s.want {
			t.Errorf("after %s: status %s, want %s", s.advance, got, s.want)
		}
	}

	view := g.View()
	if view.FinishedAt == nil || !view.FinishedAt.Equal(g.StartedAt.Add(15*time.Minute+13*time.Second)) {
		t.Errorf("unexpected finishedAt %v", view.FinishedAt)
	}
}

func TestTakeBet(t *testing.T) {
	g, clock := newTestGame(1)
	bet := Bet{ClientID: 1, Which: "red", Wager: 10}

	if err := g.TakeBet(BetRedBlack, bet); !errors.Is(err, models.ErrNotTakingBets) {
		t.Errorf("bet before start should fail with ErrNotTakingBets, got %v", err)
	}

	g.StartTakingBets()
	if err := g.TakeBet(BetRedBlack, bet); err != nil {
		t.Fatalf("TakeBet failed: %v", err)
	}
	if err := g.TakeBet(BetRedBlack, Bet{ClientID: 1, Which: "green", Wager: 10}); !errors.Is(err, models.ErrInvalidArguments) {
		t.Errorf("bad target should fail with ErrInvalidArguments, got %v", err)
	}
	if err := g.TakeBet(BetDozen, Bet{ClientID: 1, Which: "4", Wager: 10}); !errors.Is(err, models.ErrInvalidArguments) {
		t.Errorf("dozen 4 should be rejected, got %v", err)
	}
	if err := g.TakeBet(BetStraightUp, Bet{ClientID: 2, Which: "37", Wager: 5}); err != nil {
		t.Errorf("double zero straight-up should be accepted: %v", err)
	}
	if g.Wagered(1) != 10 || g.Wagered(2) != 5 {
		t.Errorf("unexpected wagered totals %d / %d", g.Wagered(1), g.Wagered(2))
	}

	clock.advance(15 * time.Minute)
	if err := g.TakeBet(BetRedBlack, bet); !errors.Is(err, models.ErrNotTakingBets) {
		t.Errorf("bet after betting closed should fail, got %v", err)
	}
}

func TestBuckets(t *testing.T) {
	b := BucketsFor(17)
	want := Buckets{Number: 17, Line: 3, Column: 2, Dozen: 2, Color: "black", Parity: "odd", Half: "low"}
	if b != want {
		t.Errorf("BucketsFor(17) = %+v, want %+v", b, want)
	}

	b = BucketsFor(36)
	want = Buckets{Number: 36, Line: 6, Column: 3, Dozen: 3, Color: "red", Parity: "even", Half: "high"}
	if b != want {
		t.Errorf("BucketsFor(36) = %+v, want %+v", b, want)
	}

	for _, n := range []int{0, DoubleZero} {
		b := BucketsFor(n)
		for _, kind := range []BetKind{BetRedBlack, BetEvenOdd, BetHighLow} {
			for _, which := range []string{"red", "black", "even", "odd", "high", "low"} {
				if b.Wins(kind, which, 0, false) {
					t.Errorf("%d should lose every outside bet, won %s %s", n, kind, which)
				}
			}
		}
		for _, kind := range []BetKind{BetLine, BetColumn, BetDozen} {
			for i := 1; i <= 6; i++ {
				if b.Wins(kind, "", i, true) {
					t.Errorf("%d should lose %s %d", n, kind, i)
				}
			}
		}
	}
}

func TestRedBlackMatchesRedSet(t *testing.T) {
	for n := 0; n <= DoubleZero; n++ {
		wins := BucketsFor(n).Wins(BetRedBlack, "red", 0, false)
		if wins != slices.Contains(red, n) {
			t.Errorf("red bet on %d: wins=%v", n, wins)
		}
		straight := BucketsFor(n).Wins(BetStraightUp, "", n, true)
		if !straight {
			t.Errorf("straight-up %d should win on %d", n, n)
		}
	}
}

func TestSpin(t *testing.T) {
	g, clock := newTestGame(3)
	g.StartTakingBets()

	for n := 0; n <= DoubleZero; n++ {
		g.TakeBet(BetStraightUp, Bet{ClientID: 1, Which: models.Target(strconv.Itoa(n)), Wager: 1})
	}
	g.TakeBet(BetRedBlack, Bet{ClientID: 2, Which: "red", Wager: 10})
	g.TakeBet(BetRedBlack, Bet{ClientID: 3, Which: "black", Wager: 10})

	if _, err := g.Spin(); !errors.Is(err, models.ErrCannotSpin) {
		t.Fatalf("spin before finish should fail with ErrCannotSpin, got %v", err)
	}

	clock.advance(16 * time.Minute)
	result, err := g.Spin()
	if err != nil {
		t.Fatalf("Spin failed: %v", err)
	}
	if result < 0 || result > DoubleZero {
		t.Fatalf("result %d out of range", result)
	}

	if g.Winners[1] != 36 {
		t.Errorf("straight-up on every pocket should win 36, got %d", g.Winners[1])
	}
	color := BucketsFor(result).Color
	switch color {
	case "red":
		if g.Winners[2] != 20 || g.Winners[3] != 0 {
			t.Errorf("red result: winners %v", g.Winners)
		}
	case "black":
		if g.Winners[3] != 20 || g.Winners[2] != 0 {
			t.Errorf("black result: winners %v", g.Winners)
		}
	default:
		if g.Winners[2] != 0 || g.Winners[3] != 0 {
			t.Errorf("zero result should pay no color bet: %v", g.Winners)
		}
	}

	winners := maps.Clone(g.Winners)
	again, err := g.Spin()
	if !errors.Is(err, models.ErrAlreadySpun) {
		t.Errorf("second spin should fail with ErrAlreadySpun, got %v", err)
	}
	if again != result || !maps.Equal(winners, g.Winners) {
		t.Error("second spin must not change the result or winners")
	}
}

func TestSettleMultipliers(t *testing.T) {
	g, _ := newTestGame(1)
	g.Bets = map[BetKind][]Bet{
		BetStraightUp: {{ClientID: 1, Which: "17", Wager: 2}},
		BetLine:       {{ClientID: 1, Which: "3", Wager: 2}},
		BetColumn:     {{ClientID: 2, Which: "2", Wager: 3}},
		BetDozen:      {{ClientID: 2, Which: "1", Wager: 3}},
		BetEvenOdd:    {{ClientID: 3, Which: "odd", Wager: 4}},
		BetHighLow:    {{ClientID: 3, Which: "high", Wager: 4}},
	}
	g.settle(17)

	want := map[int64]int64{1: 72 + 12, 2: 9, 3: 8}
	if !maps.Equal(want, g.Winners) {
		t.Errorf("winners = %v, want %v", g.Winners, want)
	}
}
