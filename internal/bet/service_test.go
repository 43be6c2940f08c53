package bet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"wager-platform/internal/shared/apperr"
	"wager-platform/internal/shared/config"
)

// fakeRepo reproduz em memória as garantias da transação de colocação:
// build, teto por partida e débito acontecem sob o mesmo lock.
type fakeRepo struct {
	mu      sync.Mutex
	odd     Odd
	match   Match
	balance int64
	nextID  int64
	orders  map[int64]*Order
}

func newFakeRepo(balance int64) *fakeRepo {
	matchTime := time.Now().Add(2 * time.Hour)
	return &fakeRepo{
		odd: Odd{
			ID:        1,
			MatchID:   10,
			Base:      "ah",
			Condition: decimal.NewFromFloat(-0.25),
			Value1:    decimal.NewFromFloat(1.95),
			Value2:    decimal.NewFromFloat(1.85),
			IsActive:  true,
		},
		match: Match{
			ID:         10,
			MatchTime:  matchTime,
			BetEnabled: true,
		},
		balance: balance,
		orders:  map[int64]*Order{},
	}
}

func (f *fakeRepo) Place(ctx context.Context, accountID, oddID int64, funded bool, maxStakePerMatch int64, build BuildOrder) (*Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if oddID != f.odd.ID {
		return nil, apperr.ErrOddInactive
	}
	order, err := build(f.odd, f.match, time.Now())
	if err != nil {
		return nil, err
	}

	var staked int64
	for _, o := range f.orders {
		if o.AccountID == accountID && o.MatchID == order.MatchID {
			staked += o.Amount
		}
	}
	if staked+order.Amount > maxStakePerMatch {
		return nil, apperr.ErrMaxStakePerMatch
	}

	if funded {
		if f.balance < order.Amount {
			return nil, apperr.ErrInsufficientBalance
		}
		f.balance -= order.Amount
	}

	f.nextID++
	order.ID = f.nextID
	order.AccountID = accountID
	order.CreatedAt = time.Now()
	f.orders[order.ID] = order
	return order, nil
}

func (f *fakeRepo) Get(ctx context.Context, id int64) (*Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, apperr.ErrOrderNotFound
	}
	return o, nil
}

func (f *fakeRepo) Records(ctx context.Context, q RecordsQuery) ([]Record, int, error) {
	return nil, 0, nil
}

func (f *fakeRepo) BetableMatches(ctx context.Context, now time.Time) ([]BetableMatch, error) {
	return nil, nil
}

func testRules(mode config.FundingMode) Rules {
	return Rules{Min: 100, Max: 5000, Multiple: 100, MaxStakePerMatch: 10000, FundingMode: mode}
}

func TestPlaceStakeBounds(t *testing.T) {
	repo := newFakeRepo(100000)
	svc := NewService(zap.NewNop(), repo, nil, testRules(config.FundingBalance))

	for _, stake := range []int64{0, 50, 150, 5100, -100} {
		if _, _, err := svc.Place(context.Background(), 1, 1, "ah1", stake); !errors.Is(err, apperr.ErrStakeOutOfBounds) {
			t.Fatalf("stake %d should be out of bounds, got %v", stake, err)
		}
	}
}

func TestPlaceRejectsClosedMarket(t *testing.T) {
	cases := []struct {
		name string
		mod  func(*fakeRepo)
		side string
		want error
	}{
		{"inactive odd", func(f *fakeRepo) { f.odd.IsActive = false }, "ah1", apperr.ErrOddInactive},
		{"bet disabled", func(f *fakeRepo) { f.match.BetEnabled = false }, "ah1", apperr.ErrOddInactive},
		{"canceled match", func(f *fakeRepo) { f.match.Canceled = true }, "ah1", apperr.ErrOddInactive},
		{"started match", func(f *fakeRepo) { f.match.MatchTime = time.Now().Add(-time.Minute) }, "ah1", apperr.ErrMatchStarted},
		{"side not in market", func(f *fakeRepo) {}, "over", apperr.ErrInvalidAction},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newFakeRepo(100000)
			tc.mod(repo)
			svc := NewService(zap.NewNop(), repo, nil, testRules(config.FundingBalance))

			if _, _, err := svc.Place(context.Background(), 1, 1, tc.side, 100); !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}
}

func TestPlaceBalanceMode(t *testing.T) {
	repo := newFakeRepo(300)
	svc := NewService(zap.NewNop(), repo, nil, testRules(config.FundingBalance))

	order, payment, err := svc.Place(context.Background(), 1, 1, "ah1", 200)
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if order.Status != StatusPaid || order.PaidAt == nil {
		t.Fatalf("balance-funded order should be paid, got %s", order.Status)
	}
	if payment != nil {
		t.Fatal("balance-funded order should not return payment data")
	}
	if repo.balance != 100 {
		t.Fatalf("balance = %d, want 100", repo.balance)
	}
	if !order.Value.Equal(decimal.NewFromFloat(1.95)) {
		t.Fatalf("order should snapshot the side value, got %s", order.Value)
	}

	if _, _, err := svc.Place(context.Background(), 1, 1, "ah1", 200); !errors.Is(err, apperr.ErrInsufficientBalance) {
		t.Fatalf("want insufficient_balance, got %v", err)
	}
}

func TestPlaceExternalMode(t *testing.T) {
	repo := newFakeRepo(0)
	svc := NewService(zap.NewNop(), repo, nil, testRules(config.FundingExternal))

	order, payment, err := svc.Place(context.Background(), 1, 1, "ah2", 300)
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if order.Status != StatusPending || order.PaidAt != nil {
		t.Fatalf("externally funded order should be pending, got %s", order.Status)
	}
	if payment == nil || payment.Amount != 300 {
		t.Fatalf("payment data missing: %+v", payment)
	}
	if payment.OutOrderNo != "bet_1" {
		t.Fatalf("out_order_no = %q, want bet_1", payment.OutOrderNo)
	}
}

func TestPlaceMaxStakePerMatch(t *testing.T) {
	repo := newFakeRepo(1000000)
	svc := NewService(zap.NewNop(), repo, nil, testRules(config.FundingBalance))

	for i := 0; i < 2; i++ {
		if _, _, err := svc.Place(context.Background(), 1, 1, "ah1", 5000); err != nil {
			t.Fatalf("place %d: %v", i, err)
		}
	}
	if _, _, err := svc.Place(context.Background(), 1, 1, "ah1", 100); !errors.Is(err, apperr.ErrMaxStakePerMatch) {
		t.Fatalf("want max_stake_per_match_exceeded, got %v", err)
	}

	// outro usuário não é afetado pelo teto do primeiro
	if _, _, err := svc.Place(context.Background(), 2, 1, "ah1", 100); err != nil {
		t.Fatalf("other account should still place: %v", err)
	}
}

func TestPlaceConcurrentNeverOverdraws(t *testing.T) {
	const balance = 1000
	repo := newFakeRepo(balance)
	// teto alto para medir só a serialização do saldo
	rules := testRules(config.FundingBalance)
	rules.MaxStakePerMatch = 1 << 40
	svc := NewService(zap.NewNop(), repo, nil, rules)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var placed int64
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := svc.Place(context.Background(), 1, 1, "ah1", 100); err == nil {
				mu.Lock()
				placed += 100
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if repo.balance < 0 {
		t.Fatalf("balance went negative: %d", repo.balance)
	}
	if placed != balance-repo.balance {
		t.Fatalf("debited %d but placed %d", balance-repo.balance, placed)
	}
	if placed != balance {
		t.Fatalf("expected the whole balance to be staked, placed %d", placed)
	}
}
