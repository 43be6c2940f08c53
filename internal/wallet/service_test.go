package wallet

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"wager-platform/internal/bet"
	"wager-platform/internal/gateway"
	"wager-platform/internal/ledger"
	"wager-platform/internal/odds"
	"wager-platform/internal/shared/apperr"
	"wager-platform/internal/shared/config"
)

type fakeRepo struct {
	balance    int64
	withdrawal *WithdrawalOrder
	recharge   *RechargeOrder
	payoutBet  *bet.Order
	nextID     int64
	refunded   int // créditos de estorno aplicados no ledger
	incomePaid int
}

func (f *fakeRepo) CreateWithdrawal(ctx context.Context, accountID, amount int64) (*WithdrawalOrder, error) {
	if f.balance < amount {
		return nil, apperr.ErrInsufficientBalance
	}
	f.balance -= amount
	f.nextID++
	f.withdrawal = &WithdrawalOrder{ID: f.nextID, AccountID: accountID, Amount: amount, CreatedAt: time.Now()}
	return f.withdrawal, nil
}

func (f *fakeRepo) GetWithdrawal(ctx context.Context, id int64) (*WithdrawalOrder, ledger.Account, error) {
	if f.withdrawal == nil || f.withdrawal.ID != id {
		return nil, ledger.Account{}, apperr.ErrOrderNotFound
	}
	cp := *f.withdrawal
	return &cp, ledger.Account{ID: cp.AccountID, OpenID: "u1", AppID: "mini123"}, nil
}

func (f *fakeRepo) CompleteWithdrawal(ctx context.Context, id int64, externalOrderNo string) (bool, error) {
	if f.withdrawal.Status != StatusPending {
		return false, nil
	}
	f.withdrawal.Status = StatusCompleted
	f.withdrawal.ExternalOrderNo = externalOrderNo
	return true, nil
}

func (f *fakeRepo) FailWithdrawal(ctx context.Context, id int64) (bool, error) {
	if f.withdrawal.Status != StatusPending {
		return false, nil
	}
	f.withdrawal.Status = StatusFailed
	return true, nil
}

func (f *fakeRepo) TouchWithdrawalAttempt(ctx context.Context, id int64) error {
	f.withdrawal.Attempts++
	return nil
}

func (f *fakeRepo) CreateRecharge(ctx context.Context, accountID, amount int64) (*RechargeOrder, error) {
	f.nextID++
	f.recharge = &RechargeOrder{ID: f.nextID, AccountID: accountID, Amount: amount, CreatedAt: time.Now()}
	return f.recharge, nil
}

func (f *fakeRepo) GetBetForPayout(ctx context.Context, betID int64) (*bet.Order, ledger.Account, error) {
	if f.payoutBet == nil || f.payoutBet.ID != betID {
		return nil, ledger.Account{}, apperr.ErrOrderNotFound
	}
	cp := *f.payoutBet
	return &cp, ledger.Account{ID: cp.AccountID, OpenID: "u1", AppID: "mini123"}, nil
}

func (f *fakeRepo) MarkBetRefunding(ctx context.Context, betID int64) (bool, error) {
	if f.payoutBet.Status != bet.StatusExpired {
		return false, nil
	}
	f.payoutBet.Status = bet.StatusRefunding
	return true, nil
}

func (f *fakeRepo) MarkBetRefunded(ctx context.Context, betID int64) (bool, error) {
	if f.payoutBet.Status != bet.StatusRefunding {
		return false, nil
	}
	f.payoutBet.Status = bet.StatusRefunded
	return true, nil
}

func (f *fakeRepo) RefundBetToLedger(ctx context.Context, betID int64) (bool, error) {
	switch f.payoutBet.Status {
	case bet.StatusExpired, bet.StatusRefunding:
	default:
		return false, nil
	}
	f.balance += f.payoutBet.Amount
	f.refunded++
	f.payoutBet.Status = bet.StatusRefunded
	return true, nil
}

func (f *fakeRepo) MarkBetIncomePaid(ctx context.Context, betID int64) (bool, error) {
	if f.payoutBet.SettlementAt != nil {
		return false, nil
	}
	now := time.Now()
	f.payoutBet.SettlementAt = &now
	if f.payoutBet.Status == bet.StatusPaid {
		f.payoutBet.Status = bet.StatusSettled
	}
	f.incomePaid++
	return true, nil
}

// flakyCaller falha os primeiros n saques e depois passa a aceitar.
type flakyCaller struct {
	failures int
	calls    []string // out_order_no de cada chamada
}

func (f *flakyCaller) UserInfo(ctx context.Context, openid string) (gateway.UserInfo, error) {
	return gateway.UserInfo{OpenID: openid}, nil
}

func (f *flakyCaller) QueryConsume(ctx context.Context, outOrderNo string) (gateway.ConsumeData, bool, error) {
	return gateway.ConsumeData{}, false, nil
}

func (f *flakyCaller) Withdrawal(ctx context.Context, openid string, amount int64, outOrderNo string) (string, error) {
	f.calls = append(f.calls, outOrderNo)
	if f.failures > 0 {
		f.failures--
		return "", apperr.ErrGatewayCallFailed
	}
	return "gw-" + outOrderNo, nil
}

type fakeGateways struct{ caller *flakyCaller }

func (f *fakeGateways) Caller(appid string) (gateway.Caller, error) {
	if appid != "mini123" {
		return nil, apperr.ErrInvalidAppID
	}
	return f.caller, nil
}

type recordingRetry struct {
	withdrawals []int // attempts reenfileirados
	rollbacks   []int
	incomes     []int
	dlq         []int64
}

func (r *recordingRetry) PublishWithdrawalRetry(ctx context.Context, id int64, attempt int) error {
	r.withdrawals = append(r.withdrawals, attempt)
	return nil
}

func (r *recordingRetry) PublishRollback(ctx context.Context, betID int64, attempt int) error {
	r.rollbacks = append(r.rollbacks, attempt)
	return nil
}

func (r *recordingRetry) PublishIncome(ctx context.Context, betID int64, attempt int) error {
	r.incomes = append(r.incomes, attempt)
	return nil
}

func (r *recordingRetry) PublishWithdrawalDLQ(ctx context.Context, id int64) error {
	r.dlq = append(r.dlq, id)
	return nil
}

func newService(repo *fakeRepo, caller *flakyCaller, retry *recordingRetry, mode config.FundingMode) *Service {
	return NewService(zap.NewNop(), repo, &fakeGateways{caller: caller}, retry, 3, mode)
}

func TestRequestWithdrawalHappyPath(t *testing.T) {
	repo := &fakeRepo{balance: 1000}
	caller := &flakyCaller{}
	retry := &recordingRetry{}
	svc := newService(repo, caller, retry, config.FundingBalance)

	order, err := svc.RequestWithdrawal(context.Background(), 1, 400)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if repo.balance != 600 {
		t.Fatalf("balance = %d, want 600", repo.balance)
	}
	if repo.withdrawal.Status != StatusCompleted {
		t.Fatalf("status = %d, want completed", repo.withdrawal.Status)
	}
	if repo.withdrawal.ExternalOrderNo != "gw-withdrawal_1" {
		t.Fatalf("external order no = %q", repo.withdrawal.ExternalOrderNo)
	}
	if len(caller.calls) != 1 || caller.calls[0] != gateway.OrderRef(gateway.RefWithdrawal, order.ID) {
		t.Fatalf("gateway calls = %v", caller.calls)
	}
	if len(retry.withdrawals) != 0 {
		t.Fatal("no retry expected on first-attempt success")
	}
}

func TestRequestWithdrawalInsufficientBalance(t *testing.T) {
	repo := &fakeRepo{balance: 100}
	svc := newService(repo, &flakyCaller{}, &recordingRetry{}, config.FundingBalance)

	if _, err := svc.RequestWithdrawal(context.Background(), 1, 400); !errors.Is(err, apperr.ErrInsufficientBalance) {
		t.Fatalf("want insufficient_balance, got %v", err)
	}
	if repo.balance != 100 {
		t.Fatalf("balance must be untouched, got %d", repo.balance)
	}
}

func TestWithdrawalRetriesUntilSuccess(t *testing.T) {
	repo := &fakeRepo{balance: 1000}
	caller := &flakyCaller{failures: 2}
	retry := &recordingRetry{}
	svc := newService(repo, caller, retry, config.FundingBalance)

	order, err := svc.RequestWithdrawal(context.Background(), 1, 400)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	// a primeira tentativa falhou mas o débito é durável e o chamador vê sucesso
	if repo.withdrawal.Status != StatusPending {
		t.Fatalf("status = %d, want still pending", repo.withdrawal.Status)
	}
	if len(retry.withdrawals) != 1 || retry.withdrawals[0] != 2 {
		t.Fatalf("retry attempts = %v, want [2]", retry.withdrawals)
	}

	// o retry-worker entrega as tentativas seguintes
	if err := svc.ProcessWithdrawalRetry(context.Background(), order.ID, 2); err != nil {
		t.Fatalf("retry 2: %v", err)
	}
	if len(retry.withdrawals) != 2 || retry.withdrawals[1] != 3 {
		t.Fatalf("retry attempts = %v, want [2 3]", retry.withdrawals)
	}

	if err := svc.ProcessWithdrawalRetry(context.Background(), order.ID, 3); err != nil {
		t.Fatalf("retry 3: %v", err)
	}
	if repo.withdrawal.Status != StatusCompleted {
		t.Fatalf("status = %d, want completed after retry", repo.withdrawal.Status)
	}
	if repo.withdrawal.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", repo.withdrawal.Attempts)
	}

	// reentrega tardia da fila: ordem já completa, nada acontece
	if err := svc.ProcessWithdrawalRetry(context.Background(), order.ID, 4); err != nil {
		t.Fatalf("late retry: %v", err)
	}
	if len(caller.calls) != 3 {
		t.Fatalf("gateway calls = %d, want 3", len(caller.calls))
	}
}

func TestWithdrawalExhaustsAttempts(t *testing.T) {
	repo := &fakeRepo{balance: 1000}
	caller := &flakyCaller{failures: 100}
	retry := &recordingRetry{}
	svc := newService(repo, caller, retry, config.FundingBalance)

	order, err := svc.RequestWithdrawal(context.Background(), 1, 400)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	for attempt := 2; attempt <= 3; attempt++ {
		if err := svc.ProcessWithdrawalRetry(context.Background(), order.ID, attempt); err != nil {
			t.Fatalf("retry %d: %v", attempt, err)
		}
	}

	// além do teto: estado terminal + DLQ, sem nova chamada de gateway
	calls := len(caller.calls)
	if err := svc.ProcessWithdrawalRetry(context.Background(), order.ID, 4); err != nil {
		t.Fatalf("final retry: %v", err)
	}
	if repo.withdrawal.Status != StatusFailed {
		t.Fatalf("status = %d, want failed", repo.withdrawal.Status)
	}
	if len(retry.dlq) != 1 || retry.dlq[0] != order.ID {
		t.Fatalf("dlq = %v", retry.dlq)
	}
	if len(caller.calls) != calls {
		t.Fatal("exhausted order must not hit the gateway again")
	}
}

func TestProcessRollbackBalanceMode(t *testing.T) {
	repo := &fakeRepo{payoutBet: &bet.Order{ID: 5, AccountID: 1, Amount: 300, Status: bet.StatusExpired}}
	svc := newService(repo, &flakyCaller{}, &recordingRetry{}, config.FundingBalance)

	for i := 0; i < 2; i++ {
		if err := svc.ProcessRollback(context.Background(), 5, 1); err != nil {
			t.Fatalf("rollback %d: %v", i, err)
		}
	}
	if repo.payoutBet.Status != bet.StatusRefunded {
		t.Fatalf("status = %s, want refunded", repo.payoutBet.Status)
	}
	if repo.refunded != 1 || repo.balance != 300 {
		t.Fatalf("refunds = %d balance = %d, want exactly one credit of 300", repo.refunded, repo.balance)
	}
}

func TestProcessRollbackExternalMode(t *testing.T) {
	repo := &fakeRepo{payoutBet: &bet.Order{ID: 5, AccountID: 1, Amount: 300, Status: bet.StatusExpired}}
	caller := &flakyCaller{failures: 1}
	retry := &recordingRetry{}
	svc := newService(repo, caller, retry, config.FundingExternal)

	// primeira tentativa: refunding antes da rede, gateway falha, retentativa
	if err := svc.ProcessRollback(context.Background(), 5, 1); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if repo.payoutBet.Status != bet.StatusRefunding {
		t.Fatalf("status = %s, want refunding", repo.payoutBet.Status)
	}
	if len(retry.rollbacks) != 1 || retry.rollbacks[0] != 2 {
		t.Fatalf("rollback retries = %v, want [2]", retry.rollbacks)
	}

	if err := svc.ProcessRollback(context.Background(), 5, 2); err != nil {
		t.Fatalf("rollback retry: %v", err)
	}
	if repo.payoutBet.Status != bet.StatusRefunded {
		t.Fatalf("status = %s, want refunded", repo.payoutBet.Status)
	}
	if got := caller.calls[len(caller.calls)-1]; got != "rollback_5" {
		t.Fatalf("gateway ref = %q, want rollback_5", got)
	}
	if repo.refunded != 0 {
		t.Fatal("external rollback must not credit the ledger")
	}

	// aposta já devolvida: reentrega é um no-op
	if err := svc.ProcessRollback(context.Background(), 5, 3); err != nil {
		t.Fatalf("late rollback: %v", err)
	}
	if len(caller.calls) != 2 {
		t.Fatalf("gateway calls = %d, want 2", len(caller.calls))
	}
}

func TestProcessIncomePaysOnce(t *testing.T) {
	result := odds.FullWin
	repo := &fakeRepo{payoutBet: &bet.Order{
		ID: 6, AccountID: 1, Amount: 200, Status: bet.StatusPaid,
		Result: &result, ResultAmount: 390,
	}}
	caller := &flakyCaller{}
	svc := newService(repo, caller, &recordingRetry{}, config.FundingExternal)

	for i := 0; i < 2; i++ {
		if err := svc.ProcessIncome(context.Background(), 6, 1); err != nil {
			t.Fatalf("income %d: %v", i, err)
		}
	}
	if repo.incomePaid != 1 {
		t.Fatalf("income paid %d times, want once", repo.incomePaid)
	}
	if repo.payoutBet.Status != bet.StatusSettled {
		t.Fatalf("status = %s, want settled", repo.payoutBet.Status)
	}
	if len(caller.calls) != 1 || caller.calls[0] != "income_6" {
		t.Fatalf("gateway calls = %v, want [income_6]", caller.calls)
	}
}

func TestProcessIncomeSkipsUnsettledOrLosing(t *testing.T) {
	loss := odds.FullLoss
	cases := []*bet.Order{
		{ID: 6, Status: bet.StatusPaid},                                 // sem resultado
		{ID: 6, Status: bet.StatusPaid, Result: &loss, ResultAmount: 0}, // nada a pagar
	}
	for i, o := range cases {
		repo := &fakeRepo{payoutBet: o}
		caller := &flakyCaller{}
		svc := newService(repo, caller, &recordingRetry{}, config.FundingExternal)

		if err := svc.ProcessIncome(context.Background(), 6, 1); err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if len(caller.calls) != 0 || repo.incomePaid != 0 {
			t.Fatalf("case %d: nothing should be paid", i)
		}
	}
}

func TestRequestRecharge(t *testing.T) {
	repo := &fakeRepo{}
	svc := newService(repo, &flakyCaller{}, &recordingRetry{}, config.FundingExternal)

	order, payment, err := svc.RequestRecharge(context.Background(), 1, 500)
	if err != nil {
		t.Fatalf("recharge: %v", err)
	}
	if payment.OutOrderNo != gateway.OrderRef(gateway.RefRecharge, order.ID) || payment.Amount != 500 {
		t.Fatalf("payment data = %+v", payment)
	}

	if _, _, err := svc.RequestRecharge(context.Background(), 1, 0); !errors.Is(err, apperr.ErrStakeOutOfBounds) {
		t.Fatalf("zero amount should be rejected, got %v", err)
	}
}
