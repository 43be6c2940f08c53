package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"wager-platform/internal/api/dto"
	"wager-platform/internal/bet"
	"wager-platform/internal/gateway"
	"wager-platform/internal/ledger"
	"wager-platform/internal/reconcile"
	"wager-platform/internal/shared/apperr"
	"wager-platform/internal/wallet"
	"wager-platform/pkg/contracts/events"
)

// ReconcilePublisher leva o pedido de confirmação do webhook para a fila;
// o worker faz a chamada ao gateway, nunca o handler.
type ReconcilePublisher interface {
	PublishReconcile(ctx context.Context, trigger events.ReconcileTrigger) error
}

// API expõe os endpoints REST do núcleo de apostas e carteira.
type API struct {
	Log       *zap.Logger
	Ledger    *ledger.Store
	Bets      *bet.Service
	Wallet    *wallet.Service
	Reconcile *reconcile.Service
	Gateways  *gateway.Registry
	Publisher ReconcilePublisher
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/api/login", a.login)
	r.Post("/api/bet", a.placeBet)
	r.Post("/api/query_bet", a.queryBet)             // polling do cliente
	r.Post("/api/query_recharge", a.queryRecharge)   // polling do cliente
	r.Post("/api/bet_records", a.betRecords)
	r.Get("/api/betable_matches", a.betableMatches)
	r.Post("/api/callback", a.callback) // webhook do gateway

	r.Get("/api/wallet/{accountID}", a.getWallet)
	r.Get("/api/wallet/{accountID}/ledger", a.getLedger)
	r.Post("/api/wallet/withdraw", a.withdraw)
	r.Post("/api/wallet/recharge", a.recharge)
	return r
}

// envelope é o shape de toda resposta: {code, data} ou {code, message}.
type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *API) success(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Code: 200, Data: data})
}

func (a *API) fail(w http.ResponseWriter, err error) {
	var be *apperr.Error
	if errors.As(err, &be) {
		status := be.Code
		if status < 400 {
			status = http.StatusOK
		}
		writeJSON(w, status, envelope{Code: be.Code, Message: be.Message})
		return
	}
	a.Log.Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, envelope{Code: 500, Message: "internal_error"})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.New("bad_json", 400)
	}
	return nil
}

// login resolve o perfil no gateway e cria (ou atualiza) a conta local.
func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, err)
		return
	}
	if req.OpenID == "" {
		a.fail(w, apperr.New("openid_required", 400))
		return
	}

	gw, err := a.Gateways.Get(req.AppID)
	if err != nil {
		a.fail(w, err)
		return
	}
	info, err := gw.UserInfo(r.Context(), req.OpenID)
	if err != nil {
		a.fail(w, err)
		return
	}

	acc, err := a.Ledger.GetOrCreateAccount(r.Context(), info.OpenID, req.AppID)
	if err != nil {
		a.fail(w, err)
		return
	}
	if err := a.Ledger.TouchLogin(r.Context(), acc.ID, info.NickName, info.Avatar); err != nil {
		a.fail(w, err)
		return
	}

	a.success(w, dto.LoginResponse{
		AccountID: acc.ID,
		OpenID:    acc.OpenID,
		AppID:     acc.AppID,
		Nickname:  info.NickName,
		Avatar:    info.Avatar,
		Balance:   dto.FormatBalance(acc.Balance),
	})
}

func (a *API) placeBet(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceBetRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, err)
		return
	}
	if req.AccountID <= 0 || req.OddID <= 0 || req.Type == "" {
		a.fail(w, apperr.ErrInvalidAction)
		return
	}

	order, payment, err := a.Bets.Place(r.Context(), req.AccountID, req.OddID, req.Type, req.Amount)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.success(w, dto.PlaceBetResponse{
		BetID:       order.ID,
		Status:      order.Status,
		PaymentData: payment,
	})
}

// queryBet confirma a aposta contra o gateway de forma síncrona e devolve o
// estado resultante. Corre em paralelo com o worker sem conflito: toda
// transição é condicional.
func (a *API) queryBet(w http.ResponseWriter, r *http.Request) {
	var req dto.QueryBetRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, err)
		return
	}

	order, err := a.Reconcile.CheckBet(r.Context(), req.BetID)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.success(w, dto.NewBetOrderView(order))
}

func (a *API) queryRecharge(w http.ResponseWriter, r *http.Request) {
	var req dto.QueryRechargeRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, err)
		return
	}

	order, err := a.Reconcile.CheckRecharge(r.Context(), req.ID)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.success(w, map[string]any{
		"recharge_id": order.ID,
		"status":      order.Status,
		"amount":      order.Amount,
	})
}

func (a *API) betRecords(w http.ResponseWriter, r *http.Request) {
	var req dto.BetRecordsRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, err)
		return
	}
	if req.AccountID <= 0 {
		a.fail(w, apperr.ErrInvalidAction)
		return
	}
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 || req.PageSize > 100 {
		req.PageSize = 20
	}

	records, total, err := a.Bets.Records(r.Context(), bet.RecordsQuery{
		AccountID: req.AccountID,
		MatchID:   req.MatchID,
		Complete:  req.Complete,
		Offset:    (req.Page - 1) * req.PageSize,
		Limit:     req.PageSize,
	})
	if err != nil {
		a.fail(w, err)
		return
	}

	list := make([]dto.BetRecordView, 0, len(records))
	for i := range records {
		rec := &records[i]
		list = append(list, dto.BetRecordView{
			BetOrderView: dto.NewBetOrderView(&rec.Order),
			MatchTime:    rec.MatchTime,
			Team1Name:    rec.Team1Name,
			Team2Name:    rec.Team2Name,
			Tournament:   rec.Tournament,
		})
	}
	a.success(w, dto.BetRecordsResponse{List: list, Total: total})
}

func (a *API) betableMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := a.Bets.BetableMatches(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}

	list := make([]dto.BetableMatchView, 0, len(matches))
	for _, m := range matches {
		list = append(list, dto.BetableMatchView{
			ID:         m.ID,
			MatchTime:  m.MatchTime,
			Team1Name:  m.Team1Name,
			Team2Name:  m.Team2Name,
			Tournament: m.Tournament,
			Odd: dto.OddView{
				ID:        m.Odd.ID,
				Condition: m.Odd.Condition.InexactFloat64(),
				Value1:    m.Odd.Value1.InexactFloat64(),
				Value2:    m.Odd.Value2.InexactFloat64(),
			},
		})
	}
	a.success(w, list)
}

// callback recebe o webhook do gateway. A assinatura é conferida contra o
// corpo bruto; a confirmação em si vai para a fila — o webhook só aponta
// qual ordem olhar, nunca é fonte de verdade.
func (a *API) callback(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		a.fail(w, apperr.New("bad_body", 400))
		return
	}

	var req dto.CallbackRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		a.fail(w, apperr.New("bad_json", 400))
		return
	}

	gw, err := a.Gateways.Get(req.AppID)
	if err != nil {
		a.fail(w, err)
		return
	}
	if !gw.Verify(raw, r.URL.Query().Get("signature")) {
		a.fail(w, apperr.ErrInvalidSignature)
		return
	}

	if req.Type == "consume" {
		var data dto.ConsumeCallbackData
		if err := json.Unmarshal(req.Data, &data); err != nil {
			a.fail(w, apperr.New("bad_json", 400))
			return
		}
		prefix, id, ok := gateway.ParseOrderRef(data.OutOrderNo)
		if !ok {
			a.Log.Warn("callback with unknown out_order_no",
				zap.String("outOrderNo", data.OutOrderNo))
		} else {
			trigger := events.ReconcileTrigger{OrderID: id}
			switch prefix {
			case gateway.RefBet:
			case gateway.RefRecharge:
				trigger.Kind = "recharge"
			default:
				a.Log.Warn("callback for unexpected order kind",
					zap.String("outOrderNo", data.OutOrderNo))
				ok = false
			}
			if ok {
				if err := a.Publisher.PublishReconcile(r.Context(), trigger); err != nil {
					a.fail(w, err)
					return
				}
			}
		}
	}

	// o gateway só para de reenviar quando recebe code 200
	writeJSON(w, http.StatusOK, map[string]any{"code": 200, "msg": "success"})
}

func (a *API) getWallet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	if err != nil {
		a.fail(w, apperr.ErrInvalidAction)
		return
	}

	acc, err := a.Ledger.GetAccount(r.Context(), id)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.success(w, dto.WalletResponse{
		AccountID: acc.ID,
		Balance:   dto.FormatBalance(acc.Balance),
	})
}

func (a *API) getLedger(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	if err != nil {
		a.fail(w, apperr.ErrInvalidAction)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}
	size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if size <= 0 || size > 100 {
		size = 20
	}

	acc, err := a.Ledger.GetAccount(r.Context(), id)
	if err != nil {
		a.fail(w, err)
		return
	}
	entries, err := a.Ledger.Entries(r.Context(), id, (page-1)*size, size)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.success(w, dto.LedgerResponse{
		Balance: dto.FormatBalance(acc.Balance),
		Entries: entries,
	})
}

// withdraw debita o saldo e dispara o pagamento externo. A resposta é sempre
// o estado da ordem recém-criada: o pagamento pode ainda estar em trânsito.
func (a *API) withdraw(w http.ResponseWriter, r *http.Request) {
	var req dto.WithdrawRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, err)
		return
	}

	order, err := a.Wallet.RequestWithdrawal(r.Context(), req.AccountID, req.Amount)
	if err != nil {
		a.fail(w, err)
		return
	}

	resp := dto.WithdrawResponse{WithdrawalID: order.ID, Status: order.Status}
	if acc, err := a.Ledger.GetAccount(r.Context(), req.AccountID); err == nil {
		resp.Balance = dto.FormatBalance(acc.Balance)
	}
	a.success(w, resp)
}

func (a *API) recharge(w http.ResponseWriter, r *http.Request) {
	var req dto.RechargeRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, err)
		return
	}

	order, payment, err := a.Wallet.RequestRecharge(r.Context(), req.AccountID, req.Amount)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.success(w, dto.RechargeResponse{RechargeID: order.ID, PaymentData: payment})
}
