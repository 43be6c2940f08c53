package gateway

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"wager-platform/internal/shared/apperr"
	"wager-platform/internal/shared/config"
)

// Response é o envelope de toda resposta do gateway; code 200 indica sucesso.
type Response struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// UserInfo é o perfil de um usuário no gateway.
type UserInfo struct {
	OpenID   string `json:"openid"`
	NickName string `json:"nick_name"`
	Avatar   string `json:"avatar"`
}

// ConsumeData é o registro de um consumo confirmado pelo gateway.
type ConsumeData struct {
	OpenID       string          `json:"openid"`
	Amount       decimal.Decimal `json:"amount"`
	IncomeAmount decimal.Decimal `json:"income_amount"`
	OrderNo      string          `json:"order_no"`
	OutOrderNo   string          `json:"out_order_no"`
}

// Caller é a visão do gateway consumida pelo núcleo; workers e testes
// recebem fakes por esta interface.
type Caller interface {
	UserInfo(ctx context.Context, openid string) (UserInfo, error)
	// QueryConsume consulta um consumo pela nossa referência externa.
	// confirmed=false sem erro significa "ainda não confirmado" (benigno).
	QueryConsume(ctx context.Context, outOrderNo string) (data ConsumeData, confirmed bool, err error)
	// Withdrawal paga amount ao usuário; retorna o número de ordem do gateway.
	Withdrawal(ctx context.Context, openid string, amount int64, outOrderNo string) (orderNo string, err error)
}

// Client chama o gateway de pagamento de um miniapp específico. Corpo
// {appid, timestamp, request_number, data}, assinatura como query param.
type Client struct {
	app  config.GatewayApp
	http *http.Client
}

func NewClient(app config.GatewayApp) *Client {
	return &Client{
		app:  app,
		http: &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *Client) AppID() string { return c.app.AppID }

// Signature assina o corpo bruto da requisição: md5(md5(body + app_secret)).
func (c *Client) Signature(input []byte) string {
	inner := md5Hex(append(append([]byte{}, input...), []byte(c.app.AppSecret)...))
	return md5Hex([]byte(inner))
}

// Verify confere a assinatura de um callback contra o corpo bruto recebido.
func (c *Client) Verify(rawBody []byte, signature string) bool {
	return signature != "" && c.Signature(rawBody) == signature
}

func (c *Client) api(ctx context.Context, path string, data any) (Response, error) {
	body, err := json.Marshal(map[string]any{
		"appid":          c.app.AppID,
		"timestamp":      time.Now().Unix(),
		"request_number": md5Hex([]byte(uuid.NewString())),
		"data":           data,
	})
	if err != nil {
		return Response{}, err
	}

	url := c.app.APIURL + path + "?signature=" + c.Signature(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("gateway %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return Response{}, fmt.Errorf("gateway %s: http %d", path, resp.StatusCode)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Response{}, fmt.Errorf("gateway %s: decode: %w", path, err)
	}
	return out, nil
}

func (c *Client) UserInfo(ctx context.Context, openid string) (UserInfo, error) {
	resp, err := c.api(ctx, "/mini/user_info", map[string]any{"openid": openid})
	if err != nil {
		return UserInfo{}, err
	}
	if resp.Code != 200 {
		return UserInfo{}, apperr.Wrap(apperr.ErrGatewayCallFailed, "user_info "+resp.Msg)
	}
	var info UserInfo
	if err := json.Unmarshal(resp.Data, &info); err != nil {
		return UserInfo{}, err
	}
	return info, nil
}

func (c *Client) QueryConsume(ctx context.Context, outOrderNo string) (ConsumeData, bool, error) {
	resp, err := c.api(ctx, "/mini/query_consume", map[string]any{"out_order_no": outOrderNo})
	if err != nil {
		return ConsumeData{}, false, err
	}
	if resp.Code != 200 {
		// consumo ainda não existe do lado do gateway
		return ConsumeData{}, false, nil
	}
	var data ConsumeData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return ConsumeData{}, false, err
	}
	return data, true, nil
}

func (c *Client) Withdrawal(ctx context.Context, openid string, amount int64, outOrderNo string) (string, error) {
	resp, err := c.api(ctx, "/mini/withdrawal", map[string]any{
		"openid":       openid,
		"amount":       amount,
		"out_order_no": outOrderNo,
	})
	if err != nil {
		return "", err
	}
	var data struct {
		OrderNo string `json:"order_no"`
	}
	if resp.Code == 200 {
		if err := json.Unmarshal(resp.Data, &data); err != nil {
			return "", err
		}
	}
	if resp.Code != 200 || data.OrderNo == "" {
		return "", apperr.Wrap(apperr.ErrGatewayCallFailed, fmt.Sprintf("withdrawal code=%d msg=%s", resp.Code, resp.Msg))
	}
	return data.OrderNo, nil
}

func md5Hex(input []byte) string {
	sum := md5.Sum(input)
	return hex.EncodeToString(sum[:])
}
