package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"wager-platform/internal/shared/apperr"
	"wager-platform/internal/shared/config"
)

func testClient(apiURL string) *Client {
	return NewClient(config.GatewayApp{
		AppID:     "mini123",
		AppSecret: "topsecret",
		APIURL:    apiURL,
	})
}

func TestSignatureGolden(t *testing.T) {
	c := testClient("")
	body := []byte(`{"appid":"mini123","timestamp":1700000000}`)

	// md5(md5(body+secret)) calculado fora do código sob teste
	const want = "24db04617725e2b27a5a1e27a295a57c"
	if got := c.Signature(body); got != want {
		t.Fatalf("Signature = %s, want %s", got, want)
	}

	if !c.Verify(body, want) {
		t.Fatal("Verify should accept the matching signature")
	}
	if c.Verify(body, "deadbeef") {
		t.Fatal("Verify should reject a wrong signature")
	}
	if c.Verify(body, "") {
		t.Fatal("Verify should reject an empty signature")
	}
	if c.Verify(append(body, ' '), want) {
		t.Fatal("Verify should reject a tampered body")
	}
}

func TestOrderRefRoundTrip(t *testing.T) {
	ref := OrderRef(RefBet, 42)
	if ref != "bet_42" {
		t.Fatalf("OrderRef = %q, want bet_42", ref)
	}

	prefix, id, ok := ParseOrderRef(ref)
	if !ok || prefix != RefBet || id != 42 {
		t.Fatalf("ParseOrderRef(%q) = %q, %d, %v", ref, prefix, id, ok)
	}

	for _, bad := range []string{"", "bet_", "_42", "bet-42", "bet_42x", "Bet_42"} {
		if _, _, ok := ParseOrderRef(bad); ok {
			t.Fatalf("ParseOrderRef(%q) should fail", bad)
		}
	}
}

func TestQueryConsume(t *testing.T) {
	var gotPath, gotSig string
	var gotBody struct {
		AppID         string          `json:"appid"`
		Timestamp     int64           `json:"timestamp"`
		RequestNumber string          `json:"request_number"`
		Data          json.RawMessage `json:"data"`
	}
	confirmed := false

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotSig = r.URL.Query().Get("signature")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		if !confirmed {
			_ = json.NewEncoder(w).Encode(map[string]any{"code": 404, "msg": "not found"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 200,
			"data": map[string]any{
				"openid":       "u1",
				"amount":       300,
				"order_no":     "gw-55",
				"out_order_no": "bet_55",
			},
		})
	}))
	defer srv.Close()

	c := testClient(srv.URL)

	// code != 200 é "ainda não confirmado", não erro
	_, ok, err := c.QueryConsume(context.Background(), "bet_55")
	if err != nil {
		t.Fatalf("unconfirmed query should not error: %v", err)
	}
	if ok {
		t.Fatal("unconfirmed query should report confirmed=false")
	}
	if gotPath != "/mini/query_consume" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotBody.AppID != "mini123" || gotBody.RequestNumber == "" || gotBody.Timestamp == 0 {
		t.Fatalf("request envelope incomplete: %+v", gotBody)
	}
	if gotSig == "" {
		t.Fatal("signature query param missing")
	}

	confirmed = true
	data, ok, err := c.QueryConsume(context.Background(), "bet_55")
	if err != nil || !ok {
		t.Fatalf("confirmed query: ok=%v err=%v", ok, err)
	}
	if data.OutOrderNo != "bet_55" || data.OrderNo != "gw-55" {
		t.Fatalf("unexpected consume data: %+v", data)
	}
}

func TestWithdrawal(t *testing.T) {
	fail := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			_ = json.NewEncoder(w).Encode(map[string]any{"code": 500, "msg": "busy"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 200,
			"data": map[string]any{"order_no": "gw-w-9"},
		})
	}))
	defer srv.Close()

	c := testClient(srv.URL)

	if _, err := c.Withdrawal(context.Background(), "u1", 500, "withdrawal_9"); !errors.Is(err, apperr.ErrGatewayCallFailed) {
		t.Fatalf("failed withdrawal should map to gateway_call_failed, got %v", err)
	}

	fail = false
	orderNo, err := c.Withdrawal(context.Background(), "u1", 500, "withdrawal_9")
	if err != nil {
		t.Fatalf("withdrawal: %v", err)
	}
	if orderNo != "gw-w-9" {
		t.Fatalf("orderNo = %q", orderNo)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry([]config.GatewayApp{{AppID: "mini123", AppSecret: "s", APIURL: "http://x"}})

	if _, err := r.Get("mini123"); err != nil {
		t.Fatalf("known appid: %v", err)
	}
	if _, err := r.Caller("nope"); !errors.Is(err, apperr.ErrInvalidAppID) {
		t.Fatalf("unknown appid should be invalid_appid, got %v", err)
	}
}
