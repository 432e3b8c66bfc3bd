package web_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/artpar/paymock/domain/billing"
	"github.com/artpar/paymock/ports"
)

type clockState struct {
	Mode       string  `json:"mode"`
	Multiplier float64 `json:"multiplier"`
	Now        int64   `json:"now"`
}

func TestSimClock_SetAndAdvance(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodGet, "/v1/_sim/clock", nil)
	if status != http.StatusOK {
		t.Fatalf("get clock status = %d", status)
	}
	state := decodeInto[clockState](t, body)
	if state.Mode != "manual" || state.Now != 1_700_000_000 {
		t.Fatalf("clock = %+v", state)
	}

	status, body = ts.do(t, http.MethodPost, "/v1/_sim/clock/advance", map[string]int64{"days": 2})
	if status != http.StatusOK {
		t.Fatalf("advance status = %d: %s", status, body)
	}
	state = decodeInto[clockState](t, body)
	if want := int64(1_700_000_000 + 2*24*60*60); state.Now != want {
		t.Errorf("now = %d, want %d", state.Now, want)
	}

	status, _ = ts.do(t, http.MethodPost, "/v1/_sim/clock/advance", map[string]int64{"seconds": 0})
	if status != http.StatusBadRequest {
		t.Errorf("zero advance status = %d, want 400", status)
	}

	// A real clock cannot be advanced.
	status, _ = ts.do(t, http.MethodPost, "/v1/_sim/clock", map[string]any{"mode": "real"})
	if status != http.StatusOK {
		t.Fatalf("set real status = %d", status)
	}
	status, _ = ts.do(t, http.MethodPost, "/v1/_sim/clock/advance", map[string]int64{"seconds": 60})
	if status != http.StatusBadRequest {
		t.Errorf("advance real clock status = %d, want 400", status)
	}

	status, _ = ts.do(t, http.MethodPost, "/v1/_sim/clock", map[string]any{"mode": "sideways"})
	if status != http.StatusBadRequest {
		t.Errorf("unknown mode status = %d, want 400", status)
	}
	status, _ = ts.do(t, http.MethodPost, "/v1/_sim/clock", map[string]any{"mode": "accelerated", "multiplier": -3})
	if status != http.StatusBadRequest {
		t.Errorf("negative multiplier status = %d, want 400", status)
	}
}

func TestSimChaos_ConfigureAndStats(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodPost, "/v1/_sim/chaos", map[string]any{
		"payment": map[string]any{"failure_rate": 1},
	})
	if status != http.StatusOK {
		t.Fatalf("configure status = %d: %s", status, body)
	}

	var cfg struct {
		Payment struct {
			FailureRate float64 `json:"failure_rate"`
		} `json:"payment"`
	}
	if err := json.Unmarshal(body, &cfg); err != nil {
		t.Fatalf("unmarshal config: %v", err)
	}
	if cfg.Payment.FailureRate != 1 {
		t.Errorf("failure_rate = %v, want 1", cfg.Payment.FailureRate)
	}

	// Every charge now declines, and the stats counter moves.
	_, body = ts.do(t, http.MethodPost, "/v1/customers", map[string]string{"name": "Jo"})
	customer := decodeInto[ports.Customer](t, body)
	status, _ = ts.do(t, http.MethodPost, "/v1/charges", map[string]any{
		"amount": 100, "currency": "usd", "customer": customer.ID,
	})
	if status != http.StatusPaymentRequired {
		t.Fatalf("charge status = %d, want 402", status)
	}

	status, body = ts.do(t, http.MethodGet, "/v1/_sim/chaos/stats", nil)
	if status != http.StatusOK {
		t.Fatalf("stats status = %d", status)
	}
	var stats struct {
		PaymentsFailed uint64 `json:"payments_failed"`
	}
	if err := json.Unmarshal(body, &stats); err != nil {
		t.Fatalf("unmarshal stats: %v", err)
	}
	if stats.PaymentsFailed != 1 {
		t.Errorf("payments_failed = %d, want 1", stats.PaymentsFailed)
	}

	// Invalid rates are rejected and leave the config untouched.
	status, _ = ts.do(t, http.MethodPost, "/v1/_sim/chaos", map[string]any{
		"payment": map[string]any{"failure_rate": 3},
	})
	if status != http.StatusBadRequest {
		t.Errorf("bad rate status = %d, want 400", status)
	}
}

func TestChaosFaults_InjectedOnAPIRoutes(t *testing.T) {
	ts := newTestServer(t)

	status, _ := ts.do(t, http.MethodPost, "/v1/_sim/chaos", map[string]any{
		"api": map[string]any{"error_rate": 1},
	})
	if status != http.StatusOK {
		t.Fatalf("configure status = %d", status)
	}

	status, body := ts.do(t, http.MethodGet, "/v1/customers", nil)
	if status != http.StatusInternalServerError {
		t.Fatalf("status = %d, want injected 500", status)
	}
	envelope := decodeInto[errorEnvelope](t, body)
	if envelope.Error.Type != "api_error" {
		t.Errorf("error type = %q, want api_error", envelope.Error.Type)
	}

	// The control surface is exempt from fault injection.
	status, _ = ts.do(t, http.MethodGet, "/v1/_sim/chaos/stats", nil)
	if status != http.StatusOK {
		t.Errorf("_sim status = %d, want 200", status)
	}
	status, _ = ts.do(t, http.MethodGet, "/healthz", nil)
	if status != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", status)
	}

	// Rate limiting wins over server errors only when configured; switch.
	status, _ = ts.do(t, http.MethodPost, "/v1/_sim/chaos", map[string]any{
		"api": map[string]any{"error_rate": 0, "rate_limit_rate": 1},
	})
	if status != http.StatusOK {
		t.Fatalf("reconfigure status = %d", status)
	}
	status, body = ts.do(t, http.MethodGet, "/v1/customers", nil)
	if status != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429: %s", status, body)
	}
	envelope = decodeInto[errorEnvelope](t, body)
	if envelope.Error.Type != "rate_limit_error" {
		t.Errorf("error type = %q, want rate_limit_error", envelope.Error.Type)
	}
}

func TestChaosFaults_EndpointOverride(t *testing.T) {
	ts := newTestServer(t)

	status, _ := ts.do(t, http.MethodPost, "/v1/_sim/chaos", map[string]any{
		"api": map[string]any{"endpoint_overrides": map[string]string{"/v1/charges": "server_error"}},
	})
	if status != http.StatusOK {
		t.Fatalf("configure status = %d", status)
	}

	status, _ = ts.do(t, http.MethodGet, "/v1/charges", nil)
	if status != http.StatusInternalServerError {
		t.Errorf("overridden path status = %d, want 500", status)
	}
	status, _ = ts.do(t, http.MethodGet, "/v1/customers", nil)
	if status != http.StatusOK {
		t.Errorf("untouched path status = %d, want 200", status)
	}
}

func TestSimBilling_RunAndInvoiceFilter(t *testing.T) {
	ts := newTestServer(t)

	_, body := ts.do(t, http.MethodPost, "/v1/customers", map[string]string{"name": "Jo"})
	customer := decodeInto[ports.Customer](t, body)
	_, body = ts.do(t, http.MethodPost, "/v1/subscriptions", map[string]any{
		"customer": customer.ID,
		"plan":     map[string]any{"id": "plan_basic", "amount": 999, "interval": "month"},
	})
	sub := decodeInto[billing.Subscription](t, body)

	// Nothing due yet.
	status, body := ts.do(t, http.MethodPost, "/v1/_sim/billing/run", nil)
	if status != http.StatusOK {
		t.Fatalf("run status = %d: %s", status, body)
	}
	var result struct {
		Processed int `json:"processed"`
		Succeeded int `json:"succeeded"`
		Failed    int `json:"failed"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if result.Processed != 0 {
		t.Fatalf("processed = %d before period end, want 0", result.Processed)
	}

	// Jump past the period end and bill.
	ts.do(t, http.MethodPost, "/v1/_sim/clock/advance", map[string]int64{"days": 31})
	status, body = ts.do(t, http.MethodPost, "/v1/_sim/billing/run", nil)
	if status != http.StatusOK {
		t.Fatalf("run status = %d", status)
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if result.Processed != 1 || result.Succeeded != 1 || result.Failed != 0 {
		t.Fatalf("result = %+v, want 1 processed, 1 succeeded", result)
	}

	status, body = ts.do(t, http.MethodGet, "/v1/invoices?subscription="+sub.ID, nil)
	if status != http.StatusOK {
		t.Fatalf("list invoices status = %d", status)
	}
	var page struct {
		Object  string            `json:"object"`
		Data    []billing.Invoice `json:"data"`
		HasMore bool              `json:"has_more"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(page.Data) != 1 || page.Data[0].Status != billing.InvoiceStatusPaid {
		t.Fatalf("invoices = %+v, want one paid invoice", page.Data)
	}
	if page.Data[0].Subscription != sub.ID {
		t.Errorf("invoice subscription = %q, want %q", page.Data[0].Subscription, sub.ID)
	}

	// An unrelated subscription filter matches nothing.
	status, body = ts.do(t, http.MethodGet, "/v1/invoices?subscription=sub_other", nil)
	if status != http.StatusOK {
		t.Fatalf("filtered list status = %d", status)
	}
	if err := json.Unmarshal(body, &page); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(page.Data) != 0 || page.HasMore {
		t.Errorf("unrelated filter = %+v", page)
	}
}

func TestSimBillingMode(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodGet, "/v1/_sim/billing/mode", nil)
	if status != http.StatusOK {
		t.Fatalf("get mode status = %d", status)
	}
	mode := decodeInto[map[string]string](t, body)
	if mode["mode"] != "happy_path" {
		t.Errorf("mode = %q, want happy_path", mode["mode"])
	}

	status, _ = ts.do(t, http.MethodPost, "/v1/_sim/billing/mode", map[string]string{"mode": "chaos"})
	if status != http.StatusOK {
		t.Fatalf("set mode status = %d", status)
	}
	status, _ = ts.do(t, http.MethodPost, "/v1/_sim/billing/mode", map[string]string{"mode": "pandemonium"})
	if status != http.StatusBadRequest {
		t.Errorf("unknown mode status = %d, want 400", status)
	}
}

func TestSimFailureOverride_ClearRestores(t *testing.T) {
	ts := newTestServer(t)

	_, body := ts.do(t, http.MethodPost, "/v1/customers", map[string]string{"name": "Jo"})
	customer := decodeInto[ports.Customer](t, body)

	status, _ := ts.do(t, http.MethodPut, "/v1/_sim/customers/"+customer.ID+"/failure", map[string]string{
		"decline_code": "expired_card",
	})
	if status != http.StatusOK {
		t.Fatalf("set failure status = %d", status)
	}

	charge := map[string]any{"amount": 100, "currency": "usd", "customer": customer.ID}
	if status, _ = ts.do(t, http.MethodPost, "/v1/charges", charge); status != http.StatusPaymentRequired {
		t.Fatalf("overridden charge status = %d, want 402", status)
	}

	status, _ = ts.do(t, http.MethodDelete, "/v1/_sim/customers/"+customer.ID+"/failure", nil)
	if status != http.StatusOK {
		t.Fatalf("clear status = %d", status)
	}
	if status, _ = ts.do(t, http.MethodPost, "/v1/charges", charge); status != http.StatusOK {
		t.Errorf("charge after clear status = %d, want 200", status)
	}

	// Unknown decline codes are rejected.
	status, body = ts.do(t, http.MethodPut, "/v1/_sim/customers/"+customer.ID+"/failure", map[string]string{
		"decline_code": "card_melted",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("unknown code status = %d", status)
	}
	envelope := decodeInto[errorEnvelope](t, body)
	if envelope.Error.Param != "decline_code" {
		t.Errorf("param = %q, want decline_code", envelope.Error.Param)
	}
}

func TestSimReset_RestoresPristineState(t *testing.T) {
	ts := newTestServer(t)

	_, body := ts.do(t, http.MethodPost, "/v1/customers", map[string]string{"name": "Jo"})
	customer := decodeInto[ports.Customer](t, body)
	ts.do(t, http.MethodPost, "/v1/_sim/chaos", map[string]any{
		"payment": map[string]any{"failure_rate": 1},
	})
	ts.do(t, http.MethodPost, "/v1/_sim/billing/mode", map[string]string{"mode": "chaos"})
	ts.do(t, http.MethodPut, "/v1/_sim/customers/"+customer.ID+"/failure", map[string]string{
		"decline_code": "expired_card",
	})

	status, _ := ts.do(t, http.MethodPost, "/v1/_sim/reset", nil)
	if status != http.StatusOK {
		t.Fatalf("reset status = %d", status)
	}

	status, body = ts.do(t, http.MethodGet, "/v1/customers", nil)
	if status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	var page struct {
		Data []ports.Customer `json:"data"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(page.Data) != 0 {
		t.Errorf("customers after reset = %d, want 0", len(page.Data))
	}

	status, body = ts.do(t, http.MethodGet, "/v1/_sim/billing/mode", nil)
	if status != http.StatusOK {
		t.Fatalf("mode status = %d", status)
	}
	if mode := decodeInto[map[string]string](t, body); mode["mode"] != "happy_path" {
		t.Errorf("mode after reset = %q, want happy_path", mode["mode"])
	}

	status, body = ts.do(t, http.MethodGet, "/v1/_sim/chaos", nil)
	if status != http.StatusOK {
		t.Fatalf("chaos status = %d", status)
	}
	var cfg struct {
		Payment struct {
			FailureRate float64 `json:"failure_rate"`
		} `json:"payment"`
	}
	if err := json.Unmarshal(body, &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cfg.Payment.FailureRate != 0 {
		t.Errorf("failure_rate after reset = %v, want 0", cfg.Payment.FailureRate)
	}

	status, body = ts.do(t, http.MethodGet, "/v1/_sim/clock", nil)
	if status != http.StatusOK {
		t.Fatalf("clock status = %d", status)
	}
	if state := decodeInto[clockState](t, body); state.Mode != "real" {
		t.Errorf("clock mode after reset = %q, want real", state.Mode)
	}
}
