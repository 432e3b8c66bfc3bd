package chaos_test

import (
	"errors"
	"testing"

	"github.com/artpar/paymock/domain/chaos"
)

func TestDefaultConfig(t *testing.T) {
	cfg := chaos.DefaultConfig()

	if cfg.Payment.FailureRate != 0 {
		t.Errorf("default failure_rate = %v, want 0", cfg.Payment.FailureRate)
	}
	if cfg.Events.BufferWindowMS != 0 {
		t.Errorf("default buffer_window_ms = %d, want 0", cfg.Events.BufferWindowMS)
	}
	if cfg.API.TimeoutMS != chaos.DefaultTimeoutMS {
		t.Errorf("default timeout_ms = %d, want %d", cfg.API.TimeoutMS, chaos.DefaultTimeoutMS)
	}
}

func TestMerge_PartialKeepsPriorValues(t *testing.T) {
	cfg := chaos.DefaultConfig()

	rate := 0.5
	cfg, err := chaos.Merge(cfg, chaos.Update{
		Payment: &chaos.PaymentUpdate{FailureRate: &rate},
	})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	window := 100
	cfg, err = chaos.Merge(cfg, chaos.Update{
		Events: &chaos.EventsUpdate{BufferWindowMS: &window},
	})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	if cfg.Payment.FailureRate != 0.5 {
		t.Errorf("failure_rate = %v after unrelated update, want 0.5", cfg.Payment.FailureRate)
	}
	if cfg.Events.BufferWindowMS != 100 {
		t.Errorf("buffer_window_ms = %d, want 100", cfg.Events.BufferWindowMS)
	}
}

func TestMerge_EndpointOverridesMergePerPath(t *testing.T) {
	cfg := chaos.DefaultConfig()

	cfg, err := chaos.Merge(cfg, chaos.Update{
		API: &chaos.APIUpdate{EndpointOverrides: map[string]string{"/v1/charges": "timeout"}},
	})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	cfg, err = chaos.Merge(cfg, chaos.Update{
		API: &chaos.APIUpdate{EndpointOverrides: map[string]string{"/v1/customers": "rate_limit"}},
	})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	if cfg.API.EndpointOverrides["/v1/charges"] != "timeout" {
		t.Error("first endpoint override lost after second merge")
	}
	if cfg.API.EndpointOverrides["/v1/customers"] != "rate_limit" {
		t.Error("second endpoint override not applied")
	}

	// An empty value removes a single override, leaving the rest pinned.
	cfg, err = chaos.Merge(cfg, chaos.Update{
		API: &chaos.APIUpdate{EndpointOverrides: map[string]string{"/v1/charges": ""}},
	})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if _, ok := cfg.API.EndpointOverrides["/v1/charges"]; ok {
		t.Error("empty value did not remove the override")
	}
	if cfg.API.EndpointOverrides["/v1/customers"] != "rate_limit" {
		t.Error("unrelated override lost while removing another")
	}
}

func TestMerge_Validation(t *testing.T) {
	bad := 1.5
	window := -1

	tests := []struct {
		name   string
		update chaos.Update
	}{
		{"failure rate out of range", chaos.Update{Payment: &chaos.PaymentUpdate{FailureRate: &bad}}},
		{"negative buffer window", chaos.Update{Events: &chaos.EventsUpdate{BufferWindowMS: &window}}},
		{"unknown decline code", chaos.Update{Payment: &chaos.PaymentUpdate{DeclineCodes: []string{"bogus_code"}}}},
		{"unknown weighted code", chaos.Update{Payment: &chaos.PaymentUpdate{DeclineWeights: map[string]float64{"bogus_code": 1}}}},
		{"unknown api outcome", chaos.Update{API: &chaos.APIUpdate{EndpointOverrides: map[string]string{"/v1/charges": "explode"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := chaos.Merge(chaos.DefaultConfig(), tt.update); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestMerge_UnknownDeclineCodeErrorType(t *testing.T) {
	_, err := chaos.Merge(chaos.DefaultConfig(), chaos.Update{
		Payment: &chaos.PaymentUpdate{DeclineCodes: []string{"no_such_code"}},
	})

	var unknownErr chaos.UnknownDeclineCodeError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("expected UnknownDeclineCodeError, got %T: %v", err, err)
	}
	if unknownErr.Code != "no_such_code" {
		t.Errorf("error code = %q, want no_such_code", unknownErr.Code)
	}
}

func TestDeclineCodeCatalog(t *testing.T) {
	all := chaos.AllDeclineCodes()
	if len(all) < 20 {
		t.Errorf("catalog has %d codes, want at least 20", len(all))
	}

	defaults := chaos.DefaultDeclineCodes()
	if len(defaults) != 4 {
		t.Errorf("default set has %d codes, want 4", len(defaults))
	}

	for _, code := range all {
		if !chaos.ValidDeclineCode(code) {
			t.Errorf("catalog code %q not reported valid", code)
		}
		if chaos.DeclineMessage(code) == "" {
			t.Errorf("catalog code %q has no message", code)
		}
	}

	if chaos.ValidDeclineCode("not_a_code") {
		t.Error("bogus code reported valid")
	}
}

func TestPickDeclineCode_Uniform(t *testing.T) {
	// No weights: the roll maps straight onto slice positions.
	got := chaos.PickDeclineCode([]string{chaos.DeclineCardDeclined, chaos.DeclineExpiredCard}, nil, 0.6)
	if got != chaos.DeclineExpiredCard {
		t.Errorf("uniform pick = %q, want expired_card", got)
	}
}

func TestPickDeclineCode_Weighted(t *testing.T) {
	codes := []string{chaos.DeclineCardDeclined, chaos.DeclineInsufficientFunds, chaos.DeclineExpiredCard}
	weights := map[string]float64{
		chaos.DeclineCardDeclined:      7,
		chaos.DeclineInsufficientFunds: 2,
		chaos.DeclineExpiredCard:       1,
	}

	tests := []struct {
		roll float64
		want string
	}{
		{0.0, chaos.DeclineCardDeclined},
		{0.69, chaos.DeclineCardDeclined},
		{0.7, chaos.DeclineInsufficientFunds},
		{0.89, chaos.DeclineInsufficientFunds},
		{0.9, chaos.DeclineExpiredCard},
		{0.999, chaos.DeclineExpiredCard},
	}
	for _, tt := range tests {
		if got := chaos.PickDeclineCode(codes, weights, tt.roll); got != tt.want {
			t.Errorf("roll %v: pick = %q, want %q", tt.roll, got, tt.want)
		}
	}
}

func TestPickDeclineCode_EmptyFallsBackToDefaults(t *testing.T) {
	got := chaos.PickDeclineCode(nil, nil, 0)
	if got != chaos.DeclineCardDeclined {
		t.Errorf("pick from empty codes = %q, want first default", got)
	}
}

func TestOutcomeConstructors(t *testing.T) {
	if chaos.Succeed().Failed {
		t.Error("Succeed() marked failed")
	}
	f := chaos.Fail(chaos.DeclineLostCard)
	if !f.Failed || f.DeclineCode != chaos.DeclineLostCard {
		t.Errorf("Fail() = %+v", f)
	}
}
