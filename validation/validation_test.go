package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/kbukum/capdir/errors"
)

func TestValidatorRequired(t *testing.T) {
	v := New().Required("participantId", "  ")
	if !v.HasErrors() {
		t.Fatal("expected error for blank value")
	}
	if v.Errors()[0].Field != "participantId" {
		t.Errorf("expected field participantId, got %q", v.Errors()[0].Field)
	}

	if New().Required("participantId", "p1").HasErrors() {
		t.Error("expected no error for non-empty value")
	}
}

func TestValidatorNotEmpty(t *testing.T) {
	if !New().NotEmpty("domains", nil).HasErrors() {
		t.Error("expected error for nil slice")
	}
	if New().NotEmpty("domains", []string{"d"}).HasErrors() {
		t.Error("expected no error for non-empty slice")
	}
}

func TestValidatorMin(t *testing.T) {
	if !New().Min("cacheMaxAgeMs", -1, 0).HasErrors() {
		t.Error("expected error below minimum")
	}
	if New().Min("cacheMaxAgeMs", 0, 0).HasErrors() {
		t.Error("expected no error at minimum")
	}
}

func TestValidatorOneOf(t *testing.T) {
	allowed := []string{"LOCAL_ONLY", "GLOBAL_ONLY"}
	tests := []struct {
		value   string
		wantErr bool
	}{
		{"", false},
		{"LOCAL_ONLY", false},
		{"EVERYWHERE", true},
	}
	for _, tc := range tests {
		t.Run(tc.value, func(t *testing.T) {
			if got := New().OneOf("scope", tc.value, allowed).HasErrors(); got != tc.wantErr {
				t.Errorf("expected error=%v, got %v", tc.wantErr, got)
			}
		})
	}
}

func TestValidatorChaining_Err(t *testing.T) {
	err := New().
		Required("domain", "").
		Required("interfaceName", "").
		Custom(false, "gbids", "bad").
		Err()
	if err == nil {
		t.Fatal("expected error")
	}
	appErr, ok := errors.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.Code != errors.ErrCodeInvalidInput {
		t.Errorf("expected INVALID_INPUT, got %s", appErr.Code)
	}
	fields, _ := appErr.Details["fields"].([]FieldError)
	if len(fields) != 3 {
		t.Errorf("expected 3 field errors, got %d", len(fields))
	}
	if New().Err() != nil {
		t.Error("expected nil error when valid")
	}
}

type sampleConfig struct {
	KnownGbids   []string      `mapstructure:"known_gbids" validate:"min=1,unique,dive,required"`
	AddRemoveTTL time.Duration `mapstructure:"add_remove_ttl" validate:"gt=0"`
	Policy       string        `mapstructure:"policy" validate:"oneof=clear-always clear-on-not-found"`
}

type sampleRequest struct {
	Domain string `json:"domain" validate:"required"`
}

func TestStructValidateValid(t *testing.T) {
	cfg := sampleConfig{KnownGbids: []string{"g1", "g2"}, AddRemoveTTL: time.Minute, Policy: "clear-always"}
	if err := Validate(cfg); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestStructValidateInvalid(t *testing.T) {
	tests := []struct {
		name  string
		cfg   sampleConfig
		field string
	}{
		{"empty gbids", sampleConfig{AddRemoveTTL: time.Second, Policy: "clear-always"}, "known_gbids"},
		{"duplicate gbids", sampleConfig{KnownGbids: []string{"g1", "g1"}, AddRemoveTTL: time.Second, Policy: "clear-always"}, "known_gbids"},
		{"blank gbid", sampleConfig{KnownGbids: []string{""}, AddRemoveTTL: time.Second, Policy: "clear-always"}, "known_gbids[0]"},
		{"zero ttl", sampleConfig{KnownGbids: []string{"g1"}, Policy: "clear-always"}, "add_remove_ttl"},
		{"bad policy", sampleConfig{KnownGbids: []string{"g1"}, AddRemoveTTL: time.Second, Policy: "never"}, "policy"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.field) {
				t.Errorf("expected error to mention %q, got %q", tc.field, err.Error())
			}
		})
	}
}

func TestStructValidateUsesJSONNames(t *testing.T) {
	err := Validate(sampleRequest{})
	if err == nil || !strings.Contains(err.Error(), "domain: is required") {
		t.Errorf("expected json field name in message, got %v", err)
	}
}

func TestToSnakeCase(t *testing.T) {
	if got := toSnakeCase("ParticipantID"); got != "participant_i_d" {
		t.Errorf("unexpected snake case %q", got)
	}
	if got := toSnakeCase("Domain"); got != "domain" {
		t.Errorf("unexpected snake case %q", got)
	}
}
