package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/thieenjdev03/ecom-client-sub002/pkg/errors"
)

type sampleBody struct {
	Amount   string `json:"amount" validate:"required"`
	Currency string `json:"currency" validate:"required,iso4217"`
}

func decode(body string, allowEmpty bool) (sampleBody, error) {
	var dest sampleBody
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	err := DecodeJSONBody(httptest.NewRecorder(), req, &dest, allowEmpty)
	return dest, err
}

func TestDecodeJSONBody(t *testing.T) {
	dest, err := decode(`{"amount":"29.99","currency":"USD"}`, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dest.Amount != "29.99" || dest.Currency != "USD" {
		t.Fatalf("unexpected decode result %+v", dest)
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	_, err := decode(`{"amount":"1","currency":"USD","extra":true}`, false)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	_, err := decode(`{"amount":"","currency":"DOLLARS"}`, false)
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %T", typed.Details())
	}
	if details["amount"] != "is required" {
		t.Fatalf("unexpected amount detail %q", details["amount"])
	}
	if details["currency"] != "must be an ISO-4217 currency code" {
		t.Fatalf("unexpected currency detail %q", details["currency"])
	}
}

func TestDecodeJSONBodyEmpty(t *testing.T) {
	type optional struct {
		Code string `json:"code" validate:"omitempty,max=8"`
	}
	var dest optional
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	if err := DecodeJSONBody(httptest.NewRecorder(), req, &dest, true); err != nil {
		t.Fatalf("empty body should be allowed: %v", err)
	}
	if _, err := decode("", false); err == nil {
		t.Fatalf("empty body should be rejected when required")
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  INSTRUMENT_DECLINED  ", 0); got != "INSTRUMENT_DECLINED" {
		t.Fatalf("unexpected trim result %q", got)
	}
	if got := SanitizeString("abcdef", 3); got != "abc" {
		t.Fatalf("unexpected cap result %q", got)
	}
}
