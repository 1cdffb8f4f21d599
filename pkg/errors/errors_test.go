package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized},
		{code: CodeNotFound, status: http.StatusNotFound},
		{code: CodeConflict, status: http.StatusConflict},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, detailsOK: true},
		{code: CodeIdempotency, status: http.StatusConflict, detailsOK: true},
		{code: CodeTimeout, status: http.StatusGatewayTimeout, retryable: true},
		{code: CodeInternal, status: http.StatusInternalServerError, retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage == "" {
			t.Fatalf("code %s has no public message", tt.code)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestPublicMessage(t *testing.T) {
	if got := New(CodeNotFound, "no such session").PublicMessage(); got != "no such session" {
		t.Fatalf("caller message should be shown for not found, got %q", got)
	}
	if got := New(CodeNotFound, "").PublicMessage(); got != MetadataFor(CodeNotFound).PublicMessage {
		t.Fatalf("empty message should fall back, got %q", got)
	}
	if got := Wrap(CodeInternal, stdErrors.New("dial tcp: refused"), "create order").PublicMessage(); got != "internal server error" {
		t.Fatalf("internal errors must hide their message, got %q", got)
	}
	var nilErr *Error
	if got := nilErr.PublicMessage(); got != "internal server error" {
		t.Fatalf("nil error should render as internal, got %q", got)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing amount")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing amount" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}
	if base.Retryable() {
		t.Fatalf("validation errors are not retryable")
	}

	base.WithDetails(map[string]any{"field": "amount"})
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Error() != "CONFLICT: ctx: boom" {
		t.Fatalf("unexpected error text %q", wrapped.Error())
	}
}

func TestAsAndCodeOf(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeNotFound, "no session"))
	if got := As(err); got == nil || got.Code() != CodeNotFound {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
	if CodeOf(err) != CodeNotFound {
		t.Fatalf("CodeOf should see through wrapping")
	}
	if CodeOf(stdErrors.New("plain")) != CodeInternal {
		t.Fatalf("untyped errors are internal")
	}
}

type fakeUpstream struct{}

func (fakeUpstream) Error() string     { return "backend said no" }
func (fakeUpstream) HTTPStatus() int   { return http.StatusUnprocessableEntity }
func (fakeUpstream) ErrorCode() string { return "INSTRUMENT_DECLINED" }

func TestDumpCapturesChainAndUpstream(t *testing.T) {
	err := Wrap(CodeDependency, fakeUpstream{}, "create order")
	dump := Dump(err)

	if dump.Code != CodeDependency {
		t.Fatalf("expected dependency code, got %s", dump.Code)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected two chain entries, got %v", dump.Chain)
	}
	if dump.UpstreamStatus != http.StatusUnprocessableEntity || dump.UpstreamCode != "INSTRUMENT_DECLINED" {
		t.Fatalf("unexpected upstream details %+v", dump)
	}
	if Dump(nil).TopMessage != "" {
		t.Fatalf("nil error should dump empty")
	}
}
