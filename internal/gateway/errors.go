package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/thieenjdev03/ecom-client-sub002/internal/errorcatalog"
	"github.com/thieenjdev03/ecom-client-sub002/pkg/enums"
)

// GatewayError is the only error type the client returns for backend calls.
// NETWORK covers transport failures; BACKEND_REJECTED covers any non-2xx
// response or an unreadable success body. Neither is retried here.
type GatewayError struct {
	Kind         enums.GatewayErrorKind
	Op           string
	StatusCode   int
	ProviderCode string
	Err          error
}

func (e *GatewayError) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "gateway %s: %s", e.Op, e.Kind)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.ProviderCode != "" {
		fmt.Fprintf(&b, " [%s]", e.ProviderCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *GatewayError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// HTTPStatus is the backend status code, zero for transport failures.
func (e *GatewayError) HTTPStatus() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// ErrorCode is the opaque code surfaced through the error catalog.
func (e *GatewayError) ErrorCode() string {
	if e == nil {
		return errorcatalog.CodeNoErrorDetails
	}
	if e.ProviderCode != "" {
		return e.ProviderCode
	}
	if e.Kind == enums.GatewayErrorNetwork {
		return errorcatalog.CodeNetworkError
	}
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errorcatalog.CodeAuthRequired
	}
	return errorcatalog.CodeBackendRejected
}

// IsNetwork reports whether err is a transport-level gateway failure.
func IsNetwork(err error) bool {
	var gwErr *GatewayError
	return errors.As(err, &gwErr) && gwErr.Kind == enums.GatewayErrorNetwork
}

// ErrorCode extracts the catalog code for any error returned by the client.
func ErrorCode(err error) string {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.ErrorCode()
	}
	return errorcatalog.CodeNoErrorDetails
}

func networkError(op string, err error) *GatewayError {
	return &GatewayError{Kind: enums.GatewayErrorNetwork, Op: op, Err: err}
}

func rejectedError(op string, status int, body []byte, err error) *GatewayError {
	return &GatewayError{
		Kind:         enums.GatewayErrorBackendRejected,
		Op:           op,
		StatusCode:   status,
		ProviderCode: providerCode(body),
		Err:          err,
	}
}

// providerCode digs a provider error code out of the backend's error body.
// Accepted shapes:
//
//	{"error":{"code":"X"}}  {"code":"X"}  {"details":[{"issue":"X"}]}  {"name":"X"}
func providerCode(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var payload struct {
		Code  string          `json:"code"`
		Name  string          `json:"name"`
		Error json.RawMessage `json:"error"`
		// PayPal error bodies relayed by the backend.
		Details []struct {
			Issue string `json:"issue"`
		} `json:"details"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if len(payload.Error) > 0 {
		var nested struct {
			Code string `json:"code"`
		}
		if json.Unmarshal(payload.Error, &nested) == nil && validCode(nested.Code) {
			return nested.Code
		}
	}
	for _, d := range payload.Details {
		if validCode(d.Issue) {
			return d.Issue
		}
	}
	if validCode(payload.Code) {
		return payload.Code
	}
	if validCode(payload.Name) {
		return payload.Name
	}
	return ""
}

// validCode accepts SCREAMING_SNAKE identifiers only, so free-form messages
// are never mistaken for codes.
func validCode(value string) bool {
	if value == "" || len(value) > 64 {
		return false
	}
	for _, r := range value {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return true
}
