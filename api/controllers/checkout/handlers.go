package checkout

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/thieenjdev03/ecom-client-sub002/api/responses"
	"github.com/thieenjdev03/ecom-client-sub002/api/validators"
	"github.com/thieenjdev03/ecom-client-sub002/internal/button"
	checkoutsvc "github.com/thieenjdev03/ecom-client-sub002/internal/checkout"
	"github.com/thieenjdev03/ecom-client-sub002/internal/payment"
	pkgerrors "github.com/thieenjdev03/ecom-client-sub002/pkg/errors"
	"github.com/thieenjdev03/ecom-client-sub002/pkg/logger"
)

const sessionIDParam = "sessionId"

// CreateSession handles POST /api/v1/checkout/sessions.
func CreateSession(reg *Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createSessionRequest
		if err := validators.DecodeJSONBody(w, r, &req, false); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		money, err := payment.ParseMoney(req.Amount, req.Currency)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error()))
			return
		}

		e, err := reg.start(r.Context(), startInput{Money: money, Cart: req.Cart, Contact: req.Contact})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, e.session.Snapshot())
	}
}

// GetSession handles GET /api/v1/checkout/sessions/{sessionId}.
func GetSession(reg *Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := reg.get(chi.URLParam(r, sessionIDParam))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, e.session.Snapshot())
	}
}

// ApproveSession relays the widget's approval and captures the order.
func ApproveSession(reg *Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req approveRequest
		if err := validators.DecodeJSONBody(w, r, &req, true); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		relayCallback(reg, logg, w, r, func(cb checkoutsvc.Callbacks) error {
			return cb.Approve(r.Context(), req.OrderID)
		})
	}
}

// CancelSession relays the buyer dismissing the widget.
func CancelSession(reg *Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		relayCallback(reg, logg, w, r, func(cb checkoutsvc.Callbacks) error {
			return cb.Cancel(r.Context())
		})
	}
}

// FailSession relays the widget's error callback.
func FailSession(reg *Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req widgetErrorRequest
		if err := validators.DecodeJSONBody(w, r, &req, true); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		code := validators.SanitizeString(req.Code, 64)
		relayCallback(reg, logg, w, r, func(cb checkoutsvc.Callbacks) error {
			return cb.Fail(r.Context(), code)
		})
	}
}

// RecheckSession polls a timed-out order again.
func RecheckSession(reg *Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := reg.get(chi.URLParam(r, sessionIDParam))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		select {
		case <-e.done:
		default:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeConflict, "checkout attempt still in progress"))
			return
		}
		if _, err := e.session.Recheck(r.Context(), ""); err != nil {
			responses.WriteError(r.Context(), logg, w, sessionError(err))
			return
		}
		responses.WriteSuccess(w, e.session.Snapshot())
	}
}

// AbortSession handles DELETE /api/v1/checkout/sessions/{sessionId}.
func AbortSession(reg *Registry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := reg.abort(r.Context(), chi.URLParam(r, sessionIDParam))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snap)
	}
}

// relayCallback forwards one widget callback and answers with the session
// state once the attempt settled or the wait elapsed.
func relayCallback(reg *Registry, logg *logger.Logger, w http.ResponseWriter, r *http.Request, call func(checkoutsvc.Callbacks) error) {
	e, err := reg.get(chi.URLParam(r, sessionIDParam))
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	cb, err := e.relay.callbacks()
	if err != nil {
		responses.WriteError(r.Context(), logg, w, sessionError(err))
		return
	}
	if err := call(cb); err != nil && isRejection(err) {
		responses.WriteError(r.Context(), logg, w, sessionError(err))
		return
	}
	reg.settle(r.Context(), e)
	responses.WriteSuccess(w, e.session.Snapshot())
}

// isRejection separates refused callbacks from backend failures, which
// the session already reports through its outcome.
func isRejection(err error) bool {
	return errors.Is(err, button.ErrBusy) ||
		errors.Is(err, button.ErrInvalidTransition) ||
		errors.Is(err, button.ErrOrderMismatch) ||
		errors.Is(err, errWidgetNotReady)
}

func sessionError(err error) error {
	switch {
	case errors.Is(err, button.ErrBusy), errors.Is(err, checkoutsvc.ErrCheckoutInFlight):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "checkout is busy")
	case errors.Is(err, button.ErrOrderMismatch):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "approval does not match the session's order")
	case errors.Is(err, button.ErrInvalidTransition), errors.Is(err, errWidgetNotReady), errors.Is(err, checkoutsvc.ErrNoOrder):
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, err.Error())
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checkout callback failed")
}
