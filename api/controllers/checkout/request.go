package checkout

import (
	checkoutsvc "github.com/thieenjdev03/ecom-client-sub002/internal/checkout"
)

type createSessionRequest struct {
	Amount   string               `json:"amount" validate:"required,max=32"`
	Currency string               `json:"currency" validate:"required,len=3"`
	Cart     *checkoutsvc.Cart    `json:"cart,omitempty"`
	Contact  *checkoutsvc.Contact `json:"contact,omitempty"`
}

type approveRequest struct {
	OrderID string `json:"order_id" validate:"omitempty,max=64"`
}

type widgetErrorRequest struct {
	Code string `json:"code" validate:"omitempty,max=64"`
}
