package checkout

import "context"

// Callbacks are the hooks a widget invokes while the buyer interacts with it.
// *button.Controller satisfies it.
type Callbacks interface {
	Approve(ctx context.Context, orderID string) error
	Cancel(ctx context.Context) error
	Fail(ctx context.Context, code string) error
}

// Widget shows the provider's payment UI for a created order. Present must
// not block on the buyer; the widget reports back through cb.
type Widget interface {
	Present(ctx context.Context, orderID string, cb Callbacks) error
}

// WidgetFunc adapts a function to Widget.
type WidgetFunc func(ctx context.Context, orderID string, cb Callbacks) error

func (f WidgetFunc) Present(ctx context.Context, orderID string, cb Callbacks) error {
	return f(ctx, orderID, cb)
}
