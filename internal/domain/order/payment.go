package order

import "context"

// SessionLine is a display line forwarded to the payment provider's hosted
// checkout page. Amounts are settlement-currency minor units.
type SessionLine struct {
	Name        string
	Description string
	UnitCents   int64
	Quantity    int
}

// CreateSessionParams is the input for creating a hosted payment session.
// Metadata must carry the order ID: it is the only binding between the
// payment session and the order, and reconciliation depends on it.
type CreateSessionParams struct {
	Lines      []SessionLine
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

// PaymentSession is a created hosted checkout session.
type PaymentSession struct {
	ID  string
	URL string
}

// PaymentProvider abstracts the hosted-checkout payment service.
type PaymentProvider interface {
	CreateSession(ctx context.Context, params CreateSessionParams) (*PaymentSession, error)
	// RetrieveSession returns the provider's authoritative payment status for
	// a session, e.g. "paid" or "unpaid".
	RetrieveSession(ctx context.Context, sessionID string) (string, error)
}

// SessionPaid is the provider status value meaning payment completed.
const SessionPaid = "paid"
