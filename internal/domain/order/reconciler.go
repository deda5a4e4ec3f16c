package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dinetab/dinetab/internal/domain/voucher"
	"github.com/dinetab/dinetab/internal/notify"
)

// Reconciler brings an order's recorded payment state in line with the
// payment provider's authoritative state. The provider webhook and the
// customer's client poll both funnel into the same path, so neither signal's
// timing matters: the conditional PENDING-to-PAID update picks exactly one
// winner, and only the winner broadcasts.
type Reconciler struct {
	orders    Repository
	vouchers  voucher.Repository
	payments  PaymentProvider
	publisher notify.Publisher
}

// NewReconciler creates a Reconciler with its collaborators.
func NewReconciler(
	orders Repository,
	vouchers voucher.Repository,
	payments PaymentProvider,
	publisher notify.Publisher,
) *Reconciler {
	return &Reconciler{
		orders:    orders,
		vouchers:  vouchers,
		payments:  payments,
		publisher: publisher,
	}
}

// Outcome reports what a reconciliation attempt observed and did.
type Outcome string

const (
	// OutcomePaid means this attempt won the PENDING-to-PAID transition and
	// broadcast the paid events.
	OutcomePaid Outcome = "PAID"
	// OutcomeAlreadyPaid means the order was paid before this attempt; no
	// state change, no broadcast.
	OutcomeAlreadyPaid Outcome = "ALREADY_PAID"
	// OutcomePending means the provider does not report the session as paid
	// yet. The complementary signal retries later.
	OutcomePending Outcome = "PENDING"
)

// ConfirmByID reconciles the order with the given ID. Used by the client
// poll, which knows the order it is waiting on.
func (r *Reconciler) ConfirmByID(ctx context.Context, orderID string) (Outcome, error) {
	o, err := r.orders.GetByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	return r.confirm(ctx, o)
}

// ConfirmByPaymentRef reconciles the order linked to the given payment
// session. Used by the webhook, which only knows the session.
func (r *Reconciler) ConfirmByPaymentRef(ctx context.Context, sessionID string) (Outcome, error) {
	o, err := r.orders.GetByPaymentRef(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return r.confirm(ctx, o)
}

// ConfirmWithSession reconciles the order named by the payment session's
// metadata. Used by the webhook when no order carries the session as its
// payment ref: checkout records the ref after creating the session, and if
// that write failed the metadata is the only remaining link. The missing ref
// is repaired here so later polls and webhooks resolve normally.
func (r *Reconciler) ConfirmWithSession(ctx context.Context, orderID, sessionID string) (Outcome, error) {
	o, err := r.orders.GetByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	if o.PaymentRef == "" && sessionID != "" {
		if err := r.orders.SetPaymentRef(ctx, o.ID, sessionID); err != nil {
			return "", errors.Wrap(err, "repair payment ref")
		}
		o.PaymentRef = sessionID
	}
	return r.confirm(ctx, o)
}

// confirm performs one idempotent reconciliation attempt: ask the provider
// for the session's authoritative status, and only on "paid" try the
// conditional transition. A transient provider failure drops this attempt;
// the other signal is the retry mechanism.
func (r *Reconciler) confirm(ctx context.Context, o *Order) (Outcome, error) {
	if o.PaymentStatus == PaymentPaid {
		return OutcomeAlreadyPaid, nil
	}
	if o.PaymentRef == "" {
		return "", errors.Errorf("order %s has no payment reference", o.ID)
	}

	status, err := r.payments.RetrieveSession(ctx, o.PaymentRef)
	if err != nil {
		return "", &PaymentServiceError{Step: "retrieve_session", Err: err}
	}
	if status != SessionPaid {
		return OutcomePending, nil
	}

	won, err := r.orders.MarkPaid(ctx, o.ID)
	if err != nil {
		return "", errors.Wrap(err, "mark order paid")
	}
	if !won {
		// A concurrent signal got there first and has already notified.
		return OutcomeAlreadyPaid, nil
	}

	o.PaymentStatus = PaymentPaid
	o.Status = StatusConfirmed

	r.redeemVoucher(ctx, o)
	r.broadcastPaid(ctx, o)

	return OutcomePaid, nil
}

// redeemVoucher consumes one use of the order's voucher, exactly once per
// confirmed order: only the transition winner reaches this point. The
// increment is conditional on remaining capacity so concurrent redemptions
// of the last unit cannot overshoot the limit.
func (r *Reconciler) redeemVoucher(ctx context.Context, o *Order) {
	if o.VoucherCode == "" {
		return
	}
	lg := zctx.From(ctx)
	if err := r.vouchers.Redeem(ctx, o.VoucherCode); err != nil {
		if errors.Is(err, voucher.ErrExhausted) {
			// The customer already paid; the order stands. Flag for review
			// rather than failing the confirmation.
			lg.Warn("Voucher exhausted at redemption time",
				zap.String("order_id", o.ID), zap.String("code", o.VoucherCode))
			return
		}
		lg.Error("Voucher redemption failed",
			zap.String("order_id", o.ID), zap.String("code", o.VoucherCode), zap.Error(err))
	}
}

// broadcastPaid publishes the three paid events: kitchen detail, admin status
// change, and the customer's order channel. All best-effort and concurrent;
// the relay delivers at least once and failures are logged, not returned.
func (r *Reconciler) broadcastPaid(ctx context.Context, o *Order) {
	lg := zctx.From(ctx)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.publisher.Publish(ctx, notify.ChannelKitchen, notify.EventKitchenPaid, notify.KitchenOrderEvent{
			OrderID:      o.ID,
			CustomerName: o.CustomerName,
			TableNumber:  o.TableNumber,
			Phone:        o.CustomerPhone,
			Email:        o.CustomerEmail,
			Items:        eventItems(o.Items),
			TotalCents:   o.TotalCents,
			OrderNotes:   o.OrderNotes,
			CreatedAt:    o.CreatedAt,
		})
	})
	g.Go(func() error {
		return r.publisher.Publish(ctx, notify.ChannelAdmin, notify.EventOrderPaid, notify.StatusChangedEvent{
			OrderID:       o.ID,
			Status:        string(StatusConfirmed),
			PaymentStatus: string(PaymentPaid),
		})
	})
	g.Go(func() error {
		return r.publisher.Publish(ctx, notify.OrderChannel(o.ID), notify.EventPaid, notify.PaidEvent{
			OrderID: o.ID,
			Status:  string(PaymentPaid),
		})
	})

	if err := g.Wait(); err != nil {
		lg.Warn("Failed to broadcast paid events",
			zap.String("order_id", o.ID), zap.Error(err))
	}
}
