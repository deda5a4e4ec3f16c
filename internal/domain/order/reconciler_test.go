package order

import (
	"context"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dinetab/dinetab/internal/domain/voucher"
	"github.com/dinetab/dinetab/internal/notify"
)

func pendingOrder(id, ref, voucherCode string) *Order {
	return &Order{
		ID:            id,
		CustomerName:  "Ayesha",
		TableNumber:   "1",
		Items:         []Item{{ProductID: "p1", Name: "Karahi", UnitPriceCents: 6000, Quantity: 1, LineTotalCents: 6000}},
		SubtotalCents: 6000,
		TotalCents:    6000,
		Status:        StatusNew,
		PaymentStatus: PaymentPending,
		PaymentRef:    ref,
		VoucherCode:   voucherCode,
	}
}

type reconcilerFixture struct {
	orders    *mockOrderRepo
	vouchers  *mockVoucherRepo
	payments  *mockPaymentProvider
	publisher *mockPublisher
	rec       *Reconciler
}

func newReconcilerFixture(t *testing.T, o *Order) *reconcilerFixture {
	t.Helper()
	f := &reconcilerFixture{
		orders:    &mockOrderRepo{created: []*Order{o}},
		vouchers:  &mockVoucherRepo{byCode: map[string]*voucher.Voucher{}},
		payments:  &mockPaymentProvider{status: SessionPaid},
		publisher: &mockPublisher{},
	}
	f.rec = NewReconciler(f.orders, f.vouchers, f.payments, f.publisher)
	return f
}

func assertPaidBroadcasts(t *testing.T, evs []publishedEvent, orderID string) {
	t.Helper()
	require.Len(t, evs, 3)

	seen := map[string]string{}
	for _, ev := range evs {
		seen[ev.event] = ev.channel
	}
	assert.Equal(t, notify.ChannelKitchen, seen[notify.EventKitchenPaid])
	assert.Equal(t, notify.ChannelAdmin, seen[notify.EventOrderPaid])
	assert.Equal(t, notify.OrderChannel(orderID), seen[notify.EventPaid])
}

func TestReconciler_ConfirmByID_Transitions(t *testing.T) {
	f := newReconcilerFixture(t, pendingOrder("o1", "cs_1", ""))

	outcome, err := f.rec.ConfirmByID(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, OutcomePaid, outcome)

	stored, err := f.orders.GetByID(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, stored.PaymentStatus)
	assert.Equal(t, StatusConfirmed, stored.Status)

	assertPaidBroadcasts(t, f.publisher.events(), "o1")
}

func TestReconciler_ConfirmByPaymentRef(t *testing.T) {
	f := newReconcilerFixture(t, pendingOrder("o1", "cs_1", ""))

	outcome, err := f.rec.ConfirmByPaymentRef(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.Equal(t, OutcomePaid, outcome)
}

func TestReconciler_ProviderReportsUnpaid(t *testing.T) {
	f := newReconcilerFixture(t, pendingOrder("o1", "cs_1", ""))
	f.payments.status = "unpaid"

	outcome, err := f.rec.ConfirmByID(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, OutcomePending, outcome)

	stored, _ := f.orders.GetByID(context.Background(), "o1")
	assert.Equal(t, PaymentPending, stored.PaymentStatus)
	assert.Empty(t, f.publisher.events())
}

func TestReconciler_Idempotent(t *testing.T) {
	f := newReconcilerFixture(t, pendingOrder("o1", "cs_1", ""))

	first, err := f.rec.ConfirmByID(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, OutcomePaid, first)

	// Second attempt for the already-PAID order: no state change, no
	// duplicate broadcast.
	second, err := f.rec.ConfirmByID(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyPaid, second)

	assertPaidBroadcasts(t, f.publisher.events(), "o1")
}

func TestReconciler_WebhookAndPollRace(t *testing.T) {
	// Webhook and client poll both observe provider-status=paid for the same
	// PENDING order. Exactly one transition, at most one set of broadcasts.
	f := newReconcilerFixture(t, pendingOrder("o1", "cs_1", ""))

	var wg sync.WaitGroup
	outcomes := make([]Outcome, 2)
	errs := make([]error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		outcomes[0], errs[0] = f.rec.ConfirmByPaymentRef(context.Background(), "cs_1")
	}()
	go func() {
		defer wg.Done()
		outcomes[1], errs[1] = f.rec.ConfirmByID(context.Background(), "o1")
	}()
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	paid := 0
	for _, o := range outcomes {
		if o == OutcomePaid {
			paid++
		}
	}
	assert.Equal(t, 1, paid, "exactly one signal wins the transition")
	assertPaidBroadcasts(t, f.publisher.events(), "o1")
}

func TestReconciler_RedeemsVoucherOnce(t *testing.T) {
	f := newReconcilerFixture(t, pendingOrder("o1", "cs_1", "WELCOME20"))
	f.vouchers.byCode["WELCOME20"] = &voucher.Voucher{
		Code: "WELCOME20", Active: true, UsageLimit: 5, UsedCount: 0,
	}

	_, err := f.rec.ConfirmByID(context.Background(), "o1")
	require.NoError(t, err)

	_, err = f.rec.ConfirmByID(context.Background(), "o1")
	require.NoError(t, err)

	assert.Equal(t, 1, f.vouchers.byCode["WELCOME20"].UsedCount)
}

func TestReconciler_ConcurrentRedemptionRespectsLimit(t *testing.T) {
	// Two orders share the last remaining use of a voucher. Both payments
	// confirm concurrently; used count must not exceed the limit.
	o1 := pendingOrder("o1", "cs_1", "LAST1")
	o2 := pendingOrder("o2", "cs_2", "LAST1")

	orders := &mockOrderRepo{created: []*Order{o1, o2}}
	vouchers := &mockVoucherRepo{byCode: map[string]*voucher.Voucher{
		"LAST1": {Code: "LAST1", Active: true, UsageLimit: 1, UsedCount: 0},
	}}
	payments := &mockPaymentProvider{status: SessionPaid}
	publisher := &mockPublisher{}
	rec := NewReconciler(orders, vouchers, payments, publisher)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = rec.ConfirmByID(context.Background(), "o1")
	}()
	go func() {
		defer wg.Done()
		_, _ = rec.ConfirmByID(context.Background(), "o2")
	}()
	wg.Wait()

	assert.Equal(t, 1, vouchers.byCode["LAST1"].UsedCount)
}

func TestReconciler_ProviderLookupFailureDropsSignal(t *testing.T) {
	f := newReconcilerFixture(t, pendingOrder("o1", "cs_1", ""))
	f.payments.retrieveErr = errors.New("provider timeout")

	_, err := f.rec.ConfirmByID(context.Background(), "o1")

	var pse *PaymentServiceError
	require.ErrorAs(t, err, &pse)
	assert.Equal(t, "retrieve_session", pse.Step)

	// State untouched; the complementary signal retries later.
	stored, _ := f.orders.GetByID(context.Background(), "o1")
	assert.Equal(t, PaymentPending, stored.PaymentStatus)
	assert.Empty(t, f.publisher.events())
}

func TestReconciler_ConfirmWithSessionRepairsMissingRef(t *testing.T) {
	// Checkout persisted the order but failed to record the payment ref. The
	// session metadata still names the order, so confirmation via the event's
	// session ID must repair the ref and complete the transition.
	f := newReconcilerFixture(t, pendingOrder("o1", "", ""))

	outcome, err := f.rec.ConfirmWithSession(context.Background(), "o1", "cs_1")
	require.NoError(t, err)
	assert.Equal(t, OutcomePaid, outcome)

	stored, err := f.orders.GetByID(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, "cs_1", stored.PaymentRef)
	assert.Equal(t, PaymentPaid, stored.PaymentStatus)
	assertPaidBroadcasts(t, f.publisher.events(), "o1")

	// The repaired ref makes the order resolvable by session from now on.
	second, err := f.rec.ConfirmByPaymentRef(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyPaid, second)
}

func TestReconciler_ConfirmWithSessionKeepsStoredRef(t *testing.T) {
	f := newReconcilerFixture(t, pendingOrder("o1", "cs_1", ""))

	outcome, err := f.rec.ConfirmWithSession(context.Background(), "o1", "cs_other")
	require.NoError(t, err)
	assert.Equal(t, OutcomePaid, outcome)

	stored, _ := f.orders.GetByID(context.Background(), "o1")
	assert.Equal(t, "cs_1", stored.PaymentRef, "an already-recorded ref is authoritative")
}

func TestReconciler_MissingPaymentRef(t *testing.T) {
	o := pendingOrder("o1", "", "")
	f := newReconcilerFixture(t, o)

	_, err := f.rec.ConfirmByID(context.Background(), "o1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no payment reference")
}

func TestReconciler_UnknownOrder(t *testing.T) {
	f := newReconcilerFixture(t, pendingOrder("o1", "cs_1", ""))

	_, err := f.rec.ConfirmByID(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.rec.ConfirmByPaymentRef(context.Background(), "cs_ghost")
	require.ErrorIs(t, err, ErrNotFound)
}
