package services

import (
	"context"
	"fmt"
	"time"

	"github.com/collab-platform/backend/internal/config"
	"github.com/collab-platform/backend/internal/events"
	"github.com/collab-platform/backend/internal/models"
	"github.com/collab-platform/backend/internal/payments"
	"github.com/collab-platform/backend/internal/push"
	"github.com/collab-platform/backend/internal/repositories"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// In-memory stand-ins for the pgx repos. They keep the same semantics the
// SQL enforces where a test depends on it: version CAS on the negotiation,
// zero-row guards on verify/release/refund, latest-row lookups.

type memState struct {
	neg       *models.Negotiation
	agreement *models.Agreement
	rounds    []models.NegotiationRound
	messages  []*models.Message
	orders    []*models.PaymentOrder
	holds     []*models.EscrowHold
	ledger    []*models.LedgerTransaction
	audits    []models.AuditLog
	settings  []*models.CommissionSetting
}

type fakeDB struct{}

func (fakeDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (fakeDB) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (fakeDB) Begin(context.Context) (pgx.Tx, error)                   { return fakeTx{}, nil }

type fakeTx struct{}

func (fakeTx) Begin(context.Context) (pgx.Tx, error) { return fakeTx{}, nil }
func (fakeTx) Commit(context.Context) error          { return nil }
func (fakeTx) Rollback(context.Context) error        { return nil }
func (fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (fakeTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (fakeTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (fakeTx) Conn() *pgx.Conn                                         { return nil }

type fakeNegStore struct{ st *memState }

func (f *fakeNegStore) Create(ctx context.Context, n *models.Negotiation) error {
	n.ID = uuid.New()
	n.StateVersion = 1
	cp := *n
	f.st.neg = &cp
	return nil
}

func (f *fakeNegStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Negotiation, error) {
	if f.st.neg == nil || f.st.neg.ID != id {
		return nil, pgx.ErrNoRows
	}
	cp := *f.st.neg
	return &cp, nil
}

func (f *fakeNegStore) GetBySubject(ctx context.Context, requesterID, providerID uuid.UUID, listingID, openCallID *uuid.UUID) (*models.Negotiation, error) {
	return nil, pgx.ErrNoRows
}

func (f *fakeNegStore) List(ctx context.Context, filter repositories.NegotiationFilter) ([]models.Negotiation, error) {
	return nil, nil
}

func (f *fakeNegStore) UpdateStateTx(ctx context.Context, q repositories.Querier, n *models.Negotiation, expectedVersion int64) error {
	if f.st.neg == nil || f.st.neg.StateVersion != expectedVersion {
		return repositories.ErrVersionConflict
	}
	cp := *n
	cp.StateVersion = expectedVersion + 1
	f.st.neg = &cp
	return nil
}

func (f *fakeNegStore) AppendRoundTx(ctx context.Context, q repositories.Querier, rd *models.NegotiationRound) error {
	rd.ID = uuid.New()
	f.st.rounds = append(f.st.rounds, *rd)
	return nil
}

func (f *fakeNegStore) CloseLatestRoundTx(ctx context.Context, q repositories.Querier, negotiationID uuid.UUID, outcome string) error {
	for i := len(f.st.rounds) - 1; i >= 0; i-- {
		if f.st.rounds[i].Outcome == models.RoundOutcomePending {
			f.st.rounds[i].Outcome = outcome
			return nil
		}
	}
	return nil
}

func (f *fakeNegStore) ListRounds(ctx context.Context, negotiationID uuid.UUID) ([]models.NegotiationRound, error) {
	return f.st.rounds, nil
}

func (f *fakeNegStore) LatestRoundAmount(ctx context.Context, negotiationID uuid.UUID) (int64, bool, error) {
	if len(f.st.rounds) == 0 {
		return 0, false, nil
	}
	return f.st.rounds[len(f.st.rounds)-1].AmountPaise, true, nil
}

type fakeAgreementStore struct{ st *memState }

func (f *fakeAgreementStore) CreateTx(ctx context.Context, q repositories.Querier, a *models.Agreement) error {
	a.ID = uuid.New()
	cp := *a
	f.st.agreement = &cp
	return nil
}

func (f *fakeAgreementStore) GetByNegotiation(ctx context.Context, negotiationID uuid.UUID) (*models.Agreement, error) {
	if f.st.agreement == nil || f.st.agreement.NegotiationID != negotiationID {
		return nil, pgx.ErrNoRows
	}
	cp := *f.st.agreement
	return &cp, nil
}

func (f *fakeAgreementStore) UpdateTx(ctx context.Context, q repositories.Querier, a *models.Agreement) error {
	cp := *a
	f.st.agreement = &cp
	return nil
}

type fakeMessageStore struct{ st *memState }

func (f *fakeMessageStore) InsertTx(ctx context.Context, q repositories.Querier, m *models.Message) error {
	m.ID = uuid.New()
	f.st.messages = append(f.st.messages, m)
	return nil
}

func (f *fakeMessageStore) ListByNegotiation(ctx context.Context, negotiationID uuid.UUID, limit, offset int) ([]models.Message, error) {
	var out []models.Message
	for _, m := range f.st.messages {
		out = append(out, *m)
	}
	return out, nil
}

func (f *fakeMessageStore) FindRecentAmountPaise(ctx context.Context, negotiationID uuid.UUID) (int64, bool, error) {
	return 0, false, nil
}

type fakePaymentStore struct{ st *memState }

func (f *fakePaymentStore) UpsertByGatewayOrderTx(ctx context.Context, q repositories.Querier, o *models.PaymentOrder) error {
	for _, existing := range f.st.orders {
		if existing.GatewayOrderID == o.GatewayOrderID {
			existing.AmountPaise = o.AmountPaise
			existing.Receipt = o.Receipt
			o.ID = existing.ID
			o.Status = existing.Status
			return nil
		}
	}
	o.ID = uuid.New()
	cp := *o
	f.st.orders = append(f.st.orders, &cp)
	return nil
}

func (f *fakePaymentStore) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.PaymentOrder, error) {
	for _, o := range f.st.orders {
		if o.GatewayOrderID == gatewayOrderID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakePaymentStore) GetLatestByNegotiation(ctx context.Context, negotiationID uuid.UUID) (*models.PaymentOrder, error) {
	for i := len(f.st.orders) - 1; i >= 0; i-- {
		if f.st.orders[i].NegotiationID == negotiationID {
			cp := *f.st.orders[i]
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakePaymentStore) MarkVerifiedTx(ctx context.Context, q repositories.Querier, id uuid.UUID, gatewayPaymentID, signature string) (bool, error) {
	for _, o := range f.st.orders {
		if o.ID == id {
			if o.Status == models.PaymentOrderStatusVerified {
				return false, nil
			}
			o.Status = models.PaymentOrderStatusVerified
			o.GatewayPaymentID = &gatewayPaymentID
			o.GatewaySignature = &signature
			return true, nil
		}
	}
	return false, nil
}

type fakeEscrowStore struct{ st *memState }

func (f *fakeEscrowStore) CreateTx(ctx context.Context, q repositories.Querier, h *models.EscrowHold) error {
	h.ID = uuid.New()
	h.CreatedAt = time.Now()
	cp := *h
	f.st.holds = append(f.st.holds, &cp)
	return nil
}

func (f *fakeEscrowStore) GetHeldByNegotiation(ctx context.Context, negotiationID uuid.UUID) (*models.EscrowHold, error) {
	for i := len(f.st.holds) - 1; i >= 0; i-- {
		h := f.st.holds[i]
		if h.NegotiationID == negotiationID && h.Status == models.EscrowStatusHeld {
			cp := *h
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeEscrowStore) GetUnrefundedByNegotiation(ctx context.Context, negotiationID uuid.UUID) (*models.EscrowHold, error) {
	for i := len(f.st.holds) - 1; i >= 0; i-- {
		h := f.st.holds[i]
		if h.NegotiationID == negotiationID && h.Status != models.EscrowStatusRefunded {
			cp := *h
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeEscrowStore) HasHeld(ctx context.Context, negotiationID uuid.UUID) (bool, error) {
	for _, h := range f.st.holds {
		if h.NegotiationID == negotiationID && h.Status == models.EscrowStatusHeld {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeEscrowStore) MarkReleasedTx(ctx context.Context, q repositories.Querier, id uuid.UUID, reason string) error {
	for _, h := range f.st.holds {
		if h.ID == id && h.Status == models.EscrowStatusHeld {
			h.Status = models.EscrowStatusReleased
			h.ReleaseReason = &reason
			return nil
		}
	}
	return repositories.ErrVersionConflict
}

func (f *fakeEscrowStore) MarkRefundedTx(ctx context.Context, q repositories.Querier, id uuid.UUID, reason string) error {
	for _, h := range f.st.holds {
		if h.ID == id && (h.Status == models.EscrowStatusHeld || h.Status == models.EscrowStatusReleased) {
			h.Status = models.EscrowStatusRefunded
			h.ReleaseReason = &reason
			return nil
		}
	}
	return repositories.ErrVersionConflict
}

type fakeLedgerStore struct{ st *memState }

func (f *fakeLedgerStore) InsertTx(ctx context.Context, q repositories.Querier, t *models.LedgerTransaction) error {
	t.ID = uuid.New()
	cp := *t
	f.st.ledger = append(f.st.ledger, &cp)
	return nil
}

func (f *fakeLedgerStore) ListByNegotiation(ctx context.Context, negotiationID uuid.UUID) ([]models.LedgerTransaction, error) {
	var out []models.LedgerTransaction
	for _, t := range f.st.ledger {
		if t.NegotiationID == negotiationID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeLedgerStore) CountByOrderStage(ctx context.Context, paymentOrderID uuid.UUID, stage string) (int, error) {
	n := 0
	for _, t := range f.st.ledger {
		if t.PaymentOrderID != nil && *t.PaymentOrderID == paymentOrderID && t.PaymentStage == stage {
			n++
		}
	}
	return n, nil
}

type fakeAuditStore struct{ st *memState }

func (f *fakeAuditStore) Log(ctx context.Context, entry models.AuditLog) error {
	f.st.audits = append(f.st.audits, entry)
	return nil
}

type fakeCommissionStore struct{ st *memState }

func (f *fakeCommissionStore) Latest(ctx context.Context) (*models.CommissionSetting, error) {
	if len(f.st.settings) == 0 {
		return nil, pgx.ErrNoRows
	}
	return f.st.settings[len(f.st.settings)-1], nil
}

func (f *fakeCommissionStore) Create(ctx context.Context, s *models.CommissionSetting) error {
	s.ID = uuid.New()
	f.st.settings = append(f.st.settings, s)
	return nil
}

type fakeUserStore struct{}

func (fakeUserStore) DeviceToken(ctx context.Context, id uuid.UUID) (*string, error) {
	return nil, nil
}

type fakeGateway struct {
	secret string
	calls  int
	err    error
}

func (g *fakeGateway) CreateOrder(ctx context.Context, amountPaise int64, currency, receipt string, notes map[string]string) (*payments.Order, error) {
	if g.err != nil {
		return nil, g.err
	}
	g.calls++
	return &payments.Order{
		ID:          fmt.Sprintf("order_fake_%d", g.calls),
		AmountPaise: amountPaise,
		Currency:    currency,
		Receipt:     receipt,
		Status:      "created",
	}, nil
}

func (g *fakeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return payments.VerifySignature(orderID, paymentID, signature, g.secret)
}

// fixture wires a NegotiationService onto the in-memory stores.
type fixture struct {
	st  *memState
	gw  *fakeGateway
	svc *NegotiationService
}

func newFixture() *fixture {
	st := &memState{}
	gw := &fakeGateway{secret: "test-secret"}
	cfg := &config.Config{
		Currency:            "INR",
		CommissionBPS:       1000,
		AdvanceBPS:          3000,
		MaxRevisionsDefault: 3,
	}
	log := zap.NewNop()
	commission := NewCommissionService(&fakeCommissionStore{st}, cfg, log)
	escrow := NewEscrowService(&fakeEscrowStore{st}, &fakeLedgerStore{st}, log)
	notifier := NewNotifier(events.NoopPublisher{}, events.NoopPresence{}, push.NoopSender{}, fakeUserStore{}, log)
	svc := NewNegotiationService(
		fakeDB{},
		&fakeNegStore{st}, &fakeAgreementStore{st}, &fakeMessageStore{st},
		&fakePaymentStore{st}, &fakeEscrowStore{st}, &fakeLedgerStore{st}, &fakeAuditStore{st},
		commission, escrow, gw, notifier, cfg, log,
	)
	return &fixture{st: st, gw: gw, svc: svc}
}

func (f *fixture) seedNegotiation(state string) *models.Negotiation {
	neg := &models.Negotiation{
		ID:           uuid.New(),
		RequesterID:  uuid.New(),
		ProviderID:   uuid.New(),
		FlowState:    state,
		AwaitingRole: models.StateAwaitingRole[state],
		MaxRevisions: 3,
		StateVersion: 1,
	}
	f.st.neg = neg
	return neg
}

func (f *fixture) seedAgreement(neg *models.Negotiation, finalPaise int64, status string) *models.Agreement {
	final := finalPaise
	ag := &models.Agreement{
		ID:                     uuid.New(),
		NegotiationID:          neg.ID,
		ProposedAmountPaise:    finalPaise,
		FinalAgreedAmountPaise: &final,
		Status:                 status,
	}
	f.st.agreement = ag
	return ag
}

func (f *fixture) seedOrder(neg *models.Negotiation, amountPaise int64, status string) *models.PaymentOrder {
	order := &models.PaymentOrder{
		ID:             uuid.New(),
		NegotiationID:  neg.ID,
		PayerID:        neg.ProviderID,
		PayeeID:        neg.RequesterID,
		AmountPaise:    amountPaise,
		Currency:       "INR",
		Status:         status,
		Receipt:        "rcpt_seed",
		GatewayOrderID: fmt.Sprintf("order_seed_%s", uuid.NewString()[:8]),
	}
	f.st.orders = append(f.st.orders, order)
	return order
}

func (f *fixture) seedHeldHold(neg *models.Negotiation, order *models.PaymentOrder) *models.EscrowHold {
	hold := &models.EscrowHold{
		ID:             uuid.New(),
		NegotiationID:  neg.ID,
		PaymentOrderID: order.ID,
		AmountPaise:    order.AmountPaise,
		Status:         models.EscrowStatusHeld,
		CreatedAt:      time.Now(),
	}
	f.st.holds = append(f.st.holds, hold)
	return hold
}
