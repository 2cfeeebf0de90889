package refund_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/frahmantamala/refund-management/internal"
	refundDatamodel "github.com/frahmantamala/refund-management/internal/core/datamodel/refund"
	"github.com/frahmantamala/refund-management/internal/core/events"
	"github.com/frahmantamala/refund-management/internal/payment"
	"github.com/frahmantamala/refund-management/internal/refund"
	"github.com/shopspring/decimal"
)

// MockRepository is an in-memory refund.RepositoryAPI with the same
// conditional update semantics as the gorm store.
type MockRepository struct {
	mu      sync.Mutex
	rows    map[int64]refundDatamodel.Refund
	nextID  int64
	failErr error
	markErr error
	updates int
}

func NewMockRepository() *MockRepository {
	return &MockRepository{rows: make(map[int64]refundDatamodel.Refund)}
}

func (m *MockRepository) SetShouldFail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

// FailReconciledMarks makes updates that set reconciled_at fail with err.
func (m *MockRepository) FailReconciledMarks(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markErr = err
}

func (m *MockRepository) UpdateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updates
}

func (m *MockRepository) Create(ctx context.Context, rec *refundDatamodel.Refund) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.nextID++
	rec.ID = m.nextID
	m.rows[rec.ID] = *rec
	return nil
}

func (m *MockRepository) Update(ctx context.Context, rec *refundDatamodel.Refund, expectedStatus string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	current, ok := m.rows[rec.ID]
	if !ok {
		return internal.ErrRefundNotFound
	}
	if current.Status != expectedStatus {
		return internal.ErrConcurrentUpdate
	}
	if m.markErr != nil && current.ReconciledAt == nil && rec.ReconciledAt != nil {
		return m.markErr
	}
	m.rows[rec.ID] = *rec
	m.updates++
	return nil
}

func (m *MockRepository) GetByID(ctx context.Context, id int64) (*refundDatamodel.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	rec, ok := m.rows[id]
	if !ok {
		return nil, internal.ErrRefundNotFound
	}
	return &rec, nil
}

func (m *MockRepository) list(keep func(refundDatamodel.Refund) bool) ([]*refundDatamodel.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	var out []*refundDatamodel.Refund
	for _, rec := range m.rows {
		if keep(rec) {
			rec := rec
			out = append(out, &rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].RequestedAt.Before(out[j].RequestedAt)
	})
	return out, nil
}

func (m *MockRepository) ListByStatus(ctx context.Context, status string) ([]*refundDatamodel.Refund, error) {
	return m.list(func(r refundDatamodel.Refund) bool { return r.Status == status })
}

func (m *MockRepository) ListAll(ctx context.Context) ([]*refundDatamodel.Refund, error) {
	return m.list(func(refundDatamodel.Refund) bool { return true })
}

func (m *MockRepository) ListByPayment(ctx context.Context, paymentID int64) ([]*refundDatamodel.Refund, error) {
	return m.list(func(r refundDatamodel.Refund) bool { return r.PaymentID == paymentID })
}

func (m *MockRepository) ListRequestedBetween(ctx context.Context, start, end time.Time) ([]*refundDatamodel.Refund, error) {
	return m.list(func(r refundDatamodel.Refund) bool {
		return !r.RequestedAt.Before(start) && r.RequestedAt.Before(end)
	})
}

func (m *MockRepository) ListUnreconciled(ctx context.Context, limit int) ([]*refundDatamodel.Refund, error) {
	recs, err := m.list(func(r refundDatamodel.Refund) bool {
		return r.Status == string(refund.StatusCompleted) && r.ReconciledAt == nil
	})
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// MockPaymentGateway keeps payments in memory. The first failWrites status
// writes fail with errGatewayDown.
type MockPaymentGateway struct {
	mu         sync.Mutex
	payments   map[int64]*payment.Payment
	failWrites int
	failReads  bool
	writes     []payment.Status
}

var errGatewayDown = errors.New("gateway connection refused")

func NewMockPaymentGateway() *MockPaymentGateway {
	return &MockPaymentGateway{payments: make(map[int64]*payment.Payment)}
}

func (m *MockPaymentGateway) AddPayment(id int64, total string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[id] = &payment.Payment{ID: id, Total: decimal.RequireFromString(total), Status: payment.StatusPaid}
}

func (m *MockPaymentGateway) FailWrites(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrites = n
}

func (m *MockPaymentGateway) FailReads(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failReads = fail
}

func (m *MockPaymentGateway) Status(id int64) payment.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.payments[id].Status
}

func (m *MockPaymentGateway) Writes() []payment.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]payment.Status(nil), m.writes...)
}

func (m *MockPaymentGateway) GetPayment(ctx context.Context, id int64) (*payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failReads {
		return nil, errGatewayDown
	}
	p, ok := m.payments[id]
	if !ok {
		return nil, internal.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPaymentGateway) SetPaymentStatus(ctx context.Context, id int64, status payment.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites > 0 {
		m.failWrites--
		return errGatewayDown
	}
	p, ok := m.payments[id]
	if !ok {
		return internal.ErrPaymentNotFound
	}
	p.Status = status
	m.writes = append(m.writes, status)
	return nil
}

// RecordingPublisher captures published events synchronously.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *RecordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *RecordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, len(p.events))
	for i, e := range p.events {
		types[i] = e.EventType()
	}
	return types
}
