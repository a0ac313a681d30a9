package app

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/cimillas/storefront-core/internal/domain"
)

type fakeChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]domain.OTPChallenge
}

func newFakeChallengeStore() *fakeChallengeStore {
	return &fakeChallengeStore{challenges: make(map[string]domain.OTPChallenge)}
}

func (f *fakeChallengeStore) Update(_ context.Context, key string, fn func(cur *domain.OTPChallenge) (domain.ChallengeChange, error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var cur *domain.OTPChallenge
	if c, ok := f.challenges[key]; ok {
		cur = &c
	}
	change, err := fn(cur)
	if err != nil {
		return err
	}
	switch {
	case change.Delete:
		delete(f.challenges, key)
	case change.Put != nil:
		f.challenges[key] = *change.Put
	}
	return nil
}

func (f *fakeChallengeStore) get(key string) (domain.OTPChallenge, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.challenges[key]
	return c, ok
}

type fakeSubjects struct {
	mu      sync.Mutex
	byPhone map[string]domain.Subject
	err     error
}

func newFakeSubjects() *fakeSubjects {
	return &fakeSubjects{byPhone: make(map[string]domain.Subject)}
}

func (f *fakeSubjects) FindOrCreateByPhone(_ context.Context, phoneKey string) (domain.Subject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.Subject{}, f.err
	}
	if s, ok := f.byPhone[phoneKey]; ok {
		return s, nil
	}
	s := domain.Subject{ID: "subj-" + phoneKey, PhoneKey: phoneKey}
	f.byPhone[phoneKey] = s
	return s, nil
}

type fakeIssuer struct {
	mu     sync.Mutex
	issued []string
	err    error
}

func (f *fakeIssuer) Issue(_ context.Context, subjectID string) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.Session{}, f.err
	}
	f.issued = append(f.issued, subjectID)
	return domain.Session{SubjectID: subjectID, AccessToken: "access", RefreshToken: "refresh"}, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
	block  bool
}

func (n *recordingNotifier) Notify(ctx context.Context, ev domain.Event) error {
	if n.block {
		<-ctx.Done()
		return ctx.Err()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

func (n *recordingNotifier) kinds() []domain.EventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.EventKind, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (n *recordingNotifier) last() domain.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.events[len(n.events)-1]
}

type fakeSessionRepo struct {
	mu        sync.Mutex
	sessions  map[string]domain.SessionRecord
	deleteErr error
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]domain.SessionRecord)}
}

func (f *fakeSessionRepo) CreateSession(_ context.Context, rec domain.SessionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[rec.ID] = rec
	return nil
}

func (f *fakeSessionRepo) GetSession(_ context.Context, id string) (*domain.SessionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.sessions[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (f *fakeSessionRepo) GetSessionByRefreshHash(_ context.Context, hash string) (*domain.SessionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.sessions {
		if rec.RefreshTokenHash == hash {
			r := rec
			return &r, nil
		}
	}
	return nil, nil
}

func (f *fakeSessionRepo) RotateRefresh(_ context.Context, id, oldHash, newHash string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.sessions[id]
	if !ok || rec.RefreshTokenHash != oldHash {
		return domain.ErrInvalidSession
	}
	rec.RefreshTokenHash = newHash
	rec.ExpiresAt = expiresAt
	f.sessions[id] = rec
	return nil
}

func (f *fakeSessionRepo) DeleteSession(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.sessions, id)
	return nil
}

type fakeCoupons struct {
	coupons map[string]domain.Coupon
	err     error
}

func (f *fakeCoupons) GetCoupon(_ context.Context, code string) (domain.Coupon, error) {
	if f.err != nil {
		return domain.Coupon{}, f.err
	}
	c, ok := f.coupons[code]
	if !ok {
		return domain.Coupon{}, domain.ErrCouponNotFound
	}
	return c, nil
}

// fakeOrderRepo serializes transactions with a single mutex, which is enough
// to model row locks for the service tests.
type fakeOrderRepo struct {
	mu       sync.Mutex
	orders   map[string]domain.Order
	numbers  map[string]bool
	captures map[string]domain.PaymentCapture
	// takenNumbers forces the next N CreateOrder calls to collide.
	takenNumbers int
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		orders:   make(map[string]domain.Order),
		numbers:  make(map[string]bool),
		captures: make(map[string]domain.PaymentCapture),
	}
}

func (f *fakeOrderRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	orders := make(map[string]domain.Order, len(f.orders))
	for k, v := range f.orders {
		orders[k] = v
	}
	captures := make(map[string]domain.PaymentCapture, len(f.captures))
	for k, v := range f.captures {
		captures[k] = v
	}
	if err := fn(ctx); err != nil {
		f.orders = orders
		f.captures = captures
		return err
	}
	return nil
}

func (f *fakeOrderRepo) CreateOrder(_ context.Context, order domain.Order) error {
	if f.takenNumbers > 0 {
		f.takenNumbers--
		return domain.ErrDuplicateOrderNumber
	}
	if f.numbers[order.OrderNumber] {
		return domain.ErrDuplicateOrderNumber
	}
	f.numbers[order.OrderNumber] = true
	f.orders[order.ID] = order
	return nil
}

func (f *fakeOrderRepo) GetOrder(_ context.Context, orderID string) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (f *fakeOrderRepo) GetOrderForUpdate(_ context.Context, orderID string) (domain.Order, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (f *fakeOrderRepo) UpdateOrderState(_ context.Context, order domain.Order) error {
	if _, ok := f.orders[order.ID]; !ok {
		return domain.ErrOrderNotFound
	}
	f.orders[order.ID] = order
	return nil
}

func (f *fakeOrderRepo) ListOrdersBySubject(_ context.Context, subjectID string, limit int) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Order
	for _, o := range f.orders {
		if o.SubjectID == subjectID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeOrderRepo) GetCaptureForUpdate(_ context.Context, reference string) (*domain.PaymentCapture, error) {
	c, ok := f.captures[reference]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeOrderRepo) BindCapture(_ context.Context, reference, orderID string) error {
	c, ok := f.captures[reference]
	if !ok {
		return domain.ErrCaptureNotFound
	}
	if c.OrderID != "" {
		return domain.ErrCaptureAlreadyUsed
	}
	c.OrderID = orderID
	f.captures[reference] = c
	return nil
}

func (f *fakeOrderRepo) put(o domain.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[o.ID] = o
}

func (f *fakeOrderRepo) addCapture(c domain.PaymentCapture) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captures[c.Reference] = c
}

var errBoom = errors.New("boom")
