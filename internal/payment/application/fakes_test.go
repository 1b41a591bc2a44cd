package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	coursedomain "github.com/learnhub/settlement/internal/course/domain"
	"github.com/learnhub/settlement/internal/payment/domain"
)

// fakePaymentStore mimics the postgres conditional-update semantics,
// including the gate: exactly one CompleteWithOutbox call per session
// observes the pending→completed flip.
type fakePaymentStore struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*domain.Payment
	outbox   []fakeOutboxEvent
}

type fakeOutboxEvent struct {
	aggregateID string
	eventType   string
	payload     []byte
}

func newFakePaymentStore() *fakePaymentStore {
	return &fakePaymentStore{payments: map[uuid.UUID]*domain.Payment{}}
}

func (s *fakePaymentStore) CreatePending(ctx context.Context, p domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.payments {
		if existing.ExternalSessionID == p.ExternalSessionID {
			return fmt.Errorf("duplicate session id %s", p.ExternalSessionID)
		}
	}
	cp := p
	s.payments[p.ID] = &cp
	return nil
}

func (s *fakePaymentStore) GetByID(ctx context.Context, id uuid.UUID) (domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return domain.Payment{}, domain.ErrNotFound
	}
	return *p, nil
}

func (s *fakePaymentStore) GetBySessionID(ctx context.Context, sessionID string) (domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.bySession(sessionID)
	if p == nil {
		return domain.Payment{}, domain.ErrNotFound
	}
	return *p, nil
}

func (s *fakePaymentStore) CompleteWithOutbox(ctx context.Context, sessionID, eventType string, payload []byte, headers map[string]string, traceparent string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.bySession(sessionID)
	if p == nil || p.Status != domain.StatusPending {
		return false, nil
	}
	p.Status = domain.StatusCompleted
	s.outbox = append(s.outbox, fakeOutboxEvent{aggregateID: p.ID.String(), eventType: eventType, payload: payload})
	return true, nil
}

func (s *fakePaymentStore) FailIfPending(ctx context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.bySession(sessionID)
	if p == nil {
		return false, domain.ErrNotFound
	}
	if p.Status != domain.StatusPending {
		return false, nil
	}
	p.Status = domain.StatusFailed
	return true, nil
}

func (s *fakePaymentStore) Rearm(ctx context.Context, id uuid.UUID, sessionID string, amount, instructorShare, adminShare int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok || !(p.Status == domain.StatusPending || p.Status == domain.StatusFailed) {
		return false, nil
	}
	p.ExternalSessionID = sessionID
	p.AmountCents = amount
	p.InstructorShareCents = instructorShare
	p.AdminShareCents = adminShare
	p.Status = domain.StatusPending
	return true, nil
}

func (s *fakePaymentStore) bySession(sessionID string) *domain.Payment {
	for _, p := range s.payments {
		if p.ExternalSessionID == sessionID {
			return p
		}
	}
	return nil
}

func (s *fakePaymentStore) outboxEvents() []fakeOutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]fakeOutboxEvent(nil), s.outbox...)
}

// fakeProcessor hands out sequential session ids and serves scripted
// session states for GetSession.
type fakeProcessor struct {
	mu        sync.Mutex
	nextID    int
	states    map[string]SessionState
	createErr error
	getErr    error
	requests  []SessionRequest
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{states: map[string]SessionState{}}
}

func (f *fakeProcessor) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return Session{}, f.createErr
	}
	f.nextID++
	id := fmt.Sprintf("cs_%03d", f.nextID)
	f.requests = append(f.requests, req)
	f.states[id] = SessionState{ID: id, Status: "open", Paid: false}
	return Session{ID: id, RedirectURL: "https://processor.example/pay/" + id}, nil
}

func (f *fakeProcessor) GetSession(ctx context.Context, sessionID string) (SessionState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return SessionState{}, f.getErr
	}
	return f.states[sessionID], nil
}

func (f *fakeProcessor) markPaid(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[sessionID] = SessionState{ID: sessionID, Status: "complete", Paid: true}
}

func (f *fakeProcessor) markExpired(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[sessionID] = SessionState{ID: sessionID, Status: "expired", Paid: false}
}

type fakeCatalog struct {
	mu      sync.Mutex
	courses map[string]coursedomain.Course
}

func newFakeCatalog(courses ...coursedomain.Course) *fakeCatalog {
	c := &fakeCatalog{courses: map[string]coursedomain.Course{}}
	for _, course := range courses {
		c.courses[course.ID] = course
	}
	return c
}

func (c *fakeCatalog) Get(ctx context.Context, courseID string) (coursedomain.Course, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	course, ok := c.courses[courseID]
	if !ok {
		return coursedomain.Course{}, coursedomain.ErrNotFound
	}
	return course, nil
}

func (c *fakeCatalog) setPrice(courseID string, priceCents int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	course := c.courses[courseID]
	course.PriceCents = priceCents
	c.courses[courseID] = course
}

type fakeSettler struct {
	mu      sync.Mutex
	err     error
	settled []domain.Payment
}

func (f *fakeSettler) Settle(ctx context.Context, p domain.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.settled = append(f.settled, p)
	return nil
}

func (f *fakeSettler) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.settled)
}

type fakeGranter struct {
	mu      sync.Mutex
	err     error
	granted []string
}

func (f *fakeGranter) Grant(ctx context.Context, userID, courseID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.granted = append(f.granted, userID+"/"+courseID)
	return nil
}

func (f *fakeGranter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.granted)
}
