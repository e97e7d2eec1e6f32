//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"payment-callbacks/internal/domain"
	"payment-callbacks/internal/domain/model"
	"payment-callbacks/internal/domain/ports/adapter"
	"payment-callbacks/internal/domain/ports/repository"
)

// =============================
// Repositories
// =============================

type MockPaymentRepo struct {
	mu   sync.Mutex
	data map[string]*model.Payment // by token

	FindByTokenCalls int
	FindByTxIDCalls  int
	Saves            int

	FindByTokenFunc func(ctx context.Context, tx repository.Tx, token string) (*model.Payment, error)
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo(ps ...*model.Payment) *MockPaymentRepo {
	r := &MockPaymentRepo{data: map[string]*model.Payment{}}
	for _, p := range ps {
		cp := *p
		r.data[p.Token] = &cp
	}
	return r
}

func (r *MockPaymentRepo) Create(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.data[p.Token] = &cp
	return nil
}

func (r *MockPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tx, ok := tx.(*MockTx); ok {
		tx.pending = append(tx.pending, *p)
		r.Saves++
		return nil
	}
	cp := *p
	r.data[p.Token] = &cp
	r.Saves++
	return nil
}

func (r *MockPaymentRepo) FindByToken(ctx context.Context, tx repository.Tx, token string) (*model.Payment, error) {
	r.mu.Lock()
	r.FindByTokenCalls++
	r.mu.Unlock()
	if r.FindByTokenFunc != nil {
		return r.FindByTokenFunc(ctx, tx, token)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MockPaymentRepo) FindByTransactionID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FindByTxIDCalls++
	for _, p := range r.data {
		if id != "" && p.TransactionID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentRepo) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.FindByTokenCalls + r.FindByTxIDCalls + r.Saves
}

func (r *MockPaymentRepo) Get(token string) *model.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[token]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

func (r *MockPaymentRepo) commit(tx *MockTx) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range tx.pending {
		p := tx.pending[i]
		r.data[p.Token] = &p
	}
}

// ---- Transaction manager ----

// MockTx buffers saves until the manager commits it.
type MockTx struct {
	pending []model.Payment
}

// MockTxManager runs fn with a MockTx and only applies its saves when fn succeeds.
type MockTxManager struct {
	repo *MockPaymentRepo

	mu         sync.Mutex
	Begun      int
	Committed  int
	RolledBack int
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager(repo *MockPaymentRepo) *MockTxManager {
	return &MockTxManager{repo: repo}
}

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	m.Begun++
	m.mu.Unlock()

	tx := &MockTx{}
	if err := fn(ctx, tx); err != nil {
		m.mu.Lock()
		m.RolledBack++
		m.mu.Unlock()
		return err
	}
	m.repo.commit(tx)
	m.mu.Lock()
	m.Committed++
	m.mu.Unlock()
	return nil
}

// =============================
// Adapters
// =============================

// ---- Providers ----

type MockProvider struct {
	mu   sync.Mutex
	name string

	ProcessCalls int
	TokenCalls   int
	LastTx       repository.Tx

	ProcessDataFunc func(ctx context.Context, tx repository.Tx, p *model.Payment, req *model.CallbackRequest) (*model.CallbackResponse, error)
	TokenFunc       func(ctx context.Context, req *model.CallbackRequest, p *model.Payment) (string, error)
}

var _ adapter.PaymentProvider = (*MockProvider)(nil)

func NewMockProvider(name string) *MockProvider {
	return &MockProvider{name: name}
}

func (m *MockProvider) Name() string { return m.name }

func (m *MockProvider) ProcessData(ctx context.Context, tx repository.Tx, p *model.Payment, req *model.CallbackRequest) (*model.CallbackResponse, error) {
	m.mu.Lock()
	m.ProcessCalls++
	m.LastTx = tx
	m.mu.Unlock()
	if m.ProcessDataFunc != nil {
		return m.ProcessDataFunc(ctx, tx, p, req)
	}
	return model.TextResponse(200, "OK"), nil
}

func (m *MockProvider) TokenFromRequest(ctx context.Context, req *model.CallbackRequest, p *model.Payment) (string, error) {
	m.mu.Lock()
	m.TokenCalls++
	m.mu.Unlock()
	if m.TokenFunc != nil {
		return m.TokenFunc(ctx, req, p)
	}
	return req.Value("token"), nil
}

type MockEventProvider struct {
	*MockProvider

	Events      map[string]*model.GatewayEvent
	Ignored     map[string]bool   // event types without a transaction
	TxIDs       map[string]string // event id -> transaction id, defaults to the object id
	FetchErr    error
	FetchCalls  int
	HandleCalls int

	HandleEventFunc func(ctx context.Context, tx repository.Tx, p *model.Payment, ev *model.GatewayEvent) (*model.CallbackResponse, error)
}

var _ adapter.EventProvider = (*MockEventProvider)(nil)

func (m *MockEventProvider) FetchEvent(ctx context.Context, id string) (*model.GatewayEvent, error) {
	m.FetchCalls++
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	ev, ok := m.Events[id]
	if !ok {
		return nil, domain.ErrGatewayLookup
	}
	return ev, nil
}

func (m *MockEventProvider) EventTransactionID(ev *model.GatewayEvent) (string, bool) {
	if m.Ignored[ev.Type] {
		return "", false
	}
	if id, ok := m.TxIDs[ev.ID]; ok {
		return id, true
	}
	return ev.ObjectID, true
}

func (m *MockEventProvider) HandleEvent(ctx context.Context, tx repository.Tx, p *model.Payment, ev *model.GatewayEvent) (*model.CallbackResponse, error) {
	m.HandleCalls++
	if m.HandleEventFunc != nil {
		return m.HandleEventFunc(ctx, tx, p, ev)
	}
	return model.JSONResponse(200, map[string]string{"status": "ok"}), nil
}

// ---- Registry ----

type MockRegistry struct {
	providers map[string]adapter.PaymentProvider
	Calls     []string
}

var _ adapter.ProviderRegistry = (*MockRegistry)(nil)

func NewMockRegistry(ps map[string]adapter.PaymentProvider) *MockRegistry {
	return &MockRegistry{providers: ps}
}

func (r *MockRegistry) Get(variant string) (adapter.PaymentProvider, error) {
	r.Calls = append(r.Calls, variant)
	p, ok := r.providers[variant]
	if !ok {
		return nil, &domain.UnknownProviderError{Variant: variant}
	}
	return p, nil
}

// ---- Event claims ----

type MockClaims struct {
	mu       sync.Mutex
	held     map[string]bool
	Released []string
	Err      error
}

var _ adapter.EventClaimer = (*MockClaims)(nil)

func NewMockClaims() *MockClaims {
	return &MockClaims{held: map[string]bool{}}
}

func (c *MockClaims) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return false, c.Err
	}
	if c.held[key] {
		return false, nil
	}
	c.held[key] = true
	return true, nil
}

func (c *MockClaims) Release(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.held, key)
	c.Released = append(c.Released, key)
	return nil
}

// =============================
// Helpers
// =============================

const (
	testToken   = "11111111-2222-3333-4444-555555555555"
	testVariant = "default"
	testSource  = "src_123"
)

var errProviderBoom = errors.New("provider exploded")

func newTestPayment() *model.Payment {
	return &model.Payment{
		ID:            "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee",
		Token:         testToken,
		Variant:       testVariant,
		Status:        model.PaymentStatusWaiting,
		Currency:      "USD",
		Total:         decimal.RequireFromString("10.00"),
		TransactionID: testSource,
	}
}

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
