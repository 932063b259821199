package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"ml-prediction-pipeline/internal/domain"
	"ml-prediction-pipeline/internal/domain/model"
	"ml-prediction-pipeline/internal/domain/ports/repository"
)

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// fakeTM runs the callback directly. A returned error stands in for a
// rollback; the mem repos below support undoing on top of it where a test
// needs rollback semantics.
type fakeTM struct{}

var _ repository.TransactionManager = (*fakeTM)(nil)

func (m *fakeTM) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

// ---- in-memory balance repository ----

type memBalanceRepo struct {
	mu       sync.Mutex
	balances map[string]float64
}

var _ repository.BalanceRepository = (*memBalanceRepo)(nil)

func newMemBalanceRepo(seed map[string]float64) *memBalanceRepo {
	r := &memBalanceRepo{balances: map[string]float64{}}
	for user, amount := range seed {
		r.balances[user] = amount
	}
	return r
}

func (r *memBalanceRepo) FindByUserID(ctx context.Context, qx any, userID string) (*model.UserBalance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.balances[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &model.UserBalance{ID: userID, UserID: userID, Balance: b}, nil
}

func (r *memBalanceRepo) Save(ctx context.Context, qx any, b *model.UserBalance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[b.UserID] = b.Balance
	return nil
}

func (r *memBalanceRepo) DeductIfSufficient(ctx context.Context, qx any, userID string, amount float64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.balances[userID]
	if !ok || b < amount {
		return false, nil
	}
	r.balances[userID] = b - amount
	return true, nil
}

func (r *memBalanceRepo) Credit(ctx context.Context, qx any, userID string, amount float64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.balances[userID]; !ok {
		return false, nil
	}
	r.balances[userID] += amount
	return true, nil
}

func (r *memBalanceRepo) balanceOf(userID string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balances[userID]
}

// ---- in-memory transaction repository ----

type memTransactionRepo struct {
	mu   sync.Mutex
	rows []*model.Transaction
}

var _ repository.TransactionRepository = (*memTransactionRepo)(nil)

func (r *memTransactionRepo) Save(ctx context.Context, qx any, t *model.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *memTransactionRepo) ListByUserID(ctx context.Context, qx any, userID string) ([]*model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Transaction
	for _, t := range r.rows {
		if t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memTransactionRepo) SumByUserID(ctx context.Context, qx any, userID string) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum float64
	for _, t := range r.rows {
		if t.UserID == userID {
			sum += t.Amount
		}
	}
	return sum, nil
}

func (r *memTransactionRepo) rowsOfType(userID string, typ model.TransactionType) []*model.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Transaction
	for _, t := range r.rows {
		if t.UserID == userID && t.Type == typ {
			out = append(out, t)
		}
	}
	return out
}

// ---- in-memory prediction repository ----

type memPredictionRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Prediction
}

var _ repository.PredictionRepository = (*memPredictionRepo)(nil)

func newMemPredictionRepo() *memPredictionRepo {
	return &memPredictionRepo{byID: map[string]*model.Prediction{}}
}

func (r *memPredictionRepo) Save(ctx context.Context, qx any, p *model.Prediction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	cp := *p
	r.byID[p.ID] = &cp
	return nil
}

func (r *memPredictionRepo) FindByID(ctx context.Context, qx any, id string) (*model.Prediction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memPredictionRepo) FindByIDForUpdate(ctx context.Context, qx any, id string) (*model.Prediction, error) {
	return r.FindByID(ctx, qx, id)
}

func (r *memPredictionRepo) MarkProcessing(ctx context.Context, qx any, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.Status.IsTerminal() {
		return domain.ErrPredictionFinalized
	}
	p.Status = model.PredictionStatusProcessing
	return nil
}

func (r *memPredictionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// ---- fake publisher ----

type fakePublisher struct {
	mu        sync.Mutex
	published []model.TaskMessage
	fail      bool
}

func (p *fakePublisher) Publish(ctx context.Context, task model.TaskMessage) bool {
	if p.fail {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, task)
	return true
}

// ---- fake redis client for the rate limiter ----

type fakeRedis struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newFakeRedis() *fakeRedis { return &fakeRedis{counts: map[string]int64{}} }

func (f *fakeRedis) Ping(ctx context.Context) error { return nil }
func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return nil
}
func (f *fakeRedis) Get(ctx context.Context, key string) (string, error) { return "", nil }

func (f *fakeRedis) Incr(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeRedis) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}
func (f *fakeRedis) Del(ctx context.Context, keys ...string) error { return nil }
func (f *fakeRedis) Close() error                                  { return nil }
