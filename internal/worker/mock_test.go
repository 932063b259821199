package worker

import (
	"context"
	"sync"

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

// ---- in-memory PredictionRepository ----

type memPredictionRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Prediction

	saveErr error
}

var _ repository.PredictionRepository = (*memPredictionRepo)(nil)

func newMemPredictionRepo(ps ...*model.Prediction) *memPredictionRepo {
	r := &memPredictionRepo{byID: map[string]*model.Prediction{}}
	for _, p := range ps {
		cp := *p
		r.byID[p.ID] = &cp
	}
	return r
}

func (r *memPredictionRepo) Save(ctx context.Context, qx any, p *model.Prediction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
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

// ---- fake TransactionManager ----

// fakeTM runs the callback without a real transaction; repos accept nil.
type fakeTM struct {
	beginErr error
}

var _ repository.TransactionManager = (*fakeTM)(nil)

func (m *fakeTM) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.beginErr != nil {
		return m.beginErr
	}
	return fn(ctx, nil)
}

// ---- fake BalanceLedger ----

type refundCall struct {
	UserID      string
	Amount      float64
	Description string
}

type fakeLedger struct {
	mu        sync.Mutex
	Refunds   []refundCall
	refundErr error
}

var _ BalanceLedger = (*fakeLedger)(nil)

func (l *fakeLedger) RefundTx(ctx context.Context, tx repository.Tx, userID string, amount float64, description string) error {
	if l.refundErr != nil {
		return l.refundErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Refunds = append(l.Refunds, refundCall{UserID: userID, Amount: amount, Description: description})
	return nil
}

// ---- fake MLServiceAdapter ----

type fakeML struct {
	mu       sync.Mutex
	calls    int
	reply    string
	chatErr  error
	chatFunc func(ctx context.Context, modelID string, turns []model.ChatTurn) (string, error)
}

func (f *fakeML) Chat(ctx context.Context, modelID string, turns []model.ChatTurn) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.chatFunc != nil {
		return f.chatFunc(ctx, modelID, turns)
	}
	if f.chatErr != nil {
		return "", f.chatErr
	}
	return f.reply, nil
}

func (f *fakeML) HealthCheck(ctx context.Context) error { return nil }

func (f *fakeML) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
