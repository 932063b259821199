package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"ml-prediction-pipeline/internal/domain"
	"ml-prediction-pipeline/internal/domain/model"
	red "ml-prediction-pipeline/internal/infra/redis"
)

type submitFixture struct {
	uc           *predictionUC
	predictions  *memPredictionRepo
	balances     *memBalanceRepo
	transactions *memTransactionRepo
	publisher    *fakePublisher
}

func newSubmitFixture(seed map[string]float64, limiter *red.RateLimiter, rateLimit int) *submitFixture {
	predictions := newMemPredictionRepo()
	balances := newMemBalanceRepo(seed)
	transactions := &memTransactionRepo{}
	balanceUC := NewBalanceUseCase(balances, transactions, &fakeTM{}, nopLogger())
	publisher := &fakePublisher{}
	uc := NewPredictionUseCase(
		predictions, balanceUC, publisher, limiter, &fakeTM{},
		10, rateLimit, time.Minute, nopLogger(),
	)
	return &submitFixture{
		uc:           uc,
		predictions:  predictions,
		balances:     balances,
		transactions: transactions,
		publisher:    publisher,
	}
}

func TestSubmitEscrowsAndPublishes(t *testing.T) {
	f := newSubmitFixture(map[string]float64{"u1": 1000}, nil, 0)
	ctx := context.Background()

	p, err := f.uc.Submit(ctx, SubmitParams{
		UserID:   "u1",
		ModelID:  "llama3",
		Message:  "hello",
		Priority: model.PriorityHigh,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if p.ID == "" {
		t.Fatal("prediction has no id")
	}
	if p.Status != model.PredictionStatusPending {
		t.Errorf("Status = %s, want pending", p.Status)
	}
	if p.CostCharged != 10 {
		t.Errorf("CostCharged = %v, want 10", p.CostCharged)
	}
	if got := f.balances.balanceOf("u1"); got != 990 {
		t.Errorf("balance = %v, want 990", got)
	}
	rows := f.transactions.rowsOfType("u1", model.TransactionTypeMLRequest)
	if len(rows) != 1 || rows[0].Amount != -10 {
		t.Errorf("ml_request rows = %+v, want one -10 row", rows)
	}
	if len(f.publisher.published) != 1 {
		t.Fatalf("published = %d, want 1", len(f.publisher.published))
	}
	task := f.publisher.published[0]
	if task.PredictionID != p.ID {
		t.Errorf("task.PredictionID = %q, want %q", task.PredictionID, p.ID)
	}
	if task.Priority != model.PriorityHigh {
		t.Errorf("task.Priority = %v, want high", task.Priority)
	}
	if task.RetryCount != 0 || task.MaxRetries != model.DefaultMaxRetries {
		t.Errorf("retry fields = %d/%d, want 0/%d", task.RetryCount, task.MaxRetries, model.DefaultMaxRetries)
	}
}

func TestSubmitInsufficientBalance(t *testing.T) {
	f := newSubmitFixture(map[string]float64{"u1": 5}, nil, 0)

	_, err := f.uc.Submit(context.Background(), SubmitParams{
		UserID: "u1", ModelID: "llama3", Message: "hello",
	})
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	if got := f.balances.balanceOf("u1"); got != 5 {
		t.Errorf("balance = %v, want untouched 5", got)
	}
	if len(f.transactions.rows) != 0 {
		t.Errorf("ledger rows = %d, want 0", len(f.transactions.rows))
	}
	if len(f.publisher.published) != 0 {
		t.Errorf("published = %d, want 0", len(f.publisher.published))
	}
}

func TestSubmitEmptyMessageRejectedBeforeCharge(t *testing.T) {
	f := newSubmitFixture(map[string]float64{"u1": 1000}, nil, 0)

	_, err := f.uc.Submit(context.Background(), SubmitParams{
		UserID: "u1", ModelID: "llama3", Message: "   ",
	})
	if !errors.Is(err, domain.ErrEmptyMessage) {
		t.Fatalf("err = %v, want ErrEmptyMessage", err)
	}
	if got := f.balances.balanceOf("u1"); got != 1000 {
		t.Errorf("balance = %v, want untouched 1000", got)
	}
	if f.predictions.count() != 0 {
		t.Errorf("predictions = %d, want 0", f.predictions.count())
	}
}

func TestSubmitPublishFailureLeavesPendingAndCharged(t *testing.T) {
	f := newSubmitFixture(map[string]float64{"u1": 1000}, nil, 0)
	f.publisher.fail = true

	p, err := f.uc.Submit(context.Background(), SubmitParams{
		UserID: "u1", ModelID: "llama3", Message: "hello",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	got, err := f.uc.Get(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != model.PredictionStatusPending {
		t.Errorf("Status = %s, want pending after dispatch failure", got.Status)
	}
	if b := f.balances.balanceOf("u1"); b != 990 {
		t.Errorf("balance = %v, want 990 (charge stands)", b)
	}
}

func TestSubmitRateLimited(t *testing.T) {
	limiter := red.NewRateLimiter(newFakeRedis())
	f := newSubmitFixture(map[string]float64{"u1": 1000}, limiter, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := f.uc.Submit(ctx, SubmitParams{UserID: "u1", ModelID: "llama3", Message: "hello"}); err != nil {
			t.Fatalf("Submit %d: %v", i+1, err)
		}
	}
	_, err := f.uc.Submit(ctx, SubmitParams{UserID: "u1", ModelID: "llama3", Message: "hello"})
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	if got := f.balances.balanceOf("u1"); got != 980 {
		t.Errorf("balance = %v, want 980 (refused submit charges nothing)", got)
	}

	// Another user is unaffected by u1's window.
	f.balances.Save(ctx, nil, &model.UserBalance{UserID: "u2", Balance: 100})
	if _, err := f.uc.Submit(ctx, SubmitParams{UserID: "u2", ModelID: "llama3", Message: "hello"}); err != nil {
		t.Errorf("Submit for u2: %v", err)
	}
}

func TestGetMissingPrediction(t *testing.T) {
	f := newSubmitFixture(nil, nil, 0)
	if _, err := f.uc.Get(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
