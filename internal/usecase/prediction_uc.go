package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"ml-prediction-pipeline/internal/domain"
	"ml-prediction-pipeline/internal/domain/model"
	queueport "ml-prediction-pipeline/internal/domain/ports/queue"
	"ml-prediction-pipeline/internal/domain/ports/repository"
	red "ml-prediction-pipeline/internal/infra/redis"
)

// SubmitParams describes one prediction request.
type SubmitParams struct {
	UserID   string
	ModelID  string
	Message  string
	History  []model.ChatTurn
	Priority model.TaskPriority
}

// PredictionUseCase accepts a request, escrows its cost and dispatches the
// task. Acceptance and dispatch are deliberately decoupled: a broker outage
// leaves an already-debited prediction Pending instead of rolling it back.
type PredictionUseCase interface {
	Submit(ctx context.Context, params SubmitParams) (*model.Prediction, error)
	Get(ctx context.Context, id string) (*model.Prediction, error)
}

var _ PredictionUseCase = (*predictionUC)(nil)

type predictionUC struct {
	predictions repository.PredictionRepository
	balance     BalanceUseCase
	publisher   queueport.TaskPublisher
	limiter     *red.RateLimiter
	tm          repository.TransactionManager

	requestCost float64
	rateLimit   int
	rateWindow  time.Duration
	log         *zerolog.Logger
}

func NewPredictionUseCase(
	predictions repository.PredictionRepository,
	balance BalanceUseCase,
	publisher queueport.TaskPublisher,
	limiter *red.RateLimiter,
	tm repository.TransactionManager,
	requestCost float64,
	rateLimit int,
	rateWindow time.Duration,
	log *zerolog.Logger,
) *predictionUC {
	return &predictionUC{
		predictions: predictions,
		balance:     balance,
		publisher:   publisher,
		limiter:     limiter,
		tm:          tm,
		requestCost: requestCost,
		rateLimit:   rateLimit,
		rateWindow:  rateWindow,
		log:         log,
	}
}

func (u *predictionUC) Submit(ctx context.Context, params SubmitParams) (*model.Prediction, error) {
	if u.limiter != nil && u.rateLimit > 0 {
		allowed, err := u.limiter.Allow(ctx, red.UserSubmitKey(params.UserID), u.rateLimit, u.rateWindow)
		if err != nil {
			return nil, fmt.Errorf("rate limit check: %w", err)
		}
		if !allowed {
			return nil, domain.ErrRateLimited
		}
	}

	p := &model.Prediction{
		UserID:  params.UserID,
		ModelID: params.ModelID,
		Input: model.PredictionInput{
			Message:             params.Message,
			ConversationHistory: params.History,
		},
		Status:      model.PredictionStatusPending,
		CostCharged: u.requestCost,
	}

	// Built before persistence so the trim/empty check rejects bad input
	// up front; the prediction id is filled in once Save assigns it.
	task, err := model.NewTaskMessage("", params.UserID, params.ModelID, params.Message, params.History, params.Priority)
	if err != nil {
		return nil, err
	}

	// Escrow: the prediction row and the debit commit or roll back together.
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.predictions.Save(ctx, tx, p); err != nil {
			return fmt.Errorf("create prediction: %w", err)
		}
		desc := fmt.Sprintf("ML request: %.8s...", p.ID)
		ok, err := u.balance.DeductTx(ctx, tx, params.UserID, u.requestCost, desc)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInsufficientBalance
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	task.PredictionID = p.ID
	if !u.publisher.Publish(ctx, task) {
		// Non-fatal: the charge stands and the prediction stays Pending
		// for out-of-band recovery.
		u.log.Warn().
			Str("prediction_id", p.ID).
			Msg("task dispatch failed, prediction remains pending")
	}
	return p, nil
}

func (u *predictionUC) Get(ctx context.Context, id string) (*model.Prediction, error) {
	return u.predictions.FindByID(ctx, nil, id)
}
