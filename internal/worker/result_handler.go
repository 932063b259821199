package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"ml-prediction-pipeline/internal/domain"
	"ml-prediction-pipeline/internal/domain/model"
	"ml-prediction-pipeline/internal/domain/ports/repository"
	"ml-prediction-pipeline/internal/infra/metrics"
)

// Result is the outcome of one task attempt.
type Result struct {
	TaskID           string
	PredictionID     string
	Success          bool
	Response         string
	Err              string
	ProcessingTimeMS int64
	// Retryable marks a transient failure the consumer may republish.
	// Terminal outcomes (success, validation failure, retries exhausted)
	// have it false.
	Retryable bool
}

// Finalizer reconciles a terminal Result with persisted state.
type Finalizer interface {
	Handle(ctx context.Context, result Result) bool
}

// BalanceLedger is the slice of the ledger the handler needs: a refund that
// joins the enclosing database transaction.
type BalanceLedger interface {
	RefundTx(ctx context.Context, tx repository.Tx, userID string, amount float64, description string) error
}

var _ Finalizer = (*ResultHandler)(nil)

// ResultHandler transitions a prediction to its terminal state and, on
// failure, refunds the escrowed charge. Status update, balance credit and
// ledger row commit as one unit. It is the only code path that refunds;
// the one-way state machine makes a second refund for the same prediction
// impossible under redelivery.
type ResultHandler struct {
	predictions repository.PredictionRepository
	ledger      BalanceLedger
	tm          repository.TransactionManager
	log         *zerolog.Logger
}

func NewResultHandler(
	predictions repository.PredictionRepository,
	ledger BalanceLedger,
	tm repository.TransactionManager,
	log *zerolog.Logger,
) *ResultHandler {
	return &ResultHandler{predictions: predictions, ledger: ledger, tm: tm, log: log}
}

func (h *ResultHandler) Handle(ctx context.Context, result Result) bool {
	refunded := false

	err := h.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := h.predictions.FindByIDForUpdate(ctx, tx, result.PredictionID)
		if err != nil {
			return err
		}
		if p.Status.IsTerminal() {
			return domain.ErrPredictionFinalized
		}

		if result.Success {
			p.Status = model.PredictionStatusCompleted
			p.Result = &model.PredictionResult{
				Response:         result.Response,
				ProcessingTimeMS: result.ProcessingTimeMS,
			}
			p.ErrorMessage = ""
		} else {
			p.Status = model.PredictionStatusFailed
			p.ErrorMessage = result.Err
			p.Result = &model.PredictionResult{Error: result.Err}

			if p.CostCharged > 0 {
				desc := fmt.Sprintf("Refund for failed ML request: %.8s...", p.ID)
				if err := h.ledger.RefundTx(ctx, tx, p.UserID, p.CostCharged, desc); err != nil {
					return err
				}
				refunded = true
			}
		}

		return h.predictions.Save(ctx, tx, p)
	})

	switch {
	case err == nil:
		if refunded {
			metrics.IncRefund()
		}
		h.log.Info().
			Str("prediction_id", result.PredictionID).
			Bool("success", result.Success).
			Bool("refunded", refunded).
			Msg("prediction finalized")
		return true
	case errors.Is(err, domain.ErrPredictionFinalized):
		// Redelivered or already reconciled; nothing left to do.
		h.log.Debug().Str("prediction_id", result.PredictionID).Msg("prediction already finalized")
		return true
	case errors.Is(err, domain.ErrNotFound):
		h.log.Error().Str("prediction_id", result.PredictionID).Msg("prediction not found")
		return false
	default:
		h.log.Error().Err(err).Str("prediction_id", result.PredictionID).Msg("failed to finalize prediction")
		return false
	}
}
