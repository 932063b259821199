package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ml-prediction-pipeline/internal/domain"
	"ml-prediction-pipeline/internal/domain/model"
	"ml-prediction-pipeline/internal/domain/ports/adapter"
	"ml-prediction-pipeline/internal/domain/ports/repository"
	"ml-prediction-pipeline/internal/infra/logging"
	"ml-prediction-pipeline/internal/infra/metrics"
)

// MLWorker drives one task through validation, claiming, the inference call
// and reconciliation. With prefetch=1 at most one Execute runs per process;
// the counters are atomics only because the admin endpoint reads them.
type MLWorker struct {
	id          string
	validator   TaskValidator
	ml          adapter.MLServiceAdapter
	predictions repository.PredictionRepository
	finalizer   Finalizer
	timeout     time.Duration
	log         *zerolog.Logger

	processedCount atomic.Int64
	failedCount    atomic.Int64
}

func NewMLWorker(
	validator TaskValidator,
	ml adapter.MLServiceAdapter,
	predictions repository.PredictionRepository,
	finalizer Finalizer,
	timeout time.Duration,
	log *zerolog.Logger,
) *MLWorker {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &MLWorker{
		id:          "worker-" + uuid.NewString()[:8],
		validator:   validator,
		ml:          ml,
		predictions: predictions,
		finalizer:   finalizer,
		timeout:     timeout,
		log:         log,
	}
}

func (w *MLWorker) ID() string { return w.id }

func (w *MLWorker) ProcessedCount() int64 { return w.processedCount.Load() }
func (w *MLWorker) FailedCount() int64    { return w.failedCount.Load() }

// SuccessRate is lifetime and instance-local; it resets on restart.
func (w *MLWorker) SuccessRate() float64 {
	processed := w.processedCount.Load()
	total := processed + w.failedCount.Load()
	if total == 0 {
		return 0
	}
	return float64(processed) / float64(total)
}

// Execute runs one attempt. Terminal outcomes are handed to the Finalizer
// before returning; a transient failure with retries left is not finalized,
// so the prediction stays Processing until a retry or exhaustion settles it.
func (w *MLWorker) Execute(ctx context.Context, task model.TaskMessage) Result {
	ctx = logging.WithTaskID(ctx, task.TaskID)
	ctx = logging.WithPredictionID(ctx, task.PredictionID)
	ctx = logging.WithUserID(ctx, task.UserID)
	log := logging.With(ctx, w.log).With().Str("worker_id", w.id).Logger()
	defer logging.TraceDuration(&log, "MLWorker.Execute")()

	log.Info().Int("retry", task.RetryCount).Msg("processing task")

	if vres := w.validator.Validate(task); !vres.Valid {
		metrics.IncValidationFailure()
		w.failedCount.Add(1)
		log.Warn().Str("errors", vres.ErrorMessage()).Msg("task validation failed")
		result := Result{
			TaskID:       task.TaskID,
			PredictionID: task.PredictionID,
			Success:      false,
			Err:          "validation error: " + vres.ErrorMessage(),
		}
		w.finalizer.Handle(ctx, result)
		metrics.IncTask("failed")
		return result
	}

	if err := w.predictions.MarkProcessing(ctx, nil, task.PredictionID); err != nil {
		switch {
		case errors.Is(err, domain.ErrPredictionFinalized):
			// Redelivered task for an already settled prediction.
			metrics.IncTask("duplicate")
			log.Warn().Msg("prediction already finalized, skipping")
			return Result{TaskID: task.TaskID, PredictionID: task.PredictionID, Success: true}
		case errors.Is(err, domain.ErrNotFound):
			w.failedCount.Add(1)
			log.Error().Msg("prediction missing for task")
			result := Result{
				TaskID:       task.TaskID,
				PredictionID: task.PredictionID,
				Success:      false,
				Err:          "prediction not found",
			}
			w.finalizer.Handle(ctx, result)
			metrics.IncTask("failed")
			return result
		default:
			log.Error().Err(err).Msg("failed to claim prediction")
			return Result{
				TaskID:       task.TaskID,
				PredictionID: task.PredictionID,
				Success:      false,
				Err:          "failed to claim prediction: " + err.Error(),
				Retryable:    true,
			}
		}
	}

	turns := make([]model.ChatTurn, 0, len(task.ConversationHistory)+1)
	turns = append(turns, task.ConversationHistory...)
	turns = append(turns, model.ChatTurn{Role: "user", Content: task.Message})

	callCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	reply, err := w.ml.Chat(callCtx, task.ModelID, turns)
	elapsed := time.Since(start)
	metrics.ObserveTaskDuration(elapsed.Seconds())

	if err != nil {
		w.failedCount.Add(1)
		log.Error().Err(err).
			Str("failure", classifyBackendError(err)).
			Dur("duration", elapsed).
			Msg("inference call failed")

		result := Result{
			TaskID:           task.TaskID,
			PredictionID:     task.PredictionID,
			Success:          false,
			Err:              err.Error(),
			ProcessingTimeMS: elapsed.Milliseconds(),
			Retryable:        task.CanRetry(),
		}
		if !result.Retryable {
			w.finalizer.Handle(ctx, result)
			metrics.IncTask("failed")
		} else {
			metrics.IncTask("retried")
		}
		return result
	}

	w.processedCount.Add(1)
	result := Result{
		TaskID:           task.TaskID,
		PredictionID:     task.PredictionID,
		Success:          true,
		Response:         reply,
		ProcessingTimeMS: elapsed.Milliseconds(),
	}
	w.finalizer.Handle(ctx, result)
	metrics.IncTask("completed")
	log.Info().Dur("duration", elapsed).Msg("task completed")
	return result
}

func classifyBackendError(err error) string {
	switch {
	case errors.Is(err, adapter.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, adapter.ErrUnreachable):
		return "unreachable"
	case errors.Is(err, adapter.ErrBadStatus):
		return "bad_status"
	case errors.Is(err, adapter.ErrMalformedResponse):
		return "malformed_response"
	default:
		return "error"
	}
}
