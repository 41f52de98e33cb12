package unitofwork

import (
	"context"
	"fmt"
	"math"
	"time"
)

const (
	logMsgBegin                = "unit of work begun"
	logMsgClosed               = "unit of work closed"
	logMsgAttached             = "entity attached"
	logMsgDetached             = "entity detached"
	logMsgAttachConflict       = "attach conflict detected"
	logMsgFlushCompleted       = "flush completed"
	logMsgPersistFailed        = "persisting entity failed"
	logMsgLoadFailed           = "loading entity failed"
	logMsgFingerprintFailed    = "failed to fingerprint collection field, comparing it element-wise"
	logMsgOperation            = "unitofwork operation: "
	logAttrError               = "error"
	logAttrUnitOfWorkID        = "unit_of_work_id"
	logAttrIdentity            = "identity"
	logAttrField               = "field"
	logAttrEntityCount         = "entity_count"
	logAttrNotAttempted        = "not_attempted"
	logAttrDeletedCount        = "deleted_count"
	logAttrDurationMS          = "duration_ms"
	metricFlushDuration        = "unitofwork_flush_duration_seconds"
	metricEntitiesPersisted    = "unitofwork_entities_persisted"
	metricPersistenceErrors    = "unitofwork_persistence_errors_total"
	metricAttachConflicts      = "unitofwork_attach_conflicts_total"
	spanNameFlush              = "unitofwork.flush"
	spanAttrUnitOfWorkID       = "unit_of_work_id"
	spanAttrEntityCount        = "entity_count"
	spanAttrErrorType          = "error_type"
	labelOperation             = "operation"
	labelStatus                = "status"
	operationFlush             = "flush"
	operationLoad              = "load"
	operationAttach            = "attach"
	statusSuccess              = "success"
	statusError                = "error"
	errorTypePersistence       = "persistence_error"
	errorTypeCreateUnsupported = "create_not_supported"
	errorTypeDeleteUnsupported = "delete_not_supported"
)

func (t *Tracker) logDebug(msg string, args ...any) {
	if t.logger != nil {
		t.logger.Debug(msg, args...)
	}
}

func (t *Tracker) logWarn(msg string, args ...any) {
	if t.logger != nil {
		t.logger.Warn(msg, args...)
	}
}

// logOperation logs operational information at info level with both loggers, if configured.
func (t *Tracker) logOperation(ctx context.Context, action string, args ...any) {
	if t.logger != nil {
		t.logger.Info(logMsgOperation+action, args...)
	}

	if t.contextualLogger != nil {
		t.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
	}
}

// logError logs error information at the error level with both loggers, if configured.
func (t *Tracker) logError(ctx context.Context, message string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if t.logger != nil {
		t.logger.Error(message, allArgs...)
	}

	if t.contextualLogger != nil {
		t.contextualLogger.ErrorContext(ctx, message, allArgs...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

func (t *Tracker) recordDuration(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	if t.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := t.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metric, duration, labels)
	} else {
		t.metricsCollector.RecordDuration(metric, duration, labels)
	}
}

func (t *Tracker) recordValue(ctx context.Context, metric string, value float64, labels map[string]string) {
	if t.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := t.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.RecordValueContext(ctx, metric, value, labels)
	} else {
		t.metricsCollector.RecordValue(metric, value, labels)
	}
}

func (t *Tracker) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if t.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := t.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, labels)
	} else {
		t.metricsCollector.IncrementCounter(metric, labels)
	}
}

// === Flush Observer ===
// flushObserver bundles span, metrics and logging of one flush.

type flushObserver struct {
	t     *Tracker
	ctx   context.Context
	span  SpanContext
	uowID string
	start time.Time
}

func (t *Tracker) startFlushObserver(ctx context.Context, uowID string, entityCount int) (*flushObserver, context.Context) {
	var span SpanContext

	if t.tracingCollector != nil {
		ctx, span = t.tracingCollector.StartSpan(ctx, spanNameFlush, map[string]string{
			spanAttrUnitOfWorkID: uowID,
			spanAttrEntityCount:  fmt.Sprintf("%d", entityCount),
		})
	}

	return &flushObserver{t: t, ctx: ctx, span: span, uowID: uowID, start: time.Now()}, ctx
}

func (o *flushObserver) finishSuccess(persisted, deleted int) {
	duration := time.Since(o.start)
	labels := map[string]string{labelOperation: operationFlush, labelStatus: statusSuccess}

	o.t.recordDuration(o.ctx, metricFlushDuration, duration, labels)
	o.t.recordValue(o.ctx, metricEntitiesPersisted, float64(persisted), labels)
	o.t.logOperation(
		o.ctx,
		logMsgFlushCompleted,
		logAttrUnitOfWorkID, o.uowID,
		logAttrEntityCount, persisted,
		logAttrDeletedCount, deleted,
		logAttrDurationMS, toMilliseconds(duration))

	if o.t.tracingCollector != nil && o.span != nil {
		o.span.SetStatus(statusSuccess)
		o.t.tracingCollector.FinishSpan(o.span, statusSuccess, map[string]string{
			spanAttrEntityCount: fmt.Sprintf("%d", persisted),
		})
	}
}

func (o *flushObserver) finishError(id Identity, errorType string, err error, persisted, notAttempted int) {
	duration := time.Since(o.start)

	o.t.recordDuration(o.ctx, metricFlushDuration, duration, map[string]string{labelOperation: operationFlush, labelStatus: statusError})
	o.t.recordValue(o.ctx, metricEntitiesPersisted, float64(persisted), map[string]string{labelOperation: operationFlush, labelStatus: statusError})
	o.t.incrementCounter(o.ctx, metricPersistenceErrors, map[string]string{labelOperation: operationFlush, spanAttrErrorType: errorType})
	o.t.logError(
		o.ctx,
		logMsgPersistFailed,
		err,
		logAttrUnitOfWorkID, o.uowID,
		logAttrIdentity, id.String(),
		logAttrEntityCount, persisted,
		logAttrNotAttempted, notAttempted,
		logAttrDurationMS, toMilliseconds(duration))

	if o.t.tracingCollector != nil && o.span != nil {
		o.span.SetStatus(statusError)
		o.span.AddAttribute(spanAttrErrorType, errorType)
		o.t.tracingCollector.FinishSpan(o.span, statusError, map[string]string{spanAttrErrorType: errorType})
	}
}

func (t *Tracker) recordAttachConflict(ctx context.Context, uowID string, id Identity) {
	t.logWarn(logMsgAttachConflict, logAttrUnitOfWorkID, uowID, logAttrIdentity, id.String())
	t.incrementCounter(ctx, metricAttachConflicts, map[string]string{labelOperation: operationAttach})
}

func (t *Tracker) recordLoadError(ctx context.Context, uowID string, id Identity, err error) {
	t.logError(ctx, logMsgLoadFailed, err, logAttrUnitOfWorkID, uowID, logAttrIdentity, id.String())
	t.incrementCounter(ctx, metricPersistenceErrors, map[string]string{labelOperation: operationLoad, spanAttrErrorType: errorTypePersistence})
}
