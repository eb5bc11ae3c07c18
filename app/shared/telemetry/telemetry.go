// Package telemetry wraps service operations with tracing, metrics and
// panic recovery.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/tourney-settlement/app/shared/attr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/results"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Instruments bundles what an operation reports into.
type Instruments struct {
	Service string
	Logger  *slog.Logger
	Metrics Metrics
	Tracer  trace.Tracer
}

// OperationFunc is the generic signature for service operation functions.
type OperationFunc[S any, F any] func(ctx context.Context) (results.OperationResult[S, F], error)

// Run executes op inside a span, recording attempt, duration and outcome.
func Run[S any, F any](
	ctx context.Context,
	in Instruments,
	operationName string,
	identifier string,
	op OperationFunc[S, F],
) (result results.OperationResult[S, F], err error) {
	logger := in.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var span trace.Span
	if in.Tracer != nil {
		ctx, span = in.Tracer.Start(ctx, in.Service+"."+operationName, trace.WithAttributes(
			attribute.String("operation", operationName),
			attribute.String("identifier", identifier),
		))
	} else {
		span = trace.SpanFromContext(ctx)
	}
	defer span.End()

	if in.Metrics != nil {
		in.Metrics.RecordOperationAttempt(ctx, operationName, in.Service)
	}

	startTime := time.Now()
	defer func() {
		if in.Metrics != nil {
			in.Metrics.RecordOperationDuration(ctx, operationName, in.Service, time.Since(startTime))
		}
	}()

	logger.InfoContext(ctx, "Operation triggered",
		attr.ExtractCorrelationID(ctx),
		attr.String("operation", operationName),
		attr.String("identifier", identifier),
	)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			logger.ErrorContext(ctx, "Critical panic recovered",
				attr.ExtractCorrelationID(ctx),
				attr.String("identifier", identifier),
				attr.Error(err),
			)
			if in.Metrics != nil {
				in.Metrics.RecordOperationFailure(ctx, operationName, in.Service)
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			result = results.OperationResult[S, F]{}
		}
	}()

	result, err = op(ctx)

	if err != nil {
		wrappedErr := fmt.Errorf("%s: %w", operationName, err)
		logger.ErrorContext(ctx, "Operation failed with error",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("identifier", identifier),
			attr.Error(wrappedErr),
		)
		if in.Metrics != nil {
			in.Metrics.RecordOperationFailure(ctx, operationName, in.Service)
		}
		span.RecordError(wrappedErr)
		span.SetStatus(codes.Error, wrappedErr.Error())
		return result, wrappedErr
	}

	if result.IsFailure() {
		logger.WarnContext(ctx, "Operation returned failure result",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("identifier", identifier),
			attr.Any("failure_payload", *result.Failure),
		)
	} else {
		logger.InfoContext(ctx, "Operation completed successfully",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("identifier", identifier),
		)
	}

	if in.Metrics != nil {
		in.Metrics.RecordOperationSuccess(ctx, operationName, in.Service)
	}

	return result, nil
}

// Unwrap turns an operation outcome into the public (value, error) shape.
// A domain failure is returned as the error.
func Unwrap[S any](result results.OperationResult[S, error], err error) (S, error) {
	var zero S
	if err != nil {
		return zero, err
	}
	if result.IsFailure() {
		return zero, *result.Failure
	}
	if result.Success == nil {
		return zero, nil
	}
	return *result.Success, nil
}
