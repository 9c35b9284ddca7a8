package observability

import (
	"errors"

	contextutils "wordgames/internal/utils"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// FinishSpan ends span, first recording the error errPtr points at.
// Meant for named returns: `defer observability.FinishSpan(span, &err)`
func FinishSpan(span trace.Span, errPtr *error) {
	if span == nil {
		return
	}
	if errPtr != nil && *errPtr != nil {
		err := *errPtr
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		var appErr *contextutils.AppError
		if errors.As(err, &appErr) {
			span.SetAttributes(attribute.String("error.code", string(appErr.Code)))
		}
	}
	span.End()
}
