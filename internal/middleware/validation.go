package middleware

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"wordgames/internal/observability"
	contextutils "wordgames/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"
)

// maxBodyBytes bounds request bodies read for validation
const maxBodyBytes = 1 << 20

// FinishGameSchema describes the body of a finish request. The answer tallies
// may be sent as a count or as the list of answers.
const FinishGameSchema = `{
  "type": "object",
  "required": ["correct", "correct_question_ids", "correct_words", "wrong", "wrong_question_ids", "wrong_words"],
  "properties": {
    "correct": {"$ref": "#/definitions/tally"},
    "wrong": {"$ref": "#/definitions/tally"},
    "correct_question_ids": {"$ref": "#/definitions/ids"},
    "wrong_question_ids": {"$ref": "#/definitions/ids"},
    "correct_words": {"$ref": "#/definitions/words"},
    "wrong_words": {"$ref": "#/definitions/words"}
  },
  "definitions": {
    "tally": {"oneOf": [{"type": "integer", "minimum": 0}, {"type": "array"}]},
    "ids": {"type": "array", "items": {"type": "integer"}},
    "words": {"type": "array", "items": {"type": "string"}}
  }
}`

// ValidateJSONBody rejects requests whose body does not match schema.
// It panics if schema itself is invalid.
func ValidateJSONBody(schema string, logger *observability.Logger) gin.HandlerFunc {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		panic(fmt.Sprintf("invalid request schema: %v", err))
	}

	return func(c *gin.Context) {
		ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "validate_request_body")
		defer span.End()

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
		if err != nil {
			appErr := contextutils.NewAppError(contextutils.ErrorCodeInvalidInput, contextutils.SeverityWarn, "Failed to read request body", err.Error())
			c.AbortWithStatusJSON(http.StatusBadRequest, appErr.ToJSON())
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		result, err := compiled.Validate(gojsonschema.NewBytesLoader(body))
		if err != nil {
			span.SetAttributes(attribute.String("validation.result", "malformed"))
			appErr := contextutils.NewAppError(contextutils.ErrorCodeInvalidInput, contextutils.SeverityWarn, "Request body is not valid JSON", err.Error())
			c.AbortWithStatusJSON(http.StatusBadRequest, appErr.ToJSON())
			return
		}

		if !result.Valid() {
			problems := make([]string, 0, len(result.Errors()))
			for _, e := range result.Errors() {
				problems = append(problems, e.String())
			}
			span.SetAttributes(attribute.String("validation.result", "invalid"))
			logger.Warn(ctx, "Request body failed validation", map[string]interface{}{
				"method": c.Request.Method,
				"path":   c.Request.URL.Path,
				"errors": problems,
			})
			appErr := contextutils.NewAppError(contextutils.ErrorCodeValidationFailed, contextutils.SeverityWarn, "Request body failed validation", strings.Join(problems, "; "))
			c.AbortWithStatusJSON(http.StatusBadRequest, appErr.ToJSON())
			return
		}

		span.SetAttributes(attribute.String("validation.result", "valid"))
		c.Next()
	}
}
