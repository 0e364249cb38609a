package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainagg "github.com/yungbote/mes-backend/internal/domain/aggregates"
)

var errInternal = errors.New("internal error")

// ErrorCodeKey holds the envelope code of an error response on the gin
// context, for the request logger.
const ErrorCodeKey = "error_code"

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.Set(ErrorCodeKey, code)
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

// RespondAggregateError renders an aggregate failure. The envelope code is
// the ledger variant kind when there is one, otherwise the aggregate code.
func RespondAggregateError(c *gin.Context, err error) {
	code := domainagg.CodeOf(err)
	status := StatusForCode(code)
	label := domainagg.KindOf(err)
	if label == "" {
		label = string(code)
	}
	if label == "" {
		label = string(domainagg.CodeInternal)
	}
	if status == http.StatusInternalServerError && domainagg.KindOf(err) == "" {
		c.Error(err)
		RespondError(c, status, label, errInternal)
		return
	}
	RespondError(c, status, label, err)
}

func StatusForCode(code domainagg.ErrorCode) int {
	switch code {
	case domainagg.CodeValidation:
		return http.StatusBadRequest
	case domainagg.CodeNotFound:
		return http.StatusNotFound
	case domainagg.CodePreconditionFailed:
		return http.StatusUnprocessableEntity
	case domainagg.CodeInvariantViolation, domainagg.CodeConflict:
		return http.StatusConflict
	case domainagg.CodeRetryable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
