package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// ContentTypeProblemJSON тип содержимого ответов RFC 7807.
const ContentTypeProblemJSON = "application/problem+json"

// ProblemDetail ответ об ошибке в формате RFC 7807.
type ProblemDetail struct {
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Status     int            `json:"status"`
	Detail     string         `json:"detail,omitempty"`
	Instance   string         `json:"instance,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (p ProblemDetail) Error() string {
	if p.Detail != "" {
		return fmt.Sprintf("%s: %s", p.Title, p.Detail)
	}
	return p.Title
}

// WithDetail возвращает копию с пояснением.
func (p ProblemDetail) WithDetail(detail string) ProblemDetail {
	p.Detail = detail
	return p
}

// WithExtension возвращает копию с дополнительным полем.
func (p ProblemDetail) WithExtension(key string, value any) ProblemDetail {
	ext := make(map[string]any, len(p.Extensions)+1)
	for k, v := range p.Extensions {
		ext[k] = v
	}
	ext[key] = value
	p.Extensions = ext
	return p
}

var (
	problemNotFound = ProblemDetail{
		Type:   "/problems/not-found",
		Title:  "Order Not Found",
		Status: http.StatusNotFound,
	}
	problemValidation = ProblemDetail{
		Type:   "/problems/validation-error",
		Title:  "Validation Error",
		Status: http.StatusBadRequest,
	}
	problemInvalidVersion = ProblemDetail{
		Type:   "/problems/invalid-version-format",
		Title:  "Invalid Version Format",
		Status: http.StatusBadRequest,
	}
	problemBadRequest = ProblemDetail{
		Type:   "/problems/bad-request",
		Title:  "Bad Request",
		Status: http.StatusBadRequest,
	}
	problemConflict = ProblemDetail{
		Type:   "/problems/concurrency-conflict",
		Title:  "Concurrency Conflict",
		Status: http.StatusConflict,
	}
	problemInvalidTransition = ProblemDetail{
		Type:   "/problems/invalid-transition",
		Title:  "Invalid Status Transition",
		Status: http.StatusConflict,
	}
	problemUnauthorized = ProblemDetail{
		Type:   "/problems/unauthorized",
		Title:  "Unauthorized",
		Status: http.StatusUnauthorized,
	}
	problemUnavailable = ProblemDetail{
		Type:   "/problems/service-unavailable",
		Title:  "Service Unavailable",
		Status: http.StatusServiceUnavailable,
	}
	problemDataIntegrity = ProblemDetail{
		Type:   "/problems/data-integrity",
		Title:  "Data Integrity Violation",
		Status: http.StatusInternalServerError,
	}
	problemInternal = ProblemDetail{
		Type:   "/problems/internal-error",
		Title:  "Internal Server Error",
		Status: http.StatusInternalServerError,
	}
)

func problemForKind(kind domain.Kind) ProblemDetail {
	switch kind {
	case domain.KindNotFound:
		return problemNotFound
	case domain.KindValidation:
		return problemValidation
	case domain.KindInvalidVersion:
		return problemInvalidVersion
	case domain.KindConflict:
		return problemConflict
	case domain.KindInvalidTransition:
		return problemInvalidTransition
	case domain.KindUnauthorized:
		return problemUnauthorized
	case domain.KindServiceUnavailable:
		return problemUnavailable
	case domain.KindDataIntegrity:
		return problemDataIntegrity
	default:
		return problemInternal
	}
}

// problemFor переводит доменную ошибку в ответ. Детали внутренних ошибок наружу не отдаются.
func problemFor(err error) ProblemDetail {
	kind := domain.KindOf(err)
	problem := problemForKind(kind)

	detail := err.Error()
	if hidesDetail(kind) {
		detail = "unexpected error while processing the request"
	}
	problem = problem.WithDetail(detail)

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		problem = problem.WithExtension("violations", verr.Violations)
	}

	var itemErr *domain.ItemError
	if errors.As(err, &itemErr) {
		itemDetail := itemErr.Err.Error()
		if hidesDetail(kind) {
			itemDetail = detail
		}
		problem = problem.
			WithExtension("itemIndex", itemErr.Index).
			WithExtension("orderId", itemErr.OrderID).
			WithExtension("kind", string(kind)).
			WithExtension("detail", itemDetail)
	}
	return problem
}

// hidesDetail сообщает, что текст ошибки не должен попадать в ответ.
func hidesDetail(kind domain.Kind) bool {
	return kind == domain.KindInternal || kind == domain.KindDataIntegrity
}

func respondProblem(c *gin.Context, problem ProblemDetail) {
	if problem.Instance == "" {
		problem.Instance = c.Request.URL.Path
	}
	c.Header("Content-Type", ContentTypeProblemJSON)
	c.AbortWithStatusJSON(problem.Status, problem)
}

// respondError логирует ошибку с уровнем по её категории и отвечает problem+json.
func respondError(c *gin.Context, logger *log.Entry, err error) {
	problem := problemFor(err)
	entry := logger.WithError(err).WithFields(log.Fields{
		"request_id": requestIDFrom(c),
		"path":       c.Request.URL.Path,
		"status":     problem.Status,
	})
	if problem.Status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Warn("request rejected")
	}
	respondProblem(c, problem)
}

func respondBadRequest(c *gin.Context, detail string) {
	respondProblem(c, problemBadRequest.WithDetail(detail))
}
