package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/paycore/internal/breaker"
	customerdomain "github.com/smallbiznis/paycore/internal/customer/domain"
	ledgerdomain "github.com/smallbiznis/paycore/internal/ledger/domain"
	"github.com/smallbiznis/paycore/internal/orchestrator"
	paymentdomain "github.com/smallbiznis/paycore/internal/payment/domain"
	plandomain "github.com/smallbiznis/paycore/internal/plan/domain"
	providerdomain "github.com/smallbiznis/paycore/internal/providers/payment/domain"
	providerhmac "github.com/smallbiznis/paycore/internal/providers/payment/hmac"
	subscriptiondomain "github.com/smallbiznis/paycore/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/paycore/internal/usage/domain"
)

var ErrInvalidRequest = errors.New("invalid_request")

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		var rateLimited *orchestrator.RateLimitedError
		if errors.As(lastErr.Err, &rateLimited) && rateLimited.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(int(rateLimited.RetryAfter.Seconds())))
		}
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, customerdomain.ErrInvalidName),
		errors.Is(err, customerdomain.ErrInvalidEmail),
		errors.Is(err, subscriptiondomain.ErrInvalidCustomer),
		errors.Is(err, subscriptiondomain.ErrInvalidBillingPeriod),
		errors.Is(err, paymentdomain.ErrInvalidAmount),
		errors.Is(err, usagedomain.ErrInvalidUsageType),
		errors.Is(err, usagedomain.ErrInvalidQuantity),
		errors.Is(err, ledgerdomain.ErrMissingIdempotencyKey),
		errors.Is(err, plandomain.ErrUnknownPlan),
		errors.Is(err, orchestrator.ErrInvalidWebhookPayload),
		errors.Is(err, paymentdomain.ErrUnknownEventType):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case errors.Is(err, providerhmac.ErrInvalidSignature):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "invalid signature",
		}
	case errors.Is(err, providerdomain.ErrDeclined):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "payment_declined",
			Message: "payment declined",
		}
	case errors.Is(err, customerdomain.ErrNotFound),
		errors.Is(err, subscriptiondomain.ErrNotFound),
		errors.Is(err, paymentdomain.ErrNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: err.Error(),
		}
	case errors.Is(err, customerdomain.ErrDuplicateEmail),
		errors.Is(err, subscriptiondomain.ErrDuplicateSubscription):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case errors.Is(err, ledgerdomain.ErrSubscriptionNotActive),
		errors.Is(err, ledgerdomain.ErrCustomerArchived):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "invalid_state",
			Message: err.Error(),
		}
	case errors.Is(err, orchestrator.ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "rate limit exceeded",
		}
	case errors.Is(err, breaker.ErrCircuitOpen),
		errors.Is(err, providerdomain.ErrUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "payment provider unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func parseID(c *gin.Context, name string) (snowflake.ID, bool) {
	raw := c.Param(name)
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || parsed <= 0 {
		AbortWithError(c, ErrInvalidRequest)
		return 0, false
	}
	return snowflake.ID(parsed), true
}
