package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	ledgerdomain "github.com/smallbiznis/paycore/internal/ledger/domain"
)

type chargeRequest struct {
	CustomerID     string `json:"customer_id"`
	SubscriptionID string `json:"subscription_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	IdempotencyKey string `json:"idempotency_key"`
	DueAt          string `json:"due_at"`
}

func (s *Server) ChargePayment(c *gin.Context) {
	var req chargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if header := strings.TrimSpace(c.GetHeader("Idempotency-Key")); header != "" {
		key = header
	}
	if key == "" {
		// Callers that do not send a key forfeit replay protection.
		key = uuid.NewString()
	}

	customerID, err := strconv.ParseInt(strings.TrimSpace(req.CustomerID), 10, 64)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	ledgerReq := ledgerdomain.CreatePaymentRequest{
		CustomerID:     snowflake.ID(customerID),
		Amount:         req.Amount,
		Currency:       strings.TrimSpace(req.Currency),
		IdempotencyKey: key,
	}
	if raw := strings.TrimSpace(req.SubscriptionID); raw != "" {
		subID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		id := snowflake.ID(subID)
		ledgerReq.SubscriptionID = &id
	}
	if raw := strings.TrimSpace(req.DueAt); raw != "" {
		dueAt, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		ledgerReq.DueAt = &dueAt
	}

	resp, err := s.orc.ChargePayment(c.Request.Context(), ledgerReq)
	if err != nil {
		// The failed payment record still matters to the caller.
		if resp != nil {
			status, payload := mapError(err)
			c.JSON(status, gin.H{"data": resp, "error": payload})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPayment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	resp, err := s.orc.GetPayment(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPayments(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	resp, err := s.orc.ListPayments(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
