package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/smallbiznis/paycore/internal/ledger/domain"
	plandomain "github.com/smallbiznis/paycore/internal/plan/domain"
)

type createSubscriptionRequest struct {
	CustomerID    string `json:"customer_id"`
	PlanCode      string `json:"plan_code"`
	BillingPeriod string `json:"billing_period"`
	StartAt       string `json:"start_at"`
}

func (s *Server) CreateSubscription(c *gin.Context) {
	var req createSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	customerID, err := strconv.ParseInt(strings.TrimSpace(req.CustomerID), 10, 64)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	ledgerReq := ledgerdomain.CreateSubscriptionRequest{
		CustomerID:    snowflake.ID(customerID),
		PlanCode:      strings.TrimSpace(req.PlanCode),
		BillingPeriod: plandomain.BillingPeriod(strings.ToLower(strings.TrimSpace(req.BillingPeriod))),
	}
	if raw := strings.TrimSpace(req.StartAt); raw != "" {
		startAt, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		ledgerReq.StartAt = &startAt
	}

	resp, err := s.orc.CreateSubscription(c.Request.Context(), ledgerReq)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetSubscription(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	resp, err := s.orc.GetSubscription(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListSubscriptions(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	resp, err := s.orc.ListSubscriptions(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CancelSubscription(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	resp, err := s.orc.CancelSubscription(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
