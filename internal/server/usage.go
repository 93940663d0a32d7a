package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/smallbiznis/paycore/internal/ledger/domain"
	usagedomain "github.com/smallbiznis/paycore/internal/usage/domain"
)

type recordUsageRequest struct {
	SubscriptionID string `json:"subscription_id"`
	UsageType      string `json:"usage_type"`
	Quantity       int64  `json:"quantity"`
	RecordedAt     string `json:"recorded_at"`
}

func (s *Server) RecordUsage(c *gin.Context) {
	var req recordUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	subID, err := strconv.ParseInt(strings.TrimSpace(req.SubscriptionID), 10, 64)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	ledgerReq := ledgerdomain.RecordUsageRequest{
		SubscriptionID: snowflake.ID(subID),
		UsageType:      usagedomain.UsageType(strings.ToLower(strings.TrimSpace(req.UsageType))),
		Quantity:       req.Quantity,
	}
	if raw := strings.TrimSpace(req.RecordedAt); raw != "" {
		recordedAt, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		ledgerReq.RecordedAt = &recordedAt
	}

	resp, err := s.orc.RecordUsage(c.Request.Context(), ledgerReq)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListUsage(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	resp, err := s.orc.ListUsage(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SummarizeUsage(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	usageType := usagedomain.UsageType(strings.ToLower(strings.TrimSpace(c.Query("usage_type"))))
	from, err := time.Parse(time.RFC3339, strings.TrimSpace(c.Query("from")))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	to, err := time.Parse(time.RFC3339, strings.TrimSpace(c.Query("to")))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	total, err := s.orc.SumUsage(c.Request.Context(), id, usageType, from, to)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"subscription_id": id.String(),
		"usage_type":      usageType,
		"from":            from,
		"to":              to,
		"total":           total,
	}})
}
