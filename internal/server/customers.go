package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/smallbiznis/paycore/internal/ledger/domain"
)

type createCustomerRequest struct {
	Email    string         `json:"email"`
	Name     string         `json:"name"`
	Company  string         `json:"company"`
	Tier     string         `json:"tier"`
	Metadata map[string]any `json:"metadata"`
}

func (s *Server) CreateCustomer(c *gin.Context) {
	var req createCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.orc.CreateCustomer(c.Request.Context(), ledgerdomain.CreateCustomerRequest{
		Email:    strings.TrimSpace(req.Email),
		Name:     strings.TrimSpace(req.Name),
		Company:  strings.TrimSpace(req.Company),
		Tier:     strings.TrimSpace(req.Tier),
		Metadata: req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetCustomer(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	resp, err := s.orc.GetCustomer(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
