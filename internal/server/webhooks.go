package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

const signatureHeader = "Paycore-Signature"

// HandlePaymentWebhook accepts provider callbacks. Responses are
// intentionally terse; the provider only cares about the status code.
func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.orc.HandleWebhook(c.Request.Context(), payload, c.GetHeader(signatureHeader)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
