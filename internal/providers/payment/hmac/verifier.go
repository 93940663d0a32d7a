// Package hmac verifies webhook signatures of the form "t=<unix>,v1=<hex>".
// The signed payload is "<timestamp>.<body>" keyed with the shared secret.
package hmac

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/smallbiznis/paycore/internal/clock"
)

var ErrInvalidSignature = errors.New("invalid_signature")

// Tolerance bounds how old a signed timestamp may be before the webhook is
// rejected as a possible replay.
const defaultTolerance = 5 * 60

type Verifier struct {
	secret    string
	tolerance int64
	clk       clock.Clock
}

func NewVerifier(secret string, clk clock.Clock) *Verifier {
	return &Verifier{secret: secret, tolerance: defaultTolerance, clk: clk}
}

func (v *Verifier) Verify(payload []byte, signatureHeader string) error {
	header := strings.TrimSpace(signatureHeader)
	if header == "" || v.secret == "" {
		return ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignatureHeader(header)
	if err != nil {
		return ErrInvalidSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	age := v.clk.Now().Unix() - ts
	if age > v.tolerance || age < -v.tolerance {
		return ErrInvalidSignature
	}

	expected := Sign(v.secret, payload, ts)
	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// Sign computes the v1 signature for payload at the given unix timestamp.
func Sign(secret string, payload []byte, timestamp int64) string {
	signedPayload := fmt.Sprintf("%d.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signedPayload))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeader builds a full header value, used by tests and the
// built-in provider.
func SignatureHeader(secret string, payload []byte, timestamp int64) string {
	return fmt.Sprintf("t=%d,v1=%s", timestamp, Sign(secret, payload, timestamp))
}

func parseSignatureHeader(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, ErrInvalidSignature
	}
	return timestamp, signatures, nil
}
