package hmac

import (
	"testing"
	"time"

	"github.com/smallbiznis/paycore/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVerifier() (*Verifier, *clock.FakeClock) {
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return NewVerifier("whsec_test", clk), clk
}

func TestVerifyAcceptsValidSignature(t *testing.T) {
	v, clk := newTestVerifier()

	payload := []byte(`{"id":"evt_1"}`)
	header := SignatureHeader("whsec_test", payload, clk.Now().Unix())
	require.NoError(t, v.Verify(payload, header))
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	v, clk := newTestVerifier()

	payload := []byte(`{"id":"evt_1"}`)
	header := SignatureHeader("whsec_other", payload, clk.Now().Unix())
	assert.ErrorIs(t, v.Verify(payload, header), ErrInvalidSignature)
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	v, clk := newTestVerifier()

	header := SignatureHeader("whsec_test", []byte(`{"amount":100}`), clk.Now().Unix())
	assert.ErrorIs(t, v.Verify([]byte(`{"amount":999}`), header), ErrInvalidSignature)
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	v, clk := newTestVerifier()

	payload := []byte(`{"id":"evt_1"}`)
	stale := clk.Now().Add(-time.Hour).Unix()
	header := SignatureHeader("whsec_test", payload, stale)
	assert.ErrorIs(t, v.Verify(payload, header), ErrInvalidSignature)
}

func TestVerifyRejectsMalformedHeader(t *testing.T) {
	v, _ := newTestVerifier()

	for _, header := range []string{"", "garbage", "t=123", "v1=abc"} {
		assert.Error(t, v.Verify([]byte("{}"), header), "header %q", header)
	}
}
