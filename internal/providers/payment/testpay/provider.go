// Package testpay is an in-process provider used for local development and
// sandbox environments. Charges settle synchronously; amounts ending in 99
// decline, which mirrors common gateway sandbox conventions.
package testpay

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/smallbiznis/paycore/internal/providers/payment/domain"
)

type Provider struct{}

func New() *Provider {
	return &Provider{}
}

func (p *Provider) Name() string { return "testpay" }

func (p *Provider) CreateAccount(ctx context.Context, req domain.CreateAccountRequest) (*domain.CreateAccountResponse, error) {
	return &domain.CreateAccountResponse{
		ProviderAccountID: fmt.Sprintf("acct_%s", uuid.NewString()),
	}, nil
}

func (p *Provider) CreateSubscription(ctx context.Context, req domain.CreateSubscriptionRequest) (*domain.CreateSubscriptionResponse, error) {
	return &domain.CreateSubscriptionResponse{
		ProviderSubscriptionID: fmt.Sprintf("sub_%s", uuid.NewString()),
	}, nil
}

func (p *Provider) Charge(ctx context.Context, req domain.ChargeRequest) (*domain.ChargeResponse, error) {
	if req.Amount%100 == 99 {
		return nil, domain.ErrDeclined
	}
	return &domain.ChargeResponse{
		TransactionID: fmt.Sprintf("txn_%s", uuid.NewString()),
	}, nil
}
