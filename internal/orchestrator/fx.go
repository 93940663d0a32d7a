package orchestrator

import (
	"time"

	"github.com/smallbiznis/paycore/internal/breaker"
	"github.com/smallbiznis/paycore/internal/clock"
	"github.com/smallbiznis/paycore/internal/config"
	ledgerdomain "github.com/smallbiznis/paycore/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/paycore/internal/observability/metrics"
	providerdomain "github.com/smallbiznis/paycore/internal/providers/payment/domain"
	providerhmac "github.com/smallbiznis/paycore/internal/providers/payment/hmac"
	"github.com/smallbiznis/paycore/internal/providers/payment/testpay"
	"github.com/smallbiznis/paycore/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg      config.Config
	Ledger   ledgerdomain.Service
	Provider providerdomain.PaymentProvider
	Verifier providerdomain.WebhookVerifier
	Limiter  *ratelimit.Limiter
	Breaker  *breaker.Breaker `name:"payment_provider"`
	Clk      clock.Clock
	Log      *zap.Logger
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

func New(p Params) *Orchestrator {
	return &Orchestrator{
		ledger:   p.Ledger,
		provider: p.Provider,
		verifier: p.Verifier,
		limiter:  p.Limiter,
		breaker:  p.Breaker,
		charge:   p.Cfg.Charge,
		clk:      p.Clk,
		log:      p.Log.Named("orchestrator"),
		metrics:  p.Metrics,
		sleep:    sleepContext,
	}
}

type breakerParams struct {
	fx.In

	Cfg     config.Config
	Clk     clock.Clock
	Log     *zap.Logger
	Metrics *obsmetrics.Metrics `optional:"true"`
}

// newProviderBreaker guards the outbound payment provider. Declines are a
// business outcome and do not count against provider health.
func newProviderBreaker(p breakerParams) *breaker.Breaker {
	return breaker.New("payment-provider", breaker.Config{
		FailureThreshold: p.Cfg.Breaker.FailureThreshold,
		RecoveryTimeout:  time.Duration(p.Cfg.Breaker.RecoveryTimeoutSeconds) * time.Second,
		IsFailure:        providerdomain.IsTransient,
	}, p.Clk, p.Log, p.Metrics)
}

func newVerifier(cfg config.Config, clk clock.Clock) providerdomain.WebhookVerifier {
	return providerhmac.NewVerifier(cfg.WebhookSecret, clk)
}

func newProvider() providerdomain.PaymentProvider {
	return testpay.New()
}

var Module = fx.Module("orchestrator",
	fx.Provide(
		fx.Annotate(newProviderBreaker, fx.ResultTags(`name:"payment_provider"`)),
		newVerifier,
		newProvider,
		New,
	),
)
