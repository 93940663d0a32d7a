package service

import (
	"github.com/bwmarrin/snowflake"
	auditservice "github.com/smallbiznis/paycore/internal/audit/service"
	"github.com/smallbiznis/paycore/internal/clock"
	customerdomain "github.com/smallbiznis/paycore/internal/customer/domain"
	customerrepository "github.com/smallbiznis/paycore/internal/customer/repository"
	"github.com/smallbiznis/paycore/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/paycore/internal/payment/domain"
	paymentrepository "github.com/smallbiznis/paycore/internal/payment/repository"
	plandomain "github.com/smallbiznis/paycore/internal/plan/domain"
	planrepository "github.com/smallbiznis/paycore/internal/plan/repository"
	subscriptiondomain "github.com/smallbiznis/paycore/internal/subscription/domain"
	subscriptionrepository "github.com/smallbiznis/paycore/internal/subscription/repository"
	usagedomain "github.com/smallbiznis/paycore/internal/usage/domain"
	usagerepository "github.com/smallbiznis/paycore/internal/usage/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Node  *snowflake.Node
	Clk   clock.Clock
	Log   *zap.Logger
	Audit auditservice.Recorder

	Customers     customerdomain.Repository
	Plans         plandomain.Repository
	Subscriptions subscriptiondomain.Repository
	Payments      paymentdomain.Repository
	Usage         usagedomain.Repository
}

func New(p Params) domain.Service {
	return &service{
		db:            p.DB,
		node:          p.Node,
		clk:           p.Clk,
		log:           p.Log.Named("ledger"),
		audit:         p.Audit,
		locks:         newKeyedMutex(),
		customers:     p.Customers,
		plans:         p.Plans,
		subscriptions: p.Subscriptions,
		payments:      p.Payments,
		usage:         p.Usage,
	}
}

var Module = fx.Module("ledger",
	fx.Provide(
		customerrepository.Provide,
		planrepository.Provide,
		subscriptionrepository.Provide,
		paymentrepository.Provide,
		usagerepository.Provide,
		New,
	),
)
