// Package server exposes the billing core over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/paycore/internal/config"
	"github.com/smallbiznis/paycore/internal/orchestrator"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	orc    *orchestrator.Orchestrator
	log    *zap.Logger
}

type Params struct {
	fx.In

	Cfg config.Config
	Orc *orchestrator.Orchestrator
	Log *zap.Logger
}

func NewEngine(cfg config.Config, log *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogMiddleware(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func NewServer(p Params) *Server {
	s := &Server{
		engine: NewEngine(p.Cfg, p.Log),
		cfg:    p.Cfg,
		orc:    p.Orc,
		log:    p.Log.Named("server"),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/v1")

	v1.POST("/customers", s.CreateCustomer)
	v1.GET("/customers/:id", s.GetCustomer)
	v1.GET("/customers/:id/subscriptions", s.ListSubscriptions)
	v1.GET("/customers/:id/payments", s.ListPayments)

	v1.POST("/subscriptions", s.CreateSubscription)
	v1.GET("/subscriptions/:id", s.GetSubscription)
	v1.POST("/subscriptions/:id/cancel", s.CancelSubscription)
	v1.GET("/subscriptions/:id/usage", s.ListUsage)
	v1.GET("/subscriptions/:id/usage/summary", s.SummarizeUsage)

	v1.POST("/charges", s.ChargePayment)
	v1.GET("/payments/:id", s.GetPayment)

	v1.POST("/usage", s.RecordUsage)

	s.engine.POST("/webhooks/payment", s.HandlePaymentWebhook)
}

func run(lc fx.Lifecycle, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: s.engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", s.cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Module("http.server",
	fx.Provide(NewServer),
	fx.Invoke(run),
)
