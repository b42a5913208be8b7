package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/recovery/internal/cases"
	casedomain "github.com/smallbiznis/recovery/internal/cases/domain"
	"github.com/smallbiznis/recovery/internal/clock"
	"github.com/smallbiznis/recovery/internal/config"
	"github.com/smallbiznis/recovery/internal/ingestion"
	ingestiondomain "github.com/smallbiznis/recovery/internal/ingestion/domain"
	"github.com/smallbiznis/recovery/internal/notify"
	"github.com/smallbiznis/recovery/internal/observability"
	obsmiddleware "github.com/smallbiznis/recovery/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/recovery/internal/observability/metrics"
	obstracing "github.com/smallbiznis/recovery/internal/observability/tracing"
	"github.com/smallbiznis/recovery/internal/payment"
	paymentdomain "github.com/smallbiznis/recovery/internal/payment/domain"
	"github.com/smallbiznis/recovery/internal/profile"
	profiledomain "github.com/smallbiznis/recovery/internal/profile/domain"
	"github.com/smallbiznis/recovery/internal/risk"
	riskdomain "github.com/smallbiznis/recovery/internal/risk/domain"
	"github.com/smallbiznis/recovery/internal/runguard"
	"github.com/smallbiznis/recovery/internal/settlement"
	settlementdomain "github.com/smallbiznis/recovery/internal/settlement/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Domains is every service the API and the scheduler depend on.
var Domains = fx.Options(
	notify.Module,
	runguard.Module,
	cases.Module,
	profile.Module,
	risk.Module,
	ingestion.Module,
	settlement.Module,
	payment.Module,
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	clock         clock.Clock
	caseSvc       casedomain.Service
	riskSvc       riskdomain.Service
	ingestionSvc  ingestiondomain.Service
	settlementSvc settlementdomain.Service
	paymentSvc    paymentdomain.Service
	profileSvc    profiledomain.Service
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Clock         clock.Clock
	CaseSvc       casedomain.Service
	RiskSvc       riskdomain.Service
	IngestionSvc  ingestiondomain.Service
	SettlementSvc settlementdomain.Service
	PaymentSvc    paymentdomain.Service
	ProfileSvc    profiledomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		clock:         p.Clock,
		caseSvc:       p.CaseSvc,
		riskSvc:       p.RiskSvc,
		ingestionSvc:  p.IngestionSvc,
		settlementSvc: p.SettlementSvc,
		paymentSvc:    p.PaymentSvc,
		profileSvc:    p.ProfileSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Cases --------
	api.GET("/cases", s.ListCases)
	api.POST("/cases", s.CreateCase)
	api.GET("/cases/:id", s.GetCaseByID)
	api.GET("/cases/:id/history", s.GetCaseHistory)
	api.POST("/cases/:id/close", s.CloseCase)

	// -------- Decisions --------
	api.POST("/cases/:id/payments", s.ApplyPayment)
	api.POST("/cases/:id/negotiation", s.StartNegotiation)
	api.POST("/cases/:id/negotiation/decision", s.DecideNegotiation)
	api.POST("/cases/:id/prediction", s.RecordPrediction)

	// -------- Customers --------
	api.GET("/customers/:id/profile", s.GetCustomerProfile)

	// -------- Jobs --------
	api.POST("/ingestion/runs", s.TriggerIngestion)
	api.POST("/reclassifications", s.TriggerReclassification)

	// -------- Dashboard --------
	api.GET("/dashboard/zones", s.ZoneSummary)
	api.GET("/dashboard/forecast", s.Forecast)
}
