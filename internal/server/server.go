package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/TheCyberMayor/PowerPay/internal/config"
	meterdomain "github.com/TheCyberMayor/PowerPay/internal/meter/domain"
	"github.com/TheCyberMayor/PowerPay/internal/observability/logger"
	"github.com/TheCyberMayor/PowerPay/internal/observability/metrics"
	"github.com/TheCyberMayor/PowerPay/internal/observability/tracing"
	paymentdomain "github.com/TheCyberMayor/PowerPay/internal/payment/domain"
	"github.com/TheCyberMayor/PowerPay/internal/payment/gateway"
	tokendomain "github.com/TheCyberMayor/PowerPay/internal/token/domain"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Cfg        config.Config
	PaymentSvc paymentdomain.Service
	TokenSvc   tokendomain.Service
	TokenRepo  tokendomain.Repository
	MeterSvc   meterdomain.Service
	Gateways   *gateway.Registry
	Redis      *redis.Client `optional:"true"`
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	db          *gorm.DB
	log         *zap.Logger
	cfg         config.Config
	paymentSvc  paymentdomain.Service
	tokenSvc    tokendomain.Service
	tokenRepo   tokendomain.Repository
	meterSvc    meterdomain.Service
	gateways    *gateway.Registry
	redis       *redis.Client
	rateLimiter *rateLimiter
}

func NewServer(p Params) *Server {
	return &Server{
		db:          p.DB,
		log:         p.Log.Named("server"),
		cfg:         p.Cfg,
		paymentSvc:  p.PaymentSvc,
		tokenSvc:    p.TokenSvc,
		tokenRepo:   p.TokenRepo,
		meterSvc:    p.MeterSvc,
		gateways:    p.Gateways,
		redis:       p.Redis,
		rateLimiter: newRateLimiter(60, time.Minute),
	}
}

// NewEngine builds the gin engine with the full middleware chain and routes.
func NewEngine(s *Server) *gin.Engine {
	if s.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	engine.Use(tracing.GinMiddleware())

	if httpMetrics, err := metrics.NewHTTPMetrics(metrics.Config{
		ServiceName: s.cfg.ServiceName,
		Environment: s.cfg.Environment,
	}, otel.GetMeterProvider()); err == nil {
		engine.Use(metrics.GinMiddleware(httpMetrics))
	}

	engine.GET("/healthz", s.Health)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api")
	if s.redis != nil {
		api.Use(IdempotencyMiddleware(s.redis))
	}

	api.POST("/payments", s.RateLimit, s.InitiatePayment)
	api.GET("/payments/:reference", s.GetPayment)
	api.POST("/payments/:reference/cancel", s.CancelPayment)
	api.POST("/payments/:reference/refund", s.RefundPayment)

	api.POST("/webhooks/:gateway", s.HandleWebhook)

	api.GET("/meters/:meterNumber", s.GetMeter)

	api.POST("/tokens/validate", s.ValidateToken)
	api.POST("/tokens/redeem", s.RedeemToken)

	return engine
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RateLimit throttles payment initiation per client address.
func (s *Server) RateLimit(c *gin.Context) {
	if !s.rateLimiter.Allow(c.ClientIP()) {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": &apiError{
			Status:  http.StatusTooManyRequests,
			Code:    "rate_limited",
			Message: "too many requests",
		}})
		return
	}
	c.Next()
}

// RunHTTP starts the HTTP listener under the fx lifecycle.
func RunHTTP(lc fx.Lifecycle, engine *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("http server starting", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
