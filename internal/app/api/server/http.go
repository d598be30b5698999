package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/ship-kit/billing/docs"
	"github.com/ship-kit/billing/internal/app/api/handlers"
	mw "github.com/ship-kit/billing/internal/app/api/middleware"
	"github.com/ship-kit/billing/internal/app/service/entitlement"
	"github.com/ship-kit/billing/internal/app/service/event_log"
	"github.com/ship-kit/billing/internal/app/service/ledger"
	"github.com/ship-kit/billing/internal/app/service/statistics"
	wh "github.com/ship-kit/billing/internal/app/service/webhook_handler"
	cfgpkg "github.com/ship-kit/billing/pkg/config"
	"github.com/ship-kit/billing/pkg/metrics"
)

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(mw.TraceMiddleware())
	r.Use(metrics.GinMiddleware())
	return r
}

func registerRoutes(r *gin.Engine, log *zap.SugaredLogger, webhookHandler *wh.Handler, ent *entitlement.Service, l *ledger.Service, el *event_log.Service, stats *statistics.Service, cfg *cfgpkg.Config) {
	if cfg != nil && cfg.MetricsAddr != "" {
		metrics.Serve(cfg.MetricsAddr, log)
	}

	// Public group: health + swagger
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterHealthRoutes(pub)
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Provider webhooks carry no session auth; each request authenticates
	// itself via the HMAC signature.
	webhooks := r.Group("/webhooks")
	webhooks.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterWebhookRoutes(webhooks, webhookHandler, cfg)

	// Internal query surface
	apiV1 := r.Group("/api/v1")
	apiV1.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterEntitlementRoutes(apiV1, ent)
	handlers.RegisterAdminRoutes(apiV1.Group("/admin"), l, el, stats)
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
