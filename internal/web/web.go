package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"smarthub/internal/web/api"
	"smarthub/internal/web/middleware"
)

const shutdownTimeout = 5 * time.Second

type WebServer struct {
	router *gin.Engine
	logger *zap.Logger
}

// NewWebServer wires the rule routes and /metrics
func NewWebServer(engine api.RuleEngine, jwtSecret string, gatherer prometheus.Gatherer, logger *zap.Logger) *WebServer {
	logger = logger.Named("web")
	router := gin.New()

	middlewareManager := middleware.NewMiddlewareManager(jwtSecret, logger)
	router.Use(gin.Recovery(), middlewareManager.RequestLogger())

	api.RegisterRuleRoutes(router, middlewareManager, engine, logger)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return &WebServer{router: router, logger: logger}
}

// Handler exposes the router, including /metrics
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

// Run serves on addr until ctx is cancelled
func (ws *WebServer) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: ws.Handler()}

	errCh := make(chan error, 1)
	go func() {
		ws.logger.Info("HTTP server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
