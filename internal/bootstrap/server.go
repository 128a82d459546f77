package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/viltskaa/prometei/api"
	"github.com/viltskaa/prometei/config"
	"github.com/viltskaa/prometei/internal/service/flights"
)

// Run starts the HTTP server and blocks until the context is canceled or the
// server fails.
func Run(ctx context.Context, cfg *config.Config, flightSvc flights.FlightUseCase, manager api.WorkflowManager) error {
	router := newRouter(cfg, flightSvc, manager)

	server := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}

func newRouter(cfg *config.Config, flightSvc flights.FlightUseCase, manager api.WorkflowManager) *gin.Engine {
	router := gin.Default()

	flightsGroup := router.Group("/flights")
	api.NewFlightHandler(flightSvc).Register(flightsGroup)

	sessionsGroup := router.Group("/sessions")
	api.NewSessionHandler(manager).Register(sessionsGroup)

	if cfg.HTTP.SwaggerDir != "" {
		router.StaticFile("/swagger.json", cfg.HTTP.SwaggerDir+"/swagger.json")
		router.GET("/swagger/*any", gin.WrapH(httpSwagger.Handler(
			httpSwagger.URL("/swagger.json"),
		)))
	}
	return router
}
