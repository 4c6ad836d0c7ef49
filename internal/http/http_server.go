package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/chainreactor/quest-relayer/internal/aggregator"
	"github.com/chainreactor/quest-relayer/internal/config"
	"github.com/chainreactor/quest-relayer/internal/db"
	"github.com/chainreactor/quest-relayer/internal/notify"
	"github.com/chainreactor/quest-relayer/internal/state"
	"github.com/chainreactor/quest-relayer/internal/txctl"
	"github.com/chainreactor/quest-relayer/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

type HTTPServer struct {
	aggregator *aggregator.Aggregator
	controller *txctl.Controller
	notifier   *notify.Scheduler
	dbm        *db.DatabaseManager
	switcher   wallet.Switcher
	eventBus   *state.EventBus
	player     common.Address
	logger     *log.Entry
}

func NewHTTPServer(agg *aggregator.Aggregator, controller *txctl.Controller, notifier *notify.Scheduler, dbm *db.DatabaseManager, switcher wallet.Switcher, eventBus *state.EventBus, player common.Address) *HTTPServer {
	return &HTTPServer{
		aggregator: agg,
		controller: controller,
		notifier:   notifier,
		dbm:        dbm,
		switcher:   switcher,
		eventBus:   eventBus,
		player:     player,
		logger:     log.WithFields(log.Fields{"module": "http"}),
	}
}

func (hs *HTTPServer) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	v1 := r.Group("/api/v1")
	v1.GET("/state", hs.handleState)
	v1.POST("/state/refresh", hs.handleRefresh)
	v1.GET("/network", hs.handleNetwork)
	v1.POST("/wallet/switch", hs.handleSwitch)
	v1.GET("/quests/:id", hs.handleQuest)
	v1.POST("/quests/:id/complete", hs.handleComplete)
	v1.GET("/lifecycle", hs.handleLifecycle)
	v1.GET("/lifecycle/events", hs.handleLifecycleEvents)
	v1.GET("/notification", hs.handleNotification)
	v1.GET("/transactions", hs.handleTransactions)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// Start serves until ctx is done, then shuts down gracefully.
func (hs *HTTPServer) Start(ctx context.Context) {
	addr := ":" + config.AppConfig.HTTPPort
	srv := &http.Server{
		Addr:              addr,
		Handler:           hs.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			hs.logger.Errorf("HTTP server shutdown error: %v", err)
		}
	}()

	hs.logger.Infof("HTTP server is running on port %s", config.AppConfig.HTTPPort)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start HTTP server: %v", err)
	}
	hs.logger.Info("HTTP server stopped")
}
