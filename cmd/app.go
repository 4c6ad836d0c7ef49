package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/chainreactor/quest-relayer/internal/aggregator"
	"github.com/chainreactor/quest-relayer/internal/chain"
	"github.com/chainreactor/quest-relayer/internal/config"
	"github.com/chainreactor/quest-relayer/internal/db"
	"github.com/chainreactor/quest-relayer/internal/http"
	"github.com/chainreactor/quest-relayer/internal/metrics"
	"github.com/chainreactor/quest-relayer/internal/notify"
	"github.com/chainreactor/quest-relayer/internal/registry"
	"github.com/chainreactor/quest-relayer/internal/state"
	"github.com/chainreactor/quest-relayer/internal/txctl"
	"github.com/chainreactor/quest-relayer/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/go-errors/errors"
	log "github.com/sirupsen/logrus"
)

type Application struct {
	DatabaseManager *db.DatabaseManager
	EventBus        *state.EventBus
	Clients         map[uint64]*ethclient.Client
	Aggregator      *aggregator.Aggregator
	Controller      *txctl.Controller
	Notifier        *notify.Scheduler
	HTTPServer      *http.HTTPServer
	Player          common.Address
}

func NewApplication() *Application {
	config.InitConfig()
	metrics.Init()

	reg, err := registry.NewFromConfig()
	if err != nil {
		log.Fatalf("Invalid endpoint configuration: %v", err)
	}

	dialCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	clients, err := chain.DialClients(dialCtx, reg.RPCURLs())
	if err != nil {
		log.Fatalf("Error creating EVM RPC clients: %v", err)
	}
	writeClient, ok := clients[reg.WriteChainId()]
	if !ok {
		log.Fatalf("No RPC url for write chain %d", reg.WriteChainId())
	}

	reader, err := chain.NewEthReader(chain.Callers(clients), config.AppConfig.ReadTimeout)
	if err != nil {
		log.Fatalf("Failed to create chain reader: %v", err)
	}

	session, switcher, err := newWallet(clients)
	if err != nil {
		log.Debugf("Wallet setup failed at:\n%s", err.(*errors.Error).ErrorStack())
		log.Fatalf("Failed to create wallet: %v", err)
	}

	player := session.Address()
	if config.AppConfig.PlayerAddress != "" {
		player = common.HexToAddress(config.AppConfig.PlayerAddress)
	}
	if player == (common.Address{}) {
		log.Fatalf("PLAYER_ADDRESS is required when no wallet key is configured")
	}

	questSource, err := reg.Resolve(registry.QuestSource)
	if err != nil {
		log.Fatalf("Failed to resolve quest source: %v", err)
	}

	dbm := db.NewDatabaseManager()
	eventBus := state.NewEventBus()
	agg := aggregator.NewAggregator(reg, reader, config.AppConfig.QuestId, eventBus, clock.New())
	scheduler := notify.NewScheduler(clock.New(), config.AppConfig.NotificationDuration, eventBus)
	controller, err := txctl.NewController(txctl.Config{
		Session:        session,
		Receipts:       writeClient,
		QuestContract:  questSource.Address,
		WriteChainId:   reg.WriteChainId(),
		Player:         player,
		Refresher:      agg,
		Notifier:       scheduler,
		Journal:        dbm,
		EventBus:       eventBus,
		SubmitTimeout:  config.AppConfig.SubmitTimeout,
		ConfirmTimeout: config.AppConfig.ConfirmTimeout,
		PollInterval:   config.AppConfig.ConfirmPollInterval,
	})
	if err != nil {
		log.Fatalf("Failed to create transaction controller: %v", err)
	}
	httpServer := http.NewHTTPServer(agg, controller, scheduler, dbm, switcher, eventBus, player)

	log.Infof("Tracking player %s, quest %d on %s", player.Hex(), config.AppConfig.QuestId, registry.ChainInfo(reg.WriteChainId()).Name)

	return &Application{
		DatabaseManager: dbm,
		EventBus:        eventBus,
		Clients:         clients,
		Aggregator:      agg,
		Controller:      controller,
		Notifier:        scheduler,
		HTTPServer:      httpServer,
		Player:          player,
	}
}

// newWallet returns a keyed wallet when WALLET_PRIVATE_KEY is set, otherwise
// a read-only session that can never write.
func newWallet(clients map[uint64]*ethclient.Client) (wallet.Session, wallet.Switcher, error) {
	if config.AppConfig.WalletPrivateKey == "" {
		log.Warn("WALLET_PRIVATE_KEY not set, running read-only")
		return wallet.ReadOnly{Player: common.HexToAddress(config.AppConfig.PlayerAddress)}, nil, nil
	}
	backends := make(map[uint64]wallet.Backend, len(clients))
	for chainId, c := range clients {
		backends[chainId] = c
	}
	w, err := wallet.NewKeyedWallet(config.AppConfig.WalletPrivateKey, backends, config.AppConfig.WalletChainId, config.AppConfig.GasTip)
	if err != nil {
		return nil, nil, errors.Wrap(err, 1)
	}
	return w, w, nil
}

func (app *Application) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.Aggregator.Refresh(ctx, app.Player)
		app.Aggregator.Start(ctx, app.Player, config.AppConfig.RefreshInterval)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.HTTPServer.Start(ctx)
	}()

	<-stop
	log.Info("Receiving exit signal...")

	cancel()

	wg.Wait()
	app.Controller.Stop()
	app.Notifier.Close()
	chain.CloseClients(app.Clients)
	if err := app.DatabaseManager.Close(); err != nil {
		log.Errorf("Failed to close database: %v", err)
	}
	log.Info("Server stopped")
}

func main() {
	app := NewApplication()
	app.Run()
}
