package config

import (
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var AppConfig Config

func InitConfig() {
	// .env is optional, real environment variables win
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.Warnf("Failed to load .env file: %v", err)
	}

	viper.AutomaticEnv()

	// Default config
	viper.SetDefault("HTTP_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("DB_DIR", "")
	viper.SetDefault("WRITE_CHAIN_ID", 80002)
	viper.SetDefault("QUEST_ID", 1)
	viper.SetDefault("PLAYER_ADDRESS", "")
	viper.SetDefault("WALLET_PRIVATE_KEY", "")
	viper.SetDefault("WALLET_CHAIN_ID", 0)
	viper.SetDefault("POLYGON_RPC_URL", "https://rpc-amoy.polygon.technology")
	viper.SetDefault("ETHEREUM_RPC_URL", "https://rpc.sepolia.org")
	viper.SetDefault("BNB_RPC_URL", "https://data-seed-prebsc-1-s1.binance.org:8545")
	viper.SetDefault("ARBITRUM_RPC_URL", "https://sepolia-rollup.arbitrum.io/rpc")
	viper.SetDefault("QUEST_CONTRACT", "")
	viper.SetDefault("ACHIEVEMENT_NFT_CONTRACT", "")
	viper.SetDefault("REWARD_TOKEN_CONTRACT", "")
	viper.SetDefault("BADGE_TRACKER_CONTRACT", "")
	viper.SetDefault("READ_TIMEOUT", "15s")
	viper.SetDefault("SUBMIT_TIMEOUT", "60s")
	viper.SetDefault("CONFIRM_TIMEOUT", "120s")
	viper.SetDefault("CONFIRM_POLL_INTERVAL", "2s")
	viper.SetDefault("REFRESH_INTERVAL", "0s")
	viper.SetDefault("NOTIFICATION_DURATION", "5s")
	viper.SetDefault("GAS_TIP_WEI", "30000000000")

	logLevel, err := logrus.ParseLevel(strings.ToLower(viper.GetString("LOG_LEVEL")))
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}

	gasTip, ok := new(big.Int).SetString(viper.GetString("GAS_TIP_WEI"), 10)
	if !ok || gasTip.Sign() < 0 {
		logrus.Fatalf("Invalid gas tip: %s", viper.GetString("GAS_TIP_WEI"))
	}

	writeChainId := viper.GetUint64("WRITE_CHAIN_ID")
	walletChainId := viper.GetUint64("WALLET_CHAIN_ID")
	if walletChainId == 0 {
		walletChainId = writeChainId
	}

	AppConfig = Config{
		HTTPPort:               viper.GetString("HTTP_PORT"),
		LogLevel:               logLevel,
		DbDir:                  viper.GetString("DB_DIR"),
		WriteChainId:           writeChainId,
		QuestId:                viper.GetUint64("QUEST_ID"),
		PlayerAddress:          viper.GetString("PLAYER_ADDRESS"),
		WalletPrivateKey:       viper.GetString("WALLET_PRIVATE_KEY"),
		WalletChainId:          walletChainId,
		PolygonRPC:             viper.GetString("POLYGON_RPC_URL"),
		EthereumRPC:            viper.GetString("ETHEREUM_RPC_URL"),
		BnbRPC:                 viper.GetString("BNB_RPC_URL"),
		ArbitrumRPC:            viper.GetString("ARBITRUM_RPC_URL"),
		QuestContract:          viper.GetString("QUEST_CONTRACT"),
		AchievementNFTContract: viper.GetString("ACHIEVEMENT_NFT_CONTRACT"),
		RewardTokenContract:    viper.GetString("REWARD_TOKEN_CONTRACT"),
		BadgeTrackerContract:   viper.GetString("BADGE_TRACKER_CONTRACT"),
		ReadTimeout:            viper.GetDuration("READ_TIMEOUT"),
		SubmitTimeout:          viper.GetDuration("SUBMIT_TIMEOUT"),
		ConfirmTimeout:         viper.GetDuration("CONFIRM_TIMEOUT"),
		ConfirmPollInterval:    viper.GetDuration("CONFIRM_POLL_INTERVAL"),
		RefreshInterval:        viper.GetDuration("REFRESH_INTERVAL"),
		NotificationDuration:   viper.GetDuration("NOTIFICATION_DURATION"),
		GasTip:                 gasTip,
	}

	if AppConfig.ConfirmTimeout <= 0 {
		logrus.Warnf("Confirm timeout must be positive, set to 120s")
		AppConfig.ConfirmTimeout = 120 * time.Second
	}
	if AppConfig.SubmitTimeout <= 0 {
		logrus.Warnf("Submit timeout must be positive, set to 60s")
		AppConfig.SubmitTimeout = 60 * time.Second
	}
	if AppConfig.ConfirmPollInterval <= 0 {
		AppConfig.ConfirmPollInterval = 2 * time.Second
	}
	if AppConfig.PlayerAddress != "" && !common.IsHexAddress(AppConfig.PlayerAddress) {
		logrus.Fatalf("Invalid player address: %s", AppConfig.PlayerAddress)
	}

	logrus.Infof("Init config, WriteChainId %d, WalletChainId %d, QuestId %d, ConfirmTimeout %v, RefreshInterval %v",
		AppConfig.WriteChainId, AppConfig.WalletChainId, AppConfig.QuestId, AppConfig.ConfirmTimeout, AppConfig.RefreshInterval)

	// logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(AppConfig.LogLevel)
}

type Config struct {
	HTTPPort               string
	LogLevel               logrus.Level
	DbDir                  string
	WriteChainId           uint64
	QuestId                uint64
	PlayerAddress          string
	WalletPrivateKey       string
	WalletChainId          uint64
	PolygonRPC             string
	EthereumRPC            string
	BnbRPC                 string
	ArbitrumRPC            string
	QuestContract          string
	AchievementNFTContract string
	RewardTokenContract    string
	BadgeTrackerContract   string
	ReadTimeout            time.Duration
	SubmitTimeout          time.Duration
	ConfirmTimeout         time.Duration
	ConfirmPollInterval    time.Duration
	RefreshInterval        time.Duration
	NotificationDuration   time.Duration
	GasTip                 *big.Int
}
