package main

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/TEENet-io/swap-go/cmd"
	"github.com/TEENet-io/swap-go/logconfig"
	"github.com/TEENet-io/swap-go/peer"
	"github.com/TEENet-io/swap-go/swap"
)

const (
	ENV_CONFIG_FILE_PATH = "SWAPD_CONFIG"
)

func main() {
	// Tool to read environment variables
	viper.AutomaticEnv()
	setDefaults()

	// Accessing an environment variable of configuration file location.
	// Without a file every key comes from the environment.
	_config_file := viper.GetString(ENV_CONFIG_FILE_PATH)
	if _config_file != "" {
		fmt.Printf("Swap server configuration file = %s\n", _config_file)
		if !cmd.FileExists(_config_file) {
			fmt.Printf("Swap server configuration file not found: %s\n", _config_file)
			os.Exit(1)
		}
		if !initializeViper(_config_file) {
			os.Exit(1)
		}
	}

	if err := logconfig.ConfigLoggerFromString(viper.GetString("LOG_LEVEL")); err != nil {
		fmt.Printf("Invalid LOG_LEVEL: %s\n", err)
		os.Exit(1)
	}

	// Make the configuration
	ssc, err := PrepareSwapServerConfig()
	if err != nil {
		fmt.Printf("Error loading swap server configuration: %s\n", err)
		os.Exit(1)
	}

	fmt.Println("Starting swap server... press Ctrl+C to kill the server")
	// Start server and block.
	cmd.StartSwapServerAndWait(ssc)
}

func setDefaults() {
	viper.SetDefault("DB_FILE_PATH", "swapd.db")
	viper.SetDefault("BTC_CHAIN_CONFIG", "regtest")
	viper.SetDefault("BTC_CONFIRMATIONS", 1)
	viper.SetDefault("BTC_POLL_INTERVAL", "10s")
	viper.SetDefault("BTC_START_BLK", 0)
	viper.SetDefault("ETH_CONFIRMATIONS", 12)
	viper.SetDefault("ETH_POLL_INTERVAL", "5s")
	viper.SetDefault("ETH_START_BLK", 0)
	viper.SetDefault("PEER_LISTEN", "0.0.0.0:9939")
	viper.SetDefault("HTTP_IP", "127.0.0.1")
	viper.SetDefault("HTTP_PORT", "8000")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LIVENESS_BOUND", swap.DefaultLivenessBound.String())
	viper.SetDefault("MIN_TIMELOCK_GAP", swap.DefaultMinTimelockGap.String())
	viper.SetDefault("ACCEPT_OVERFUNDING", false)
}

func initializeViper(filePath string) bool {
	viper.SetConfigFile(filePath)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Printf("Error reading configuration file, %s\n", err)
		return false
	}
	return true
}

// PrepareSwapServerConfig reads configuration variables and returns a SwapServerConfig.
func PrepareSwapServerConfig() (*cmd.SwapServerConfig, error) {

	// *** prepare objects that aren't string type ***

	btcParams, err := cmd.ParseBtcChainConfig(viper.GetString("BTC_CHAIN_CONFIG"))
	if err != nil {
		return nil, err
	}

	var tlsConfig *peer.TLSConfig
	if viper.GetString("PEER_TLS_CERT") != "" {
		tlsConfig = &peer.TLSConfig{
			Cert:   viper.GetString("PEER_TLS_CERT"),
			Key:    viper.GetString("PEER_TLS_KEY"),
			CaCert: viper.GetString("PEER_TLS_CA_CERT"),
		}
	}

	// *** end of preparing objects ***

	return &cmd.SwapServerConfig{
		// state side
		DbFilePath: viper.GetString("DB_FILE_PATH"),
		Seed:       viper.GetString("SEED"),
		Mnemonic:   viper.GetString("MNEMONIC"),
		// btc side
		BtcRpcServer:     viper.GetString("BTC_RPC_SERVER"),
		BtcRpcPort:       viper.GetString("BTC_RPC_PORT"),
		BtcRpcUsername:   viper.GetString("BTC_RPC_USERNAME"),
		BtcRpcPwd:        viper.GetString("BTC_RPC_PWD"),
		BtcChainConfig:   btcParams,
		BtcConfirmations: viper.GetInt64("BTC_CONFIRMATIONS"),
		BtcPollInterval:  viper.GetDuration("BTC_POLL_INTERVAL"),
		BtcStartBlk:      viper.GetInt64("BTC_START_BLK"),
		// eth side
		EthRpcUrl:        viper.GetString("ETH_RPC_URL"),
		EthChainID:       viper.GetInt64("ETH_CHAIN_ID"),
		EthConfirmations: viper.GetUint64("ETH_CONFIRMATIONS"),
		EthPollInterval:  viper.GetDuration("ETH_POLL_INTERVAL"),
		EthStartBlk:      viper.GetUint64("ETH_START_BLK"),
		// peer side
		PeerListen:  viper.GetString("PEER_LISTEN"),
		PeerAddress: viper.GetString("PEER_ADDRESS"),
		PeerTLS:     tlsConfig,
		// Http side
		HttpIp:   viper.GetString("HTTP_IP"),
		HttpPort: viper.GetString("HTTP_PORT"),

		Policy: swap.Policy{
			AcceptOverfunding: viper.GetBool("ACCEPT_OVERFUNDING"),
			MinTimelockGap:    viper.GetDuration("MIN_TIMELOCK_GAP"),
			LivenessBound:     viper.GetDuration("LIVENESS_BOUND"),
		},
	}, nil
}
