package etherman

import (
	"github.com/ethereum/go-ethereum/ethclient"
	logger "github.com/sirupsen/logrus"
)

// Dial connects to a json rpc endpoint.
func Dial(cfg *Config) (*Etherman, error) {
	client, err := ethclient.Dial(cfg.URL)
	if err != nil {
		logger.WithField("url", cfg.URL).Errorf("failed to connect to the Ethereum client: %v", err)
		return nil, err
	}
	e, err := NewEtherman(client, cfg)
	if err != nil {
		client.Close()
		return nil, err
	}
	return e, nil
}
