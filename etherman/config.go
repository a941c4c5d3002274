package etherman

import "math/big"

type Config struct {
	// URL is the URL of the Ethereum node
	URL string

	// ChainID the node must report, nil skips the check
	ChainID *big.Int

	// Confirmations is the depth below the head a block needs before it is
	// treated as final. 0 trusts the head.
	Confirmations uint64
}
