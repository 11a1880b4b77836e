package types

// Network represents supported blockchain networks
type Network string

const (
	NetworkBase        Network = "base"
	NetworkBaseSepolia Network = "base-sepolia" // testnet
	NetworkPolygon     Network = "polygon"
	NetworkPolygonAmoy Network = "polygon-amoy" // testnet
)

// evmChainIDs maps networks to their EVM chain identifiers.
var evmChainIDs = map[Network]int64{
	NetworkBase:        8453,
	NetworkBaseSepolia: 84532,
	NetworkPolygon:     137,
	NetworkPolygonAmoy: 80002,
}

// IsEVM reports whether the network belongs to the EVM family.
func (n Network) IsEVM() bool {
	_, ok := evmChainIDs[n]
	return ok
}

// IsTestnet reports whether the network is a test network.
func (n Network) IsTestnet() bool {
	return n == NetworkBaseSepolia || n == NetworkPolygonAmoy
}

// ChainID returns the EVM chain id for the network, or 0 if unknown.
func (n Network) ChainID() int64 {
	return evmChainIDs[n]
}

func (n Network) String() string {
	return string(n)
}
