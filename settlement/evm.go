package settlement

import (
	"context"
	"fmt"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/aurahive/paygate/types"
)

// authorizationStateABI is the fragment of the EIP-3009 token interface the
// verifier needs: authorizationState(authorizer, nonce) reports whether a
// transfer authorization nonce has been consumed.
const authorizationStateABI = `[{"constant":true,"inputs":[{"name":"authorizer","type":"address"},{"name":"nonce","type":"bytes32"}],"name":"authorizationState","outputs":[{"name":"","type":"bool"}],"stateMutability":"view","type":"function"}]`

// EVMBackend queries authorization state through a JSON-RPC node.
type EVMBackend struct {
	rpcURL   string
	network  types.Network
	client   *ethclient.Client
	tokenABI abi.ABI
}

var _ ChainBackend = (*EVMBackend)(nil)

// NewEVMBackend connects to an EVM JSON-RPC endpoint.
func NewEVMBackend(network types.Network, rpcURL string) (*EVMBackend, error) {
	if !network.IsEVM() {
		return nil, &types.Error{Code: types.ErrUnsupportedNetwork, Message: fmt.Sprintf("network %s is not an EVM network", network)}
	}
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ethereum RPC: %w", err)
	}
	parsed, err := abi.JSON(strings.NewReader(authorizationStateABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token ABI: %w", err)
	}
	return &EVMBackend{
		rpcURL:   rpcURL,
		network:  network,
		client:   client,
		tokenABI: parsed,
	}, nil
}

// AuthorizationState implements ChainBackend via eth_call against the asset
// contract.
func (b *EVMBackend) AuthorizationState(ctx context.Context, asset, payer, nonce string) (bool, error) {
	input, err := b.tokenABI.Pack("authorizationState", common.HexToAddress(payer), common.HexToHash(nonce))
	if err != nil {
		return false, fmt.Errorf("failed to pack authorizationState call: %w", err)
	}

	contract := common.HexToAddress(asset)
	msg := ethereum.CallMsg{To: &contract, Data: input}

	output, err := b.client.CallContract(ctx, msg, nil)
	if err != nil {
		return false, fmt.Errorf("authorizationState call failed: %w", err)
	}

	results, err := b.tokenABI.Unpack("authorizationState", output)
	if err != nil {
		return false, fmt.Errorf("failed to unpack authorizationState result: %w", err)
	}
	if len(results) != 1 {
		return false, fmt.Errorf("unexpected authorizationState result arity: %d", len(results))
	}
	consumed, ok := results[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected authorizationState result type %T", results[0])
	}
	return consumed, nil
}

// GetNetwork returns the backend's network.
func (b *EVMBackend) GetNetwork() types.Network {
	return b.network
}

// Close releases the RPC connection.
func (b *EVMBackend) Close() {
	if b.client != nil {
		b.client.Close()
	}
}
