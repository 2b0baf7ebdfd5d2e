package chain

import (
	"context"
	"fmt"
	"math/big"

	"bsc-token-sniper/internal/domain"
)

// RPCPairReader implements PairReader over an RPCClient.
type RPCPairReader struct {
	rpc *RPCClient
}

// NewRPCPairReader creates a pair reader backed by JSON-RPC eth_call.
func NewRPCPairReader(rpc *RPCClient) *RPCPairReader {
	return &RPCPairReader{rpc: rpc}
}

var _ PairReader = (*RPCPairReader)(nil)

// Reserves reads reserves and token ordering at the latest block.
func (r *RPCPairReader) Reserves(ctx context.Context, pairAddress string) (*domain.PairReserves, error) {
	return r.reserves(ctx, pairAddress, "latest")
}

// ReservesAt reads reserves at a specific historical block. Archive data
// availability depends on the node; callers treat failure as "no sample".
func (r *RPCPairReader) ReservesAt(ctx context.Context, pairAddress string, block uint64) (*domain.PairReserves, error) {
	return r.reserves(ctx, pairAddress, uint64ToHex(block))
}

// BlockNumber returns the latest block number.
func (r *RPCPairReader) BlockNumber(ctx context.Context) (uint64, error) {
	return r.rpc.BlockNumber(ctx)
}

func (r *RPCPairReader) reserves(ctx context.Context, pairAddress, blockTag string) (*domain.PairReserves, error) {
	token0, err := r.callAddress(ctx, pairAddress, selToken0, blockTag)
	if err != nil {
		return nil, fmt.Errorf("%w: token0 of %s: %v", ErrNotPair, pairAddress, err)
	}
	token1, err := r.callAddress(ctx, pairAddress, selToken1, blockTag)
	if err != nil {
		return nil, fmt.Errorf("%w: token1 of %s: %v", ErrNotPair, pairAddress, err)
	}

	data, err := callData(selGetReserves)
	if err != nil {
		return nil, err
	}
	ret, err := r.rpc.CallContract(ctx, pairAddress, data, blockTag)
	if err != nil {
		return nil, fmt.Errorf("%w: getReserves of %s: %v", ErrNotPair, pairAddress, err)
	}

	// getReserves returns (uint112 reserve0, uint112 reserve1, uint32 ts)
	w0, err := wordAt(ret, 0)
	if err != nil {
		return nil, err
	}
	w1, err := wordAt(ret, 1)
	if err != nil {
		return nil, err
	}

	return &domain.PairReserves{
		PairAddress: pairAddress,
		Token0:      token0,
		Token1:      token1,
		Reserve0:    new(big.Int).SetBytes(w0),
		Reserve1:    new(big.Int).SetBytes(w1),
	}, nil
}

func (r *RPCPairReader) callAddress(ctx context.Context, to, selector, blockTag string) (string, error) {
	data, err := callData(selector)
	if err != nil {
		return "", err
	}
	ret, err := r.rpc.CallContract(ctx, to, data, blockTag)
	if err != nil {
		return "", err
	}
	word, err := wordAt(ret, 0)
	if err != nil {
		return "", err
	}
	return wordToAddress(word), nil
}
