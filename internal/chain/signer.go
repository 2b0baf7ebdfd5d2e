package chain

import (
	"context"
	"fmt"
)

// RemoteSigner implements Signer by delegating to the node's
// eth_signTransaction, so key custody stays with the node (unlocked
// account or an attached Clef). The sniper process never sees the key.
type RemoteSigner struct {
	rpc     *RPCClient
	address string
}

// NewRemoteSigner creates a signer for an account the node can sign for.
func NewRemoteSigner(rpc *RPCClient, address string) *RemoteSigner {
	return &RemoteSigner{rpc: rpc, address: address}
}

var _ Signer = (*RemoteSigner)(nil)

// Address returns the signing account.
func (s *RemoteSigner) Address() string {
	return s.address
}

// signResult is the subset of the eth_signTransaction response we consume.
type signResult struct {
	Raw string `json:"raw"`
}

// SignTx asks the node to sign the transaction and returns the raw
// RLP-encoded bytes.
func (s *RemoteSigner) SignTx(ctx context.Context, tx *TxParams) ([]byte, error) {
	value := "0x0"
	if tx.Value != nil && tx.Value.Sign() > 0 {
		value = "0x" + tx.Value.Text(16)
	}
	params := []interface{}{
		map[string]interface{}{
			"from":     s.address,
			"to":       tx.To,
			"value":    value,
			"data":     bytesToHex(tx.Data),
			"nonce":    uint64ToHex(tx.Nonce),
			"gas":      uint64ToHex(tx.GasLimit),
			"gasPrice": uint64ToHex(tx.GasPrice),
		},
	}

	var result signResult
	if err := s.rpc.Call(ctx, "eth_signTransaction", params, &result); err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	if result.Raw == "" {
		return nil, fmt.Errorf("sign transaction: node returned no raw payload")
	}
	return hexToBytes(result.Raw)
}
