package chain

import (
	"context"
	"math/big"
)

// Known BSC liquidity locker contracts, in priority order.
const (
	PinkLockV2   = "0x407993575c91ce7643a4d4cCB70Fa97C6469b9e2"
	UnicryptBSC  = "0xC765bddB93b0D1c1A88282BA0fa6B2d00E3e0c83"
	MudraLockBSC = "0x8B0b2C87A3c7b77c30Ac446058A6B83f771c3E8e"
)

// BalanceLockChecker reports liquidity as locked when a locker contract
// itself holds LP tokens of the pair: the check is an ERC-20
// balanceOf(locker) call on the LP token.
type BalanceLockChecker struct {
	name   string
	locker string
	rpc    *RPCClient
}

// NewBalanceLockChecker creates a lock checker for one locker contract.
func NewBalanceLockChecker(name, lockerAddress string, rpc *RPCClient) *BalanceLockChecker {
	return &BalanceLockChecker{name: name, locker: lockerAddress, rpc: rpc}
}

var _ LockChecker = (*BalanceLockChecker)(nil)

// Name identifies the locker for logging.
func (c *BalanceLockChecker) Name() string {
	return c.name
}

// LockedAmount returns the LP token balance held by the locker contract.
func (c *BalanceLockChecker) LockedAmount(ctx context.Context, lpToken string) (*big.Int, error) {
	owner, err := addressWord(c.locker)
	if err != nil {
		return nil, err
	}
	data, err := callData(selBalanceOf, owner)
	if err != nil {
		return nil, err
	}
	ret, err := c.rpc.CallContract(ctx, lpToken, data, "latest")
	if err != nil {
		return nil, err
	}
	word, err := wordAt(ret, 0)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(word), nil
}

// DefaultLockCheckers returns the built-in locker list in priority order.
func DefaultLockCheckers(rpc *RPCClient) []LockChecker {
	return []LockChecker{
		NewBalanceLockChecker("pinklock", PinkLockV2, rpc),
		NewBalanceLockChecker("unicrypt", UnicryptBSC, rpc),
		NewBalanceLockChecker("mudra", MudraLockBSC, rpc),
	}
}
