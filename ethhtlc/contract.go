/*
Package ethhtlc holds the ethereum htlc contract.

The runtime code has a single entry point. A call with exactly 32 bytes of
calldata whose sha256 equals the secret hash logs Redeemed(secret) and sends
the balance to the redeem address. Any other call after expiry logs Refunded
and sends the balance to the refund address; before expiry it reverts. Once
the balance is gone every call reverts.
*/
package ethhtlc

import (
	"encoding/binary"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/TEENet-io/swap-go/secret"
)

const (
	// fits deployment of the runtime code with a margin
	DeployGasLimit uint64 = 200_000
	RedeemGasLimit uint64 = 100_000
	RefundGasLimit uint64 = 100_000

	sha256Precompile = 0x02
	initCodeSize     = 13
)

var (
	RedeemedTopic = crypto.Keccak256Hash([]byte("Redeemed()"))
	RefundedTopic = crypto.Keccak256Hash([]byte("Refunded()"))

	ErrExpiryOutOfRange = errors.New("expiry does not fit in 32 bits")
)

// Contract is the set of values baked into one htlc.
type Contract struct {
	RedeemAddress common.Address
	RefundAddress common.Address
	SecretHash    secret.Hash
	Expiry        time.Time
}

// RuntimeCode is the code living at the htlc address.
func (c *Contract) RuntimeCode() ([]byte, error) {
	if c.Expiry.Unix() < 0 || c.Expiry.Unix() > int64(^uint32(0)) {
		return nil, ErrExpiryOutOfRange
	}
	var expiry [4]byte
	binary.BigEndian.PutUint32(expiry[:], uint32(c.Expiry.Unix()))

	a := newAssembler()

	// drained htlcs accept nothing
	a.op(vm.SELFBALANCE, vm.ISZERO).pushLabel("revert").op(vm.JUMPI)

	// mem[0:32] = calldata[0:32]
	a.push1(32).push1(0).push1(0).op(vm.CALLDATACOPY)
	a.op(vm.CALLDATASIZE).push1(32).op(vm.EQ, vm.ISZERO).pushLabel("refund").op(vm.JUMPI)

	// mem[32:64] = sha256(mem[0:32])
	a.push1(32).push1(32).push1(32).push1(0).push1(sha256Precompile).op(vm.GAS, vm.STATICCALL)
	a.op(vm.ISZERO).pushLabel("revert").op(vm.JUMPI)
	a.push1(32).op(vm.MLOAD).push(c.SecretHash[:]).op(vm.EQ).pushLabel("redeem").op(vm.JUMPI)
	a.pushLabel("revert").op(vm.JUMP)

	a.label("refund")
	a.push(expiry[:]).op(vm.TIMESTAMP, vm.LT).pushLabel("revert").op(vm.JUMPI)
	a.push(RefundedTopic[:]).push1(0).push1(0).op(vm.LOG1)
	a.push(c.RefundAddress[:]).op(vm.SELFDESTRUCT)

	a.label("redeem")
	a.push(RedeemedTopic[:]).push1(32).push1(0).op(vm.LOG1)
	a.push(c.RedeemAddress[:]).op(vm.SELFDESTRUCT)

	a.label("revert")
	a.push1(0).push1(0).op(vm.REVERT)

	return a.assemble()
}

// DeployCode is the contract creation payload: a fixed-size loader followed
// by the runtime code. Deterministic for a given Contract.
func (c *Contract) DeployCode() ([]byte, error) {
	runtime, err := c.RuntimeCode()
	if err != nil {
		return nil, err
	}
	var size [2]byte
	binary.BigEndian.PutUint16(size[:], uint16(len(runtime)))

	a := newAssembler()
	a.push(size[:]).op(vm.DUP1)
	a.push([]byte{0, initCodeSize}).push1(0).op(vm.CODECOPY)
	a.push1(0).op(vm.RETURN)
	loader, err := a.assemble()
	if err != nil {
		return nil, err
	}
	if len(loader) != initCodeSize {
		panic("htlc loader size changed")
	}
	return append(loader, runtime...), nil
}

// RedeemData is the calldata of a redeem call.
func RedeemData(s secret.Secret) []byte {
	return s.Bytes()
}

// RefundData is the calldata of a refund call.
func RefundData() []byte {
	return []byte{}
}
