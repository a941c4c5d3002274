package ledger

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/shopspring/decimal"
)

var ErrInvalidQuantity = errors.New("invalid asset quantity")

const etherDecimals = 18

// Asset is a non-negative quantity of the native asset of one ledger.
type Asset interface {
	Ledger() Kind
	IsZero() bool
	// Cmp compares with another quantity of the same ledger and panics
	// when the ledgers differ.
	Cmp(other Asset) int
	String() string
}

// BitcoinQuantity counts satoshi.
type BitcoinQuantity struct {
	Sat btcutil.Amount
}

func NewBitcoinQuantity(sat int64) BitcoinQuantity {
	return BitcoinQuantity{Sat: btcutil.Amount(sat)}
}

// ParseBitcoin parses a decimal amount of BTC, e.g. "1.5".
func ParseBitcoin(s string) (BitcoinQuantity, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return BitcoinQuantity{}, fmt.Errorf("%w: %v", ErrInvalidQuantity, err)
	}
	sat := d.Shift(8)
	if !sat.IsInteger() || sat.IsNegative() {
		return BitcoinQuantity{}, fmt.Errorf("%w: %s", ErrInvalidQuantity, s)
	}
	return BitcoinQuantity{Sat: btcutil.Amount(sat.IntPart())}, nil
}

func (q BitcoinQuantity) Ledger() Kind { return Bitcoin }
func (q BitcoinQuantity) IsZero() bool { return q.Sat == 0 }

func (q BitcoinQuantity) Cmp(other Asset) int {
	o := mustSameLedger[BitcoinQuantity](q, other)
	switch {
	case q.Sat < o.Sat:
		return -1
	case q.Sat > o.Sat:
		return 1
	}
	return 0
}

func (q BitcoinQuantity) Add(o BitcoinQuantity) BitcoinQuantity {
	return BitcoinQuantity{Sat: q.Sat + o.Sat}
}

func (q BitcoinQuantity) Sub(o BitcoinQuantity) BitcoinQuantity {
	return BitcoinQuantity{Sat: q.Sat - o.Sat}
}

func (q BitcoinQuantity) String() string {
	return decimal.New(int64(q.Sat), -8).String()
}

// EtherQuantity counts wei.
type EtherQuantity struct {
	Wei *big.Int
}

func NewEtherQuantity(wei *big.Int) EtherQuantity {
	if wei == nil {
		wei = new(big.Int)
	}
	return EtherQuantity{Wei: new(big.Int).Set(wei)}
}

// ParseEther parses a decimal amount of ETH, e.g. "10.0".
func ParseEther(s string) (EtherQuantity, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return EtherQuantity{}, fmt.Errorf("%w: %v", ErrInvalidQuantity, err)
	}
	wei := d.Shift(etherDecimals)
	if !wei.IsInteger() || wei.IsNegative() {
		return EtherQuantity{}, fmt.Errorf("%w: %s", ErrInvalidQuantity, s)
	}
	return EtherQuantity{Wei: wei.BigInt()}, nil
}

func (q EtherQuantity) Ledger() Kind { return Ethereum }

func (q EtherQuantity) IsZero() bool { return q.Wei == nil || q.Wei.Sign() == 0 }

func (q EtherQuantity) Cmp(other Asset) int {
	o := mustSameLedger[EtherQuantity](q, other)
	return q.wei().Cmp(o.wei())
}

func (q EtherQuantity) Add(o EtherQuantity) EtherQuantity {
	return EtherQuantity{Wei: new(big.Int).Add(q.wei(), o.wei())}
}

func (q EtherQuantity) Sub(o EtherQuantity) EtherQuantity {
	return EtherQuantity{Wei: new(big.Int).Sub(q.wei(), o.wei())}
}

func (q EtherQuantity) String() string {
	return decimal.NewFromBigInt(q.wei(), -etherDecimals).String()
}

func (q EtherQuantity) wei() *big.Int {
	if q.Wei == nil {
		return new(big.Int)
	}
	return q.Wei
}

func mustSameLedger[T Asset](self Asset, other Asset) T {
	o, ok := other.(T)
	if !ok {
		panic(fmt.Sprintf("%v: cannot compare %s with %s", ErrAssetMismatch, self.Ledger(), other.Ledger()))
	}
	return o
}

// BaseUnits renders a quantity in its smallest unit: satoshi or wei.
func BaseUnits(a Asset) string {
	switch q := a.(type) {
	case BitcoinQuantity:
		return fmt.Sprintf("%d", int64(q.Sat))
	case EtherQuantity:
		return q.wei().String()
	}
	return ""
}

// ParseBaseUnits is the inverse of BaseUnits.
func ParseBaseUnits(kind Kind, s string) (Asset, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidQuantity, s)
	}
	switch kind {
	case Bitcoin:
		if !v.IsInt64() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidQuantity, s)
		}
		return NewBitcoinQuantity(v.Int64()), nil
	case Ethereum:
		return EtherQuantity{Wei: v}, nil
	}
	return nil, ErrUnsupportedLedger
}
