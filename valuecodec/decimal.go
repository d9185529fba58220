package valuecodec

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// decimal128Bits is the wire-exact layout of spec.md §4.1's Decimal128:
// four little-endian int32 words following the .NET System.Decimal
// convention — flags (sign in bit 31, scale in bits 16-23), then the
// 96-bit unsigned integer coefficient split into hi/mid/lo 32-bit words.
type decimal128Bits struct {
	Flags int32
	Hi    int32
	Mid   int32
	Lo    int32
}

const decimalSignMask = int32(1) << 31

func encodeDecimal128(d decimal.Decimal) (decimal128Bits, error) {
	coeff := d.Coefficient()
	scale := -d.Exponent()
	if scale < 0 || scale > 28 {
		return decimal128Bits{}, fmt.Errorf("valuecodec: decimal scale %d out of range [0,28]", scale)
	}

	neg := coeff.Sign() < 0
	mag := new(big.Int).Abs(coeff)

	maxVal := new(big.Int).Lsh(big.NewInt(1), 96)
	if mag.Cmp(maxVal) >= 0 {
		return decimal128Bits{}, fmt.Errorf("valuecodec: decimal coefficient overflows 96 bits")
	}

	mask32 := big.NewInt(0).SetUint64(0xFFFFFFFF)
	lo := new(big.Int).And(mag, mask32).Uint64()
	mid := new(big.Int).And(new(big.Int).Rsh(mag, 32), mask32).Uint64()
	hi := new(big.Int).And(new(big.Int).Rsh(mag, 64), mask32).Uint64()

	flags := int32(scale) << 16
	if neg {
		flags |= decimalSignMask
	}

	return decimal128Bits{
		Flags: flags,
		Hi:    int32(uint32(hi)),
		Mid:   int32(uint32(mid)),
		Lo:    int32(uint32(lo)),
	}, nil
}

func decodeDecimal128(b decimal128Bits) decimal.Decimal {
	scale := int32((uint32(b.Flags) >> 16) & 0xFF)
	neg := b.Flags&decimalSignMask != 0

	mag := new(big.Int)
	mag.Or(mag, new(big.Int).Lsh(big.NewInt(int64(uint32(b.Hi))), 64))
	mag.Or(mag, new(big.Int).Lsh(big.NewInt(int64(uint32(b.Mid))), 32))
	mag.Or(mag, big.NewInt(int64(uint32(b.Lo))))

	if neg {
		mag.Neg(mag)
	}

	return decimal.NewFromBigInt(mag, -scale)
}
