package tickmath

import (
	"errors"

	"github.com/holiman/uint256"
)

const (
	// MIN_TICK is the minimum tick that may be passed to GetSqrtRatioAtTick.
	MIN_TICK = int64(-887272)
	// MAX_TICK is the maximum tick that may be passed to GetSqrtRatioAtTick.
	MAX_TICK = int64(887272)
)

var (
	// MIN_SQRT_RATIO is the value returned by GetSqrtRatioAtTick(MIN_TICK).
	MIN_SQRT_RATIO = uint256.MustFromDecimal("4295128739")
	// MAX_SQRT_RATIO is the value returned by GetSqrtRatioAtTick(MAX_TICK).
	MAX_SQRT_RATIO = uint256.MustFromDecimal("1461446703485210103287273052203988822378723970342")

	ErrTickOutOfBounds      = errors.New("tick out of bounds")
	ErrSqrtPriceOutOfBounds = errors.New("sqrt price out of bounds")

	maxUint256 = new(uint256.Int).SetAllOne()
	lowMask32  = uint256.NewInt(0xffffffff)

	// ratioConstants[0] is sqrt(1.0001^-1) and ratioConstants[1] is 1, both in Q128.128.
	// ratioConstants[i] for i >= 2 is sqrt(1.0001^-(2^(i-1))).
	ratioConstants = [21]*uint256.Int{
		uint256.MustFromHex("0xfffcb933bd6fad37aa2d162d1a594001"),
		uint256.MustFromHex("0x100000000000000000000000000000000"),
		uint256.MustFromHex("0xfff97272373d413259a46990580e213a"),
		uint256.MustFromHex("0xfff2e50f5f656932ef12357cf3c7fdcc"),
		uint256.MustFromHex("0xffe5caca7e10e4e61c3624eaa0941cd0"),
		uint256.MustFromHex("0xffcb9843d60f6159c9db58835c926644"),
		uint256.MustFromHex("0xff973b41fa98c081472e6896dfb254c0"),
		uint256.MustFromHex("0xff2ea16466c96a3843ec78b326b52861"),
		uint256.MustFromHex("0xfe5dee046a99a2a811c461f1969c3053"),
		uint256.MustFromHex("0xfcbe86c7900a88aedcffc83b479aa3a4"),
		uint256.MustFromHex("0xf987a7253ac413176f2b074cf7815e54"),
		uint256.MustFromHex("0xf3392b0822b70005940c7a398e4b70f3"),
		uint256.MustFromHex("0xe7159475a2c29b7443b29c7fa6e889d9"),
		uint256.MustFromHex("0xd097f3bdfd2022b8845ad8f792aa5825"),
		uint256.MustFromHex("0xa9f746462d870fdf8a65dc1f90e061e5"),
		uint256.MustFromHex("0x70d869a156d2a1b890bb3df62baf32f7"),
		uint256.MustFromHex("0x31be135f97d08fd981231505542fcfa6"),
		uint256.MustFromHex("0x9aa508b5b7a84e1c677de54f3e99bc9"),
		uint256.MustFromHex("0x5d6af8dedb81196699c329225ee604"),
		uint256.MustFromHex("0x2216e584f5fa1ea926041bedfe98"),
		uint256.MustFromHex("0x48a170391f7dc42444e8fa2"),
	}

	// log base sqrt(1.0001) of 2, in Q128.128
	logSqrt10001Multiplier = uint256.MustFromDecimal("255738958999603826347141")
	// error bounds of the log approximation, in Q128.128
	tickLowOffset = uint256.MustFromDecimal("3402992956809132418596140100660247210")
	tickHiOffset  = uint256.MustFromDecimal("291339464771989622907027621153398088495")
)

// GetSqrtRatioAtTick writes sqrt(1.0001^tick) * 2^96 into dest, rounded up.
func GetSqrtRatioAtTick(dest *uint256.Int, tick int64) error {
	if tick < MIN_TICK || tick > MAX_TICK {
		return ErrTickOutOfBounds
	}

	absTick := tick
	if tick < 0 {
		absTick = -tick
	}

	var ratio uint256.Int
	if absTick&0x1 != 0 {
		ratio.Set(ratioConstants[0])
	} else {
		ratio.Set(ratioConstants[1])
	}
	for i := 2; i < len(ratioConstants); i++ {
		if absTick&(1<<(i-1)) != 0 {
			ratio.Mul(&ratio, ratioConstants[i])
			ratio.Rsh(&ratio, 128)
		}
	}

	if tick > 0 {
		ratio.Div(maxUint256, &ratio)
	}

	// Q128.128 to Q64.96, rounding up so the result never undershoots the true ratio.
	var rem uint256.Int
	rem.And(&ratio, lowMask32)
	dest.Rsh(&ratio, 32)
	if !rem.IsZero() {
		dest.AddUint64(dest, 1)
	}
	return nil
}

// GetTickAtSqrtRatio returns the greatest tick such that GetSqrtRatioAtTick(tick) <= sqrtPriceX96.
// The price must lie in [MIN_SQRT_RATIO, MAX_SQRT_RATIO).
func GetTickAtSqrtRatio(sqrtPriceX96 *uint256.Int) (int64, error) {
	if sqrtPriceX96.Lt(MIN_SQRT_RATIO) || !sqrtPriceX96.Lt(MAX_SQRT_RATIO) {
		return 0, ErrSqrtPriceOutOfBounds
	}

	var ratio, r uint256.Int
	ratio.Lsh(sqrtPriceX96, 32)

	msb := ratio.BitLen() - 1
	if msb >= 128 {
		r.Rsh(&ratio, uint(msb-127))
	} else {
		r.Lsh(&ratio, uint(127-msb))
	}

	// log2 is a signed Q64.64 held in two's complement.
	var log2 uint256.Int
	intPart := int64(msb - 128)
	if intPart < 0 {
		log2.Neg(uint256.NewInt(uint64(-intPart)))
	} else {
		log2.SetUint64(uint64(intPart))
	}
	log2.Lsh(&log2, 64)

	var f uint256.Int
	for bit := uint(63); bit >= 50; bit-- {
		r.Mul(&r, &r)
		r.Rsh(&r, 127)
		f.Rsh(&r, 128)
		if !f.IsZero() {
			log2.Or(&log2, f.Lsh(&f, bit))
			r.Rsh(&r, 1)
		}
	}

	var logSqrt10001, low, high uint256.Int
	logSqrt10001.Mul(&log2, logSqrt10001Multiplier)

	low.Sub(&logSqrt10001, tickLowOffset)
	low.SRsh(&low, 128)
	high.Add(&logSqrt10001, tickHiOffset)
	high.SRsh(&high, 128)

	tickLow, tickHi := int64(low[0]), int64(high[0])
	if tickLow == tickHi {
		return tickLow, nil
	}

	var atHi uint256.Int
	if err := GetSqrtRatioAtTick(&atHi, tickHi); err != nil {
		return 0, err
	}
	if !atHi.Gt(sqrtPriceX96) {
		return tickHi, nil
	}
	return tickLow, nil
}
