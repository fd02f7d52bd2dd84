package tickbitmap

import (
	"errors"
	"fmt"
	"sort"

	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/bitmath"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/tickmath"
	"github.com/holiman/uint256"
)

var (
	ErrInvalidTickSpacing = errors.New("tick spacing must be positive")
	ErrTickMisaligned     = errors.New("tick is not a multiple of tick spacing")
)

// Bitmap records which ticks are initialized. Ticks are compressed by the tick spacing
// and packed 256 to a word; empty words are not stored.
//
// A Bitmap is not safe for concurrent use; its owner serializes access.
type Bitmap struct {
	tickSpacing int64
	words       map[int16]*uint256.Int
}

// New returns an empty bitmap for the given tick spacing.
func New(tickSpacing int64) (*Bitmap, error) {
	if tickSpacing <= 0 {
		return nil, ErrInvalidTickSpacing
	}
	return &Bitmap{
		tickSpacing: tickSpacing,
		words:       make(map[int16]*uint256.Int),
	}, nil
}

// compress rounds tick toward negative infinity in units of the tick spacing.
func (b *Bitmap) compress(tick int64) int64 {
	compressed := tick / b.tickSpacing
	if tick < 0 && tick%b.tickSpacing != 0 {
		compressed--
	}
	return compressed
}

// position returns the word and bit of a compressed tick.
func position(compressed int64) (wordPos int16, bitPos uint8) {
	return int16(compressed >> 8), uint8(compressed & 0xff)
}

// FlipTick toggles the initialized state of tick.
func (b *Bitmap) FlipTick(tick int64) error {
	if tick%b.tickSpacing != 0 {
		return fmt.Errorf("%w: tick %d, spacing %d", ErrTickMisaligned, tick, b.tickSpacing)
	}
	wordPos, bitPos := position(tick / b.tickSpacing)

	word, ok := b.words[wordPos]
	if !ok {
		word = new(uint256.Int)
		b.words[wordPos] = word
	}
	var mask uint256.Int
	mask.Lsh(uint256.NewInt(1), uint(bitPos))
	word.Xor(word, &mask)
	if word.IsZero() {
		delete(b.words, wordPos)
	}
	return nil
}

// IsInitialized reports whether tick is flagged in the bitmap.
func (b *Bitmap) IsInitialized(tick int64) bool {
	if tick%b.tickSpacing != 0 {
		return false
	}
	wordPos, bitPos := position(tick / b.tickSpacing)
	word, ok := b.words[wordPos]
	if !ok {
		return false
	}
	var bit uint256.Int
	bit.Rsh(word, uint(bitPos))
	return bit[0]&1 == 1
}

// NextInitializedTickWithinOneWord returns the next initialized tick contained in the same word
// as tick, either to the left (less than or equal to) or right (greater than) of it.
// When no tick in the word is initialized, it returns the word boundary with initialized false.
func (b *Bitmap) NextInitializedTickWithinOneWord(tick int64, lte bool) (next int64, initialized bool) {
	compressed := b.compress(tick)

	if lte {
		wordPos, bitPos := position(compressed)
		// all the 1s at or to the right of the current bitPos
		var mask, masked uint256.Int
		mask.Lsh(uint256.NewInt(1), uint(bitPos))
		mask.Add(&mask, new(uint256.Int).SubUint64(&mask, 1))
		if word, ok := b.words[wordPos]; ok {
			masked.And(word, &mask)
		}

		if masked.IsZero() {
			return (compressed - int64(bitPos)) * b.tickSpacing, false
		}
		msb, _ := bitmath.MostSignificantBit(&masked)
		return (compressed - int64(bitPos-msb)) * b.tickSpacing, true
	}

	// start from the word of the next tick, since the current tick state doesn't matter
	wordPos, bitPos := position(compressed + 1)
	// all the 1s at or to the left of the bitPos
	var mask, masked uint256.Int
	mask.Lsh(uint256.NewInt(1), uint(bitPos))
	mask.SubUint64(&mask, 1)
	mask.Not(&mask)
	if word, ok := b.words[wordPos]; ok {
		masked.And(word, &mask)
	}

	if masked.IsZero() {
		return (compressed + 1 + int64(255-bitPos)) * b.tickSpacing, false
	}
	lsb, _ := bitmath.LeastSignificantBit(&masked)
	return (compressed + 1 + int64(lsb-bitPos)) * b.tickSpacing, true
}

// NextInitializedTick searches across words for the next initialized tick in the given direction.
// With lte it returns the greatest initialized tick <= tick, otherwise the least initialized tick > tick.
// If none exists it returns MIN_TICK or MAX_TICK with initialized false.
func (b *Bitmap) NextInitializedTick(tick int64, lte bool) (next int64, initialized bool) {
	if len(b.words) == 0 {
		if lte {
			return tickmath.MIN_TICK, false
		}
		return tickmath.MAX_TICK, false
	}

	cursor := tick
	for {
		next, initialized = b.NextInitializedTickWithinOneWord(cursor, lte)
		if initialized {
			return next, true
		}
		if lte {
			if next <= tickmath.MIN_TICK {
				return tickmath.MIN_TICK, false
			}
			cursor = next - 1
		} else {
			if next >= tickmath.MAX_TICK {
				return tickmath.MAX_TICK, false
			}
			cursor = next
		}
	}
}

// Ticks returns every initialized tick in ascending order.
func (b *Bitmap) Ticks() []int64 {
	wordPositions := make([]int, 0, len(b.words))
	for wordPos := range b.words {
		wordPositions = append(wordPositions, int(wordPos))
	}
	sort.Ints(wordPositions)

	var ticks []int64
	for _, wordPos := range wordPositions {
		var word uint256.Int
		word.Set(b.words[int16(wordPos)])
		for !word.IsZero() {
			lsb, _ := bitmath.LeastSignificantBit(&word)
			compressed := int64(wordPos)<<8 + int64(lsb)
			ticks = append(ticks, compressed*b.tickSpacing)

			var bit uint256.Int
			bit.Lsh(uint256.NewInt(1), uint(lsb))
			word.Xor(&word, &bit)
		}
	}
	return ticks
}

// TickSpacing returns the spacing the bitmap was created with.
func (b *Bitmap) TickSpacing() int64 {
	return b.tickSpacing
}
