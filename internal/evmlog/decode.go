package evmlog

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// WordSize is the width of one ABI-encoded argument.
const WordSize = 32

// ErrShortData is returned when a log's data payload does not contain the
// requested word.
var ErrShortData = errors.New("log data too short")

var (
	two255 = new(big.Int).Lsh(big.NewInt(1), 255)
	two256 = new(big.Int).Lsh(big.NewInt(1), 256)
)

// Word returns the i-th 32-byte word of an ABI-encoded data payload.
func Word(data []byte, i int) ([]byte, error) {
	start := i * WordSize
	end := start + WordSize
	if len(data) < end {
		return nil, fmt.Errorf("%w: want word %d, have %d bytes", ErrShortData, i, len(data))
	}
	return data[start:end], nil
}

// U256 decodes the i-th data word as an unsigned 256-bit integer.
func U256(data []byte, i int) (*big.Int, error) {
	w, err := Word(data, i)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(w), nil
}

// I256 decodes the i-th data word as a signed two's-complement 256-bit integer.
func I256(data []byte, i int) (*big.Int, error) {
	v, err := U256(data, i)
	if err != nil {
		return nil, err
	}
	if v.Cmp(two255) >= 0 {
		v.Sub(v, two256)
	}
	return v, nil
}

// U64FromTopic decodes an indexed uint argument that fits in 64 bits,
// such as a position token id.
func U64FromTopic(t common.Hash) uint64 {
	return new(big.Int).SetBytes(t[:]).Uint64()
}

// Int24FromTopic decodes an indexed int24 argument (a tick bound) from its
// 32-byte two's-complement topic encoding.
func Int24FromTopic(t common.Hash) int {
	v := new(big.Int).SetBytes(t[:])
	if v.Cmp(two255) >= 0 {
		v.Sub(v, two256)
	}
	return int(v.Int64())
}

// AddressFromTopic decodes an indexed address argument.
func AddressFromTopic(t common.Hash) common.Address {
	return common.BytesToAddress(t[:])
}
