// Package evmlog holds the event signatures and raw word decoding helpers
// shared by the log indexer and the position builder.
package evmlog

import "github.com/ethereum/go-ethereum/common"

// Event signature hashes (topic[0]) for the contracts this system reads.
var (
	// TopicERC20Transfer: Transfer(address indexed from, address indexed to, uint256 value)
	TopicERC20Transfer = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

	// TopicPoolSwap: Swap(address indexed sender, address indexed recipient,
	// int256 amount0, int256 amount1, uint160 sqrtPriceX96, uint128 liquidity, int24 tick)
	TopicPoolSwap = common.HexToHash("0xc42079f94a6350d7e6235f29174924f928cc2ac818eb64fed8004e115fbcca67")

	// TopicPoolMint: Mint(address sender, address indexed owner,
	// int24 indexed tickLower, int24 indexed tickUpper,
	// uint128 amount, uint256 amount0, uint256 amount1)
	TopicPoolMint = common.HexToHash("0x7a53080ba414158be7ec69b987b5fb7d07dee101fe85488f0853ae16239d0bde")

	// TopicIncreaseLiquidity: IncreaseLiquidity(uint256 indexed tokenId,
	// uint128 liquidity, uint256 amount0, uint256 amount1)
	TopicIncreaseLiquidity = common.HexToHash("0x3067048beee31b25b2f1681f88dac838c8bba36af25bfb2b7cf7473a5847e35f")

	// TopicDecreaseLiquidity: DecreaseLiquidity(uint256 indexed tokenId,
	// uint128 liquidity, uint256 amount0, uint256 amount1)
	TopicDecreaseLiquidity = common.HexToHash("0x26f6a048ee9138f2c0ce266f322cb99228e8d619ae2bff30c67f8dcf9d2377b4")

	// TopicCollect: Collect(uint256 indexed tokenId, address recipient,
	// uint256 amount0, uint256 amount1) on the position manager.
	TopicCollect = common.HexToHash("0x40d0efd1a53d60ecbf40971b9daf7dc90178c3aadc7aab1765632738fa8b8f01")
)

// IsEvent reports whether the log's signature topic matches sig.
func IsEvent(topics []common.Hash, sig common.Hash) bool {
	return len(topics) > 0 && topics[0] == sig
}
