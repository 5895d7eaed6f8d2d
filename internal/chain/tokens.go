package chain

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// NativePlaceholder is the pseudo-address some protocols use for the
// native asset inside token fields.
var NativePlaceholder = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

// TokenInfo is resolved ERC-20 metadata. Approximate marks entries where
// the on-chain lookup failed and the 18-decimal fallback was applied;
// amounts normalized with it should be rendered as approximate.
type TokenInfo struct {
	Address     common.Address
	Symbol      string
	Decimals    int32
	Approximate bool
}

// TokenDirectory resolves and caches token metadata. An unknown or
// misbehaving token never fails the caller: the directory falls back to
// 18 decimals and an abbreviated-address symbol.
type TokenDirectory struct {
	reader Reader
	weth   common.Address
	logger zerolog.Logger

	mu    sync.Mutex
	cache map[common.Address]TokenInfo
}

// NewTokenDirectory builds a directory over reader. weth is substituted
// for the native-asset placeholder.
func NewTokenDirectory(reader Reader, weth common.Address, logger zerolog.Logger) *TokenDirectory {
	return &TokenDirectory{
		reader: reader,
		weth:   weth,
		logger: logger.With().Str("component", "token_directory").Logger(),
		cache:  make(map[common.Address]TokenInfo),
	}
}

// Normalize maps the native placeholder to WETH and leaves every other
// address untouched.
func (d *TokenDirectory) Normalize(token common.Address) common.Address {
	if token == NativePlaceholder {
		return d.weth
	}
	return token
}

// Lookup resolves symbol and decimals for token, serving repeats from
// cache. The native placeholder resolves to ETH/18 without a call.
func (d *TokenDirectory) Lookup(ctx context.Context, token common.Address) TokenInfo {
	if token == NativePlaceholder {
		return TokenInfo{Address: token, Symbol: "ETH", Decimals: 18}
	}

	d.mu.Lock()
	if info, ok := d.cache[token]; ok {
		d.mu.Unlock()
		return info
	}
	d.mu.Unlock()

	info := d.resolve(ctx, token)

	d.mu.Lock()
	d.cache[token] = info
	d.mu.Unlock()
	return info
}

func (d *TokenDirectory) resolve(ctx context.Context, token common.Address) TokenInfo {
	info := TokenInfo{Address: token, Symbol: abbreviate(token), Decimals: 18, Approximate: true}

	if outputs, err := d.reader.PointRead(ctx, token, "symbol", 0); err == nil && len(outputs) == 1 {
		if symbol, ok := outputs[0].(string); ok && symbol != "" {
			info.Symbol = symbol
		}
	} else if err != nil {
		d.logger.Debug().Err(err).Str("token", token.Hex()).Msg("symbol lookup failed")
	}

	outputs, err := d.reader.PointRead(ctx, token, "decimals", 0)
	if err != nil || len(outputs) != 1 {
		d.logger.Debug().Err(err).Str("token", token.Hex()).Msg("decimals lookup failed, assuming 18")
		return info
	}
	decimals, ok := outputs[0].(uint8)
	if !ok {
		return info
	}

	info.Decimals = int32(decimals)
	info.Approximate = false
	return info
}

func abbreviate(addr common.Address) string {
	return addr.Hex()[:7] + "…"
}
