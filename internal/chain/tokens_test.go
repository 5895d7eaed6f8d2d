package chain

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// pointReadFunc stubs the Reader surface the token directory touches.
type pointReadFunc struct {
	Reader
	fn    func(contract common.Address, method string) ([]any, error)
	calls int
}

func (s *pointReadFunc) PointRead(ctx context.Context, contract common.Address, method string, block uint64, args ...any) ([]any, error) {
	s.calls++
	return s.fn(contract, method)
}

func TestTokenDirectoryResolvesMetadata(t *testing.T) {
	token := common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	reader := &pointReadFunc{fn: func(contract common.Address, method string) ([]any, error) {
		switch method {
		case "symbol":
			return []any{"DAI"}, nil
		case "decimals":
			return []any{uint8(18)}, nil
		}
		return nil, errors.New("unexpected method")
	}}

	dir := NewTokenDirectory(reader, common.Address{}, zerolog.Nop())
	info := dir.Lookup(context.Background(), token)

	if info.Symbol != "DAI" || info.Decimals != 18 || info.Approximate {
		t.Fatalf("元数据解析错误: %+v", info)
	}

	// Second lookup must come from cache.
	calls := reader.calls
	dir.Lookup(context.Background(), token)
	if reader.calls != calls {
		t.Fatalf("重复查询不应再次发起调用: %d -> %d", calls, reader.calls)
	}
}

func TestTokenDirectoryFallback(t *testing.T) {
	token := common.HexToAddress("0x4444444444444444444444444444444444444444")
	reader := &pointReadFunc{fn: func(contract common.Address, method string) ([]any, error) {
		return nil, errors.New("execution reverted")
	}}

	dir := NewTokenDirectory(reader, common.Address{}, zerolog.Nop())
	info := dir.Lookup(context.Background(), token)

	if info.Decimals != 18 {
		t.Fatalf("回退精度应为 18, 实际 %d", info.Decimals)
	}
	if !info.Approximate {
		t.Fatal("回退结果应标记为近似值")
	}
	if info.Symbol == "" {
		t.Fatal("回退符号不应为空")
	}
}

func TestTokenDirectoryNativePlaceholder(t *testing.T) {
	weth := common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	reader := &pointReadFunc{fn: func(contract common.Address, method string) ([]any, error) {
		return nil, errors.New("should not be called")
	}}

	dir := NewTokenDirectory(reader, weth, zerolog.Nop())

	if got := dir.Normalize(NativePlaceholder); got != weth {
		t.Fatalf("占位地址应归一化为 WETH, 实际 %s", got.Hex())
	}

	info := dir.Lookup(context.Background(), NativePlaceholder)
	if info.Symbol != "ETH" || info.Decimals != 18 {
		t.Fatalf("占位地址应直接解析为 ETH/18: %+v", info)
	}
	if reader.calls != 0 {
		t.Fatal("占位地址不应发起链上调用")
	}
}
