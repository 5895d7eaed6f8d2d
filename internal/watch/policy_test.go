package watch

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

func TestPolicyZeroSuppression(t *testing.T) {
	policy := NewPolicy(true, decimal.Zero, nil)
	addr := common.Address{1}

	if policy.Allows(addr, decimal.Zero) {
		t.Fatal("零金额应被抑制")
	}
	if !policy.Allows(addr, decimal.NewFromInt(1)) {
		t.Fatal("非零金额应通过")
	}

	relaxed := NewPolicy(false, decimal.Zero, nil)
	if !relaxed.Allows(addr, decimal.Zero) {
		t.Fatal("未启用零抑制时零金额应通过")
	}
}

func TestPolicyThresholdIsStrict(t *testing.T) {
	policy := NewPolicy(false, decimal.NewFromInt(100), nil)
	addr := common.Address{1}

	if policy.Allows(addr, decimal.NewFromInt(100)) {
		t.Fatal("等于阈值应被抑制")
	}
	if !policy.Allows(addr, decimal.RequireFromString("100.01")) {
		t.Fatal("严格大于阈值应通过")
	}
	// Withdrawals compare on magnitude.
	if !policy.Allows(addr, decimal.NewFromInt(-150)) {
		t.Fatal("负金额按绝对值比较, 应通过")
	}
}

func TestPolicySkipList(t *testing.T) {
	skipped := common.HexToAddress("0x9999999999999999999999999999999999999999")
	policy := NewPolicy(false, decimal.Zero, []common.Address{skipped})

	if policy.Allows(skipped, decimal.NewFromInt(1000)) {
		t.Fatal("跳过名单中的参与者应被抑制")
	}
	if !policy.Allows(common.Address{1}, decimal.NewFromInt(1000)) {
		t.Fatal("名单外的参与者应通过")
	}
}
