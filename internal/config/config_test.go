package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}

	if cfg.Scanner.DefaultStartBlock != 15_000_000 {
		t.Fatalf("默认起始区块不正确: %d", cfg.Scanner.DefaultStartBlock)
	}
	if cfg.Scheduler.Interval != 5*time.Minute {
		t.Fatalf("默认调度间隔不正确: %v", cfg.Scheduler.Interval)
	}
	if cfg.Alerting.Telegram.Timeout != 10*time.Second {
		t.Fatalf("默认 Telegram 超时不正确: %v", cfg.Alerting.Telegram.Timeout)
	}
	if cfg.Alerting.Telegram.APIBase != "https://api.telegram.org" {
		t.Fatalf("默认 Telegram API 地址不正确: %q", cfg.Alerting.Telegram.APIBase)
	}
	if cfg.Watch.MintThreshold != 150_000 {
		t.Fatalf("默认铸币阈值不正确: %v", cfg.Watch.MintThreshold)
	}
}

func TestValidateRejectsEnabledAlertingWithoutToken(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}

	cfg.Alerting.Enabled = true
	cfg.Alerting.Telegram.BotToken = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("启用告警但缺少 bot_token 应校验失败")
	}
}
