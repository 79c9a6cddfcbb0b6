package config

import "testing"

func TestValidateFailsClosedInProduction(t *testing.T) {
	cfg := Config{Environment: "production"}
	if err := cfg.validate(); err == nil {
		t.Fatal("expected error when production config has no webhook token")
	}

	cfg.XenditWebhookToken = "token"
	if err := cfg.validate(); err == nil {
		t.Fatal("expected error when production config has no admin token")
	}

	cfg.AdminToken = "admin"
	cfg.XenditSecretKey = "key"
	if err := cfg.validate(); err != nil {
		t.Fatalf("expected fully configured production config to validate, got %v", err)
	}
}

func TestValidateAllowsDevelopmentBypass(t *testing.T) {
	cfg := Config{Environment: "development"}
	if err := cfg.validate(); err != nil {
		t.Fatalf("development config should not require payment secrets, got %v", err)
	}
}

func TestRuntimeIssues(t *testing.T) {
	cfg := Config{Environment: "development"}
	issues := cfg.RuntimeIssues()
	if len(issues) != 3 {
		t.Fatalf("expected 3 issues for empty config, got %d: %v", len(issues), issues)
	}

	cfg.OpenAIAPIKey = "sk-test"
	cfg.GroqAPIKey = "gsk-test"
	cfg.XenditSecretKey = "xnd-test"
	if issues := cfg.RuntimeIssues(); len(issues) != 0 {
		t.Fatalf("expected no issues, got %v", issues)
	}
}
