package validator

import "testing"

type sampleConfig struct {
	BindAddr string `validate:"required,bindaddr"`
	MaxSize  int64  `validate:"gt=0"`
}

func TestValidateStruct_Valid(t *testing.T) {
	cfg := sampleConfig{BindAddr: ":8080", MaxSize: 1024}
	if err := ValidateStruct(cfg); err != nil {
		t.Fatalf("expected valid config, got error: %v", err)
	}
}

func TestValidateStruct_InvalidBindAddr(t *testing.T) {
	cfg := sampleConfig{BindAddr: "not-a-bind-addr", MaxSize: 1024}
	if err := ValidateStruct(cfg); err == nil {
		t.Fatal("expected validation error for malformed bind address")
	}
}

func TestValidateStruct_MissingRequired(t *testing.T) {
	cfg := sampleConfig{MaxSize: 1024}
	if err := ValidateStruct(cfg); err == nil {
		t.Fatal("expected validation error for empty bind address")
	}
}

func TestValidateFields_ReportsAllViolations(t *testing.T) {
	cfg := sampleConfig{BindAddr: "bad", MaxSize: -1}
	fields := ValidateFields(cfg)
	if len(fields) != 2 {
		t.Fatalf("expected 2 field violations, got %d: %v", len(fields), fields)
	}
}

func TestValidateBindAddr(t *testing.T) {
	cases := map[string]bool{
		":8080":          true,
		"localhost:9090": true,
		"0.0.0.0:8080":   true,
		"no-port":        false,
		"":                false,
		"host:":           false,
	}
	for addr, want := range cases {
		cfg := sampleConfig{BindAddr: addr, MaxSize: 1}
		got := ValidateStruct(cfg) == nil
		if got != want {
			t.Errorf("bindaddr %q: got valid=%v, want %v", addr, got, want)
		}
	}
}
