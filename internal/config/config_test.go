package config

import "testing"

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}
}

func TestValidateRejectsBadSamplingRate(t *testing.T) {
	cfg := Default()
	cfg.SamplingRate = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for sampling_rate > 1")
	}

	cfg.SamplingRate = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for sampling_rate == 0")
	}
}

func TestValidateRejectsEmptyDBPath(t *testing.T) {
	cfg := Default()
	cfg.DBPath = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty db_path")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/netscope.yaml"); err == nil {
		t.Fatal("expected error loading nonexistent config file")
	}
}
