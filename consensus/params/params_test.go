package params

import "testing"

func TestMainnetValidates(t *testing.T) {
	if err := Mainnet().Validate(); err != nil {
		t.Fatalf("Mainnet().Validate() error: %v", err)
	}
}

func TestQuickConfigValidates(t *testing.T) {
	if err := QuickConfig().Validate(); err != nil {
		t.Fatalf("QuickConfig().Validate() error: %v", err)
	}
}

func TestValidateRejectsZeroSlotsPerEpoch(t *testing.T) {
	cfg := Mainnet()
	cfg.SlotsPerEpoch = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for zero SlotsPerEpoch")
	}
}

func TestValidateRejectsMisalignedEffectiveBalance(t *testing.T) {
	cfg := Mainnet()
	cfg.MaxEffectiveBalance = cfg.EffectiveBalanceIncrement + 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error when MaxEffectiveBalance is not a multiple of the increment")
	}
}
