package prompt

import (
	"testing"
	"time"
)

func TestDecodeInstallButton(t *testing.T) {
	for _, raw := range []string{"0", "1", " 1\n"} {
		decision, err := decodeHelperResult(raw, VariantStandard)
		if err != nil {
			t.Fatalf("decode %q: %v", raw, err)
		}
		if decision.Outcome != OutcomeInstall {
			t.Fatalf("decode %q: expected install, got %v", raw, decision.Outcome)
		}
	}
}

func TestDecodePostponeButton(t *testing.T) {
	decision, err := decodeHelperResult("2", VariantReminder)
	if err != nil {
		t.Fatal(err)
	}
	if decision.Outcome != OutcomePostpone {
		t.Fatalf("expected postpone, got %v", decision.Outcome)
	}
}

func TestDecodeCompositeDeferral(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Duration
	}{
		{"36001", 3600 * time.Second},
		{"72001", 7200 * time.Second},
		{"144001", 14400 * time.Second},
	}

	for _, tc := range cases {
		decision, err := decodeHelperResult(tc.raw, VariantStandard)
		if err != nil {
			t.Fatalf("decode %q: %v", tc.raw, err)
		}
		if decision.Outcome != OutcomeDefer {
			t.Fatalf("decode %q: expected defer, got %v", tc.raw, decision.Outcome)
		}
		if decision.Offset != tc.want {
			t.Fatalf("decode %q: expected offset %v, got %v", tc.raw, tc.want, decision.Offset)
		}
	}
}

func TestDecodeCompositeZeroDelayIsInstall(t *testing.T) {
	// "Start now" selected from the delay list, then button 1.
	decision, err := decodeHelperResult("01", VariantStandard)
	if err != nil {
		t.Fatal(err)
	}
	if decision.Outcome != OutcomeInstall {
		t.Fatalf("expected install for zero delay, got %v", decision.Outcome)
	}
}

func TestDecodeCompositePostponeIgnoresDelay(t *testing.T) {
	decision, err := decodeHelperResult("36002", VariantStandard)
	if err != nil {
		t.Fatal(err)
	}
	if decision.Outcome != OutcomePostpone {
		t.Fatalf("expected postpone, got %v", decision.Outcome)
	}
}

func TestDecodeDismissSentinel(t *testing.T) {
	for _, variant := range []Variant{VariantStandard, VariantForced, VariantReminder} {
		decision, err := decodeHelperResult("239", variant)
		if err != nil {
			t.Fatalf("variant %v: %v", variant, err)
		}
		if decision.Outcome != OutcomeDismissed {
			t.Fatalf("variant %v: expected dismissed, got %v", variant, decision.Outcome)
		}
	}
}

func TestDecodeMalformedResultErrors(t *testing.T) {
	for _, raw := range []string{"", "install", "1x", "-5"} {
		if _, err := decodeHelperResult(raw, VariantStandard); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestDecodeCompositeRejectedOutsideStandardVariant(t *testing.T) {
	// The reminder variant has no delay options, so a composite value is
	// malformed there.
	if _, err := decodeHelperResult("36001", VariantReminder); err == nil {
		t.Fatal("expected error for composite result in reminder variant")
	}
}

func TestDelayOptionsRendering(t *testing.T) {
	got := delayOptions([]time.Duration{time.Hour, 2 * time.Hour, 4 * time.Hour})
	want := "0, 3600, 7200, 14400"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
