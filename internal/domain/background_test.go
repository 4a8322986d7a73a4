package domain

import (
	"strings"
	"testing"
)

func TestInstruction_Hardware(t *testing.T) {
	got := BackgroundHardware.Instruction()
	if !strings.Contains(got, "hardware") || !strings.Contains(got, "Jetson Orin") {
		t.Errorf("unexpected hardware instruction: %q", got)
	}
}

func TestInstruction_Software(t *testing.T) {
	got := BackgroundSoftware.Instruction()
	if !strings.Contains(got, "ROS 2") || !strings.Contains(got, "algorithms") {
		t.Errorf("unexpected software instruction: %q", got)
	}
}

func TestInstruction_FallbackIsBalanced(t *testing.T) {
	balanced := Background("").Instruction()
	if !strings.Contains(balanced, "balanced") {
		t.Fatalf("unexpected balanced instruction: %q", balanced)
	}

	for _, v := range []string{"", "Mechatronics", "software", "HARDWARE", "42"} {
		got := ParseBackground(v).Instruction()
		if got != balanced {
			t.Errorf("ParseBackground(%q).Instruction() = %q, want balanced", v, got)
		}
	}
}

func TestParseBackground_KnownValues(t *testing.T) {
	if ParseBackground("Hardware") != BackgroundHardware {
		t.Error("expected Hardware")
	}
	if ParseBackground("Software") != BackgroundSoftware {
		t.Error("expected Software")
	}
}
