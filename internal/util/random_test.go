package util

import (
	"strings"
	"testing"
)

func TestGenerateRandomID(t *testing.T) {
	tests := []struct {
		name       string
		prefix     string
		hexLength  int
		wantPrefix string
		wantLength int // expected total length: prefix + hexLength
	}{
		{
			name:       "task ID format",
			prefix:     "t_",
			hexLength:  32,
			wantPrefix: "t_",
			wantLength: 34, // 2 + 32
		},
		{
			name:       "label ID format",
			prefix:     "lbl_",
			hexLength:  32,
			wantPrefix: "lbl_",
			wantLength: 36, // 4 + 32
		},
		{
			name:       "custom prefix",
			prefix:     "test_",
			hexLength:  16,
			wantPrefix: "test_",
			wantLength: 21, // 5 + 16
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateRandomID(tt.prefix, tt.hexLength)

			if !strings.HasPrefix(got, tt.wantPrefix) {
				t.Errorf("GenerateRandomID() = %v, want prefix %v", got, tt.wantPrefix)
			}

			if len(got) != tt.wantLength {
				t.Errorf("GenerateRandomID() length = %v, want %v", len(got), tt.wantLength)
			}

			// Check that the hex part is valid
			hexPart := got[len(tt.wantPrefix):]
			if !isValidHex(hexPart) {
				t.Errorf("GenerateRandomID() hex part = %v is not valid hex", hexPart)
			}
		})
	}
}

func TestGenerateRandomHex(t *testing.T) {
	tests := []struct {
		name   string
		length int
		want   int
	}{
		{"zero length", 0, 0},
		{"negative length", -1, 0},
		{"small length", 8, 8},
		{"medium length", 16, 16},
		{"large length", 64, 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateRandomHex(tt.length)

			if len(got) != tt.want {
				t.Errorf("GenerateRandomHex() length = %v, want %v", len(got), tt.want)
			}

			if tt.want > 0 && !isValidHex(got) {
				t.Errorf("GenerateRandomHex() = %v is not valid hex", got)
			}
		})
	}
}

func TestGenerateTaskID(t *testing.T) {
	got := GenerateTaskID()

	if !strings.HasPrefix(got, "t_") {
		t.Errorf("GenerateTaskID() = %v, want prefix t_", got)
	}

	if len(got) != 18 { // "t_" + 16 hex chars
		t.Errorf("GenerateTaskID() length = %v, want 18", len(got))
	}

	if !isValidHex(got[2:]) {
		t.Errorf("GenerateTaskID() hex part = %v is not valid hex", got[2:])
	}
}

func TestRandomIndex(t *testing.T) {
	if got := RandomIndex(0); got != 0 {
		t.Errorf("RandomIndex(0) = %d, want 0", got)
	}
	if got := RandomIndex(-3); got != 0 {
		t.Errorf("RandomIndex(-3) = %d, want 0", got)
	}
	for i := 0; i < 200; i++ {
		if got := RandomIndex(5); got < 0 || got >= 5 {
			t.Fatalf("RandomIndex(5) = %d, out of range", got)
		}
	}
}

func TestPickRandom(t *testing.T) {
	if got := PickRandom(nil); got != "" {
		t.Errorf("PickRandom(nil) = %q, want empty", got)
	}
	items := []string{"tomato", "orange", "gold"}
	for i := 0; i < 50; i++ {
		got := PickRandom(items)
		if got != "tomato" && got != "orange" && got != "gold" {
			t.Fatalf("PickRandom() = %q, not one of the items", got)
		}
	}
}

func TestRandomIDUniqueness(t *testing.T) {
	const iterations = 1000
	seen := make(map[string]bool)

	for i := 0; i < iterations; i++ {
		id := GenerateRandomID("test_", 16)
		if seen[id] {
			t.Errorf("GenerateRandomID() generated duplicate: %v", id)
		}
		seen[id] = true
	}
}

func TestRandomHexUniqueness(t *testing.T) {
	const iterations = 1000
	seen := make(map[string]bool)

	for i := 0; i < iterations; i++ {
		hex := GenerateRandomHex(16)
		if seen[hex] {
			t.Errorf("GenerateRandomHex() generated duplicate: %v", hex)
		}
		seen[hex] = true
	}
}

// Helper function to validate hex strings
func isValidHex(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
