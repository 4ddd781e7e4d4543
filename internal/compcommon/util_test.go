package compcommon

import "testing"

func TestParseWorkers(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "1", want: 1},
		{in: "8", want: 8},
		{in: "auto", want: 0},
		{in: "AUTO", want: 0},
		{in: " 4 ", want: 4},
		{in: "0", wantErr: true},
		{in: "-2", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseWorkers(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseWorkers(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseWorkers(%q) unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseWorkers(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(0.5, 0, 1); got != 0.5 {
		t.Fatalf("Clamp(0.5, 0, 1) = %v, want 0.5", got)
	}
	if got := Clamp(-3, 0, 1); got != 0 {
		t.Fatalf("Clamp(-3, 0, 1) = %v, want 0", got)
	}
	if got := Clamp(7, 0, 1); got != 1 {
		t.Fatalf("Clamp(7, 0, 1) = %v, want 1", got)
	}
}

func TestMinMaxInt(t *testing.T) {
	if got := MinInt(3, 5); got != 3 {
		t.Fatalf("MinInt(3, 5) = %d, want 3", got)
	}
	if got := MinInt(5, 3); got != 3 {
		t.Fatalf("MinInt(5, 3) = %d, want 3", got)
	}
	if got := MaxInt(3, 5); got != 5 {
		t.Fatalf("MaxInt(3, 5) = %d, want 5", got)
	}
	if got := MaxInt(5, 3); got != 5 {
		t.Fatalf("MaxInt(5, 3) = %d, want 5", got)
	}
}
