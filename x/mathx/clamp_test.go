package mathx

import "testing"

func TestClamp(t *testing.T) {
	cases := []struct{ v, lo, hi, want int }{
		{5, 0, 10, 5},
		{-1, 0, 10, 0},
		{11, 0, 10, 10},
		{5, 10, 0, 5}, // swapped bounds
	}
	for _, c := range cases {
		if got := Clamp(c.v, c.lo, c.hi); got != c.want {
			t.Fatalf("Clamp(%d,%d,%d)=%d want %d", c.v, c.lo, c.hi, got, c.want)
		}
	}
}

func TestOrDefault(t *testing.T) {
	if got := OrDefault(0, 160, 16, 4096); got != 160 {
		t.Fatalf("zero should select default, got %d", got)
	}
	if got := OrDefault(8, 160, 16, 4096); got != 16 {
		t.Fatalf("below range should clamp, got %d", got)
	}
	if got := OrDefault(uint32(44100), 8000, 1000, 96000); got != 44100 {
		t.Fatalf("in range passes through, got %d", got)
	}
}

func TestHalfSum(t *testing.T) {
	if got := HalfSum(int16(32767), int16(32767)); got != 32766 {
		t.Fatalf("HalfSum max = %d", got)
	}
	if got := HalfSum(int16(-100), int16(100)); got != 0 {
		t.Fatalf("HalfSum symmetric = %d", got)
	}
}
