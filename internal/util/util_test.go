package util

import "testing"

func TestRoundupRounddown(t *testing.T) {
	cases := []struct{ v, b, down, up int }{
		{10, 4, 8, 12},
		{8, 4, 8, 8},
		{1, 4096, 0, 4096},
	}
	for _, c := range cases {
		if got := Rounddown(c.v, c.b); got != c.down {
			t.Fatalf("Rounddown(%d,%d) = %d, want %d", c.v, c.b, got, c.down)
		}
		if got := Roundup(c.v, c.b); got != c.up {
			t.Fatalf("Roundup(%d,%d) = %d, want %d", c.v, c.b, got, c.up)
		}
	}
}

func TestMinMax(t *testing.T) {
	if Min(3, 5) != 3 {
		t.Fatal("Min wrong")
	}
	if Max(3, 5) != 5 {
		t.Fatal("Max wrong")
	}
}

func TestReadWriten(t *testing.T) {
	buf := make([]uint8, 16)
	Writen(buf, 8, 0, 12345)
	if got := Readn(buf, 8, 0); got != 12345 {
		t.Fatalf("Readn = %d, want 12345", got)
	}
	Writen(buf, 4, 8, 42)
	if got := Readn(buf, 4, 8); got != 42 {
		t.Fatalf("Readn = %d, want 42", got)
	}
}
