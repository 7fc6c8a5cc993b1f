package main

import "testing"

func TestStringField(t *testing.T) {
	cases := []struct {
		in   interface{}
		want string
	}{
		{nil, ""},
		{"hello", "hello"},
		{float64(42), "42"},
		{true, "true"},
	}
	for _, c := range cases {
		if got := stringField(c.in); got != c.want {
			t.Errorf("stringField(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("hello", 24); got != "hello" {
		t.Errorf("short string must be untouched, got %q", got)
	}
	long := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" // 30 runes
	if got := truncateRunes(long, 24); len([]rune(got)) != 24 {
		t.Errorf("expected 24 runes, got %d", len([]rune(got)))
	}
	// Multibyte runes count as one character each.
	kana := "あいうえおかきくけこさしすせそたちつてとなにぬねの" // 25 runes
	got := truncateRunes(kana, 24)
	if len([]rune(got)) != 24 {
		t.Errorf("expected 24 runes for multibyte input, got %d", len([]rune(got)))
	}
	if got != string([]rune(kana)[:24]) {
		t.Errorf("truncation must keep a prefix, got %q", got)
	}
}
