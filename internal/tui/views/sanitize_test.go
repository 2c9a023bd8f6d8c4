package views

import "testing"

func TestSanitizeForTerminal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain ascii", "hello world", "hello world"},
		{"skin tone stripped", "\U0001F44D\U0001F3FD ok", "\U0001F44D ok"},
		{"zwj sequence degrades", "\U0001F468‍\U0001F469‍\U0001F467", "\U0001F468\U0001F469\U0001F467"},
		{"variation selector stripped", "❤️", "❤"},
		{"accented text kept", "café", "café"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeForTerminal(tt.in); got != tt.want {
				t.Errorf("sanitizeForTerminal(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
