package tui

import (
	"reflect"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input string
		want  Command
	}{
		{"add friends chat.txt", Command{Name: "add", Args: []string{"friends", "chat.txt"}}},
		{"add friends chat.txt media/", Command{Name: "add", Args: []string{"friends", "chat.txt", "media/"}}},
		{"RELOAD", Command{Name: "reload", Args: []string{}}},
		{"  chat   Work Trip  ", Command{Name: "chat", Args: []string{"Work", "Trip"}}},
		{"q", Command{Name: "q", Args: []string{}}},
		{"", Command{}},
		{"   ", Command{}},
	}

	for _, tt := range tests {
		got := ParseCommand(tt.input)
		if got.Name != tt.want.Name {
			t.Errorf("ParseCommand(%q).Name = %q, want %q", tt.input, got.Name, tt.want.Name)
		}
		if !reflect.DeepEqual(got.Args, tt.want.Args) {
			t.Errorf("ParseCommand(%q).Args = %v, want %v", tt.input, got.Args, tt.want.Args)
		}
	}
}
