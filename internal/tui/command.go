package tui

import "strings"

// Command is a parsed prompt command.
type Command struct {
	Name string
	Args []string
}

// ParseCommand splits a prompt line (without the leading ':') into a
// command name and its arguments.
func ParseCommand(input string) Command {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return Command{}
	}
	return Command{Name: strings.ToLower(fields[0]), Args: fields[1:]}
}
