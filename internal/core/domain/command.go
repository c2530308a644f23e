package domain

import (
	"strings"
)

// ParseCommand returns the lowercased first space-delimited token of a message body.
func ParseCommand(body string) string {
	command := strings.Split(body, " ")
	return strings.ToLower(command[0])
}

// ParseCommandArgs strips the first token and the single space following it.
func ParseCommandArgs(body string) string {
	command := strings.Split(body, " ")
	return strings.Join(command[1:], " ")
}
