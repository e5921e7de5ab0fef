// Package slogx carries small helpers for building structured log attributes.
package slogx

import (
	"fmt"
	"log/slog"
)

// Error returns a slog.Attr representing the provided error.
// The attribute key is "error" and the value is the error's message.
func Error(err error) slog.Attr {
	return slog.String("error", err.Error())
}

// Stringer creates a slog.Attr with the provided key and the string
// representation of the given fmt.Stringer value.
func Stringer(key string, value fmt.Stringer) slog.Attr {
	return slog.String(key, value.String())
}

// Provider returns an attribute naming the backend a log line refers to.
func Provider(name string) slog.Attr {
	return slog.String("provider", name)
}

// Conversation returns an attribute for the conversation a log line refers to.
func Conversation(id fmt.Stringer) slog.Attr {
	return Stringer("conversation_id", id)
}
