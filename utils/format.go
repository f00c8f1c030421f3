package utils

import (
	"fmt"
	"strings"
	"time"
)

// MessageType selects the color of a CLI message.
type MessageType int

const (
	DefaultMessage MessageType = iota
	SuccessMessage
	ErrorMessage
	StatusMessage
)

const ansiReset = "\x1b[0m"

var ansi = [...]string{
	DefaultMessage: ansiReset,
	SuccessMessage: "\x1b[32m",
	ErrorMessage:   "\x1b[31m",
	StatusMessage:  "\x1b[36m",
}

// Banner prefixes every status line printed by the CLI.
const Banner = "◉ FACEMARK"

// Paint wraps s in the terminal color of t. Unknown types leave s untouched.
func Paint(s string, t MessageType) string {
	if t < 0 || int(t) >= len(ansi) {
		return s
	}
	return ansi[t] + s + ansiReset
}

// StatusLine formats a CLI status line: the banner, the message and an optional
// trailing mark painted as t.
func StatusLine(msg, mark string, t MessageType) string {
	var b strings.Builder
	b.WriteString(Paint(Banner, StatusMessage))
	b.WriteString(" ")
	b.WriteString(Paint("⇢ "+msg, DefaultMessage))
	if mark != "" {
		b.WriteString(" ")
		b.WriteString(Paint(mark, t))
	}
	return b.String()
}

// FormatTime renders d in seconds, led by the whole hours and minutes when
// there are any.
func FormatTime(d time.Duration) string {
	hours := int64(d / time.Hour)
	minutes := int64(d % time.Hour / time.Minute)
	seconds := fmt.Sprintf("%.2fs", (d % time.Minute).Seconds())

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %s", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %s", minutes, seconds)
	}
	return seconds
}
