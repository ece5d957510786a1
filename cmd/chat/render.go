package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/vovakirdan/wirechat-relay/internal/client"
	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

const (
	ansiReset = "\x1b[0m"
	ansiDim   = "\x1b[2m"
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
	ansiBlue  = "\x1b[34m"
	ansiPink  = "\x1b[35m"
	ansiGray  = "\x1b[90m"
)

// renderer prints the transcript and connection status to a terminal.
type renderer struct {
	out   io.Writer
	color bool
	self  string
	loc   *time.Location
}

func newRenderer(out io.Writer, color bool, self string) *renderer {
	return &renderer{out: out, color: color, self: self, loc: time.Local}
}

func (r *renderer) paint(code, s string) string {
	if !r.color {
		return s
	}
	return code + s + ansiReset
}

func roleColor(role string) string {
	switch strings.ToLower(role) {
	case "admin":
		return ansiRed
	case "developer":
		return ansiBlue
	case "ai":
		return ansiPink
	case "user":
		return ansiGreen
	default:
		return ansiGray
	}
}

// clock renders ts as local hours and minutes, falling back to the raw value.
func (r *renderer) clock(ts string) string {
	t, err := proto.ParseTimestamp(ts)
	if err != nil {
		return ts
	}
	return t.In(r.loc).Format("15:04")
}

func (r *renderer) entry(e client.Entry) {
	msg := e.Message
	name := msg.UserID
	if name == r.self {
		name += " (you)"
	}
	fmt.Fprintf(r.out, "%s %s [%s] %s\n",
		r.paint(ansiDim, r.clock(msg.TS)),
		name,
		r.paint(roleColor(msg.Role), msg.Role),
		msg.Text,
	)
}

func (r *renderer) status(s client.Status, since time.Time) {
	switch s {
	case client.StatusConnected:
		fmt.Fprintln(r.out, r.paint(ansiGreen, "● Connected"))
	case client.StatusConnecting:
		fmt.Fprintln(r.out, r.paint(ansiGray, "● Connecting..."))
	default:
		line := "● Disconnected"
		if !since.IsZero() {
			line += " (connected " + humanize.Time(since) + ")"
		}
		fmt.Fprintln(r.out, r.paint(ansiRed, line))
	}
}

func (r *renderer) empty() {
	fmt.Fprintln(r.out, r.paint(ansiDim, "No messages yet. Start the conversation!"))
}

func (r *renderer) summary(n int) {
	fmt.Fprintf(r.out, "bye, %s messages seen\n", humanize.Comma(int64(n)))
}
