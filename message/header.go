package message

import (
	"fmt"
	"strings"
)

// ReplyHeader identifies the command a reply responds to and carries
// the reply status code.
//
// Program and User together form the commander ID "<program>.<user>";
// User may itself contain dots when an intermediary forwards a command
// on behalf of a downstream client.
type ReplyHeader struct {
	Program   string
	User      string
	CommandID int
	Actor     string
	Code      MsgCode
}

// Cmdr returns the full commander ID.
func (h ReplyHeader) Cmdr() string {
	return h.Program + "." + h.User
}

// Canonical renders the header wire form.
func (h ReplyHeader) Canonical() string {
	return fmt.Sprintf("%s %d %s %s", h.Cmdr(), h.CommandID, h.Actor, h.Code)
}

// SplitCmdr splits a commander ID at its first dot. The user part may
// be empty and may contain further dots.
func SplitCmdr(cmdr string) (program, user string) {
	if i := strings.IndexByte(cmdr, '.'); i >= 0 {
		return cmdr[:i], cmdr[i+1:]
	}
	return cmdr, ""
}
