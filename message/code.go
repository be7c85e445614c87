package message

import (
	"fmt"
	"log/slog"
)

// MsgCode is the single-character status code carried by every reply.
type MsgCode byte

// Reply status codes, in increasing order of finality.
const (
	CodeQueued      MsgCode = '>'
	CodeInformation MsgCode = 'i'
	CodeWarning     MsgCode = 'w'
	CodeFinished    MsgCode = ':'
	CodeError       MsgCode = 'f'
	CodeFatal       MsgCode = '!'
)

// ParseMsgCode converts a wire code character, accepting upper case.
func ParseMsgCode(c byte) (MsgCode, error) {
	if c >= 'A' && c <= 'Z' {
		c += 'a' - 'A'
	}
	switch code := MsgCode(c); code {
	case CodeQueued, CodeInformation, CodeWarning, CodeFinished, CodeError, CodeFatal:
		return code, nil
	default:
		return 0, fmt.Errorf("invalid reply code %q", string(c))
	}
}

// String returns the wire representation of the code.
func (c MsgCode) String() string { return string(byte(c)) }

// Name returns the long name of the code.
func (c MsgCode) Name() string {
	switch c {
	case CodeQueued:
		return "Queued"
	case CodeInformation:
		return "Information"
	case CodeWarning:
		return "Warning"
	case CodeFinished:
		return "Finished"
	case CodeError:
		return "Error"
	case CodeFatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// IsDone reports whether the code terminates a command.
func (c MsgCode) IsDone() bool {
	return c == CodeFinished || c == CodeError || c == CodeFatal
}

// IsFailed reports whether the code terminates a command unsuccessfully.
func (c MsgCode) IsFailed() bool {
	return c == CodeError || c == CodeFatal
}

// Severity maps the code onto a log level for the logging sink.
func (c MsgCode) Severity() slog.Level {
	switch c {
	case CodeWarning:
		return slog.LevelWarn
	case CodeError, CodeFatal:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// CodeSet is a set of message codes used to filter command callbacks.
type CodeSet []MsgCode

// Predefined code sets.
var (
	// DoneCodes are the codes that terminate a command.
	DoneCodes = CodeSet{CodeFinished, CodeError, CodeFatal}
	// FailedCodes are the codes that terminate a command unsuccessfully.
	FailedCodes = CodeSet{CodeError, CodeFatal}
	// AllCodes matches every reply.
	AllCodes = CodeSet{CodeQueued, CodeInformation, CodeWarning, CodeFinished, CodeError, CodeFatal}
)

// Contains reports whether the set contains code.
func (s CodeSet) Contains(code MsgCode) bool {
	for _, c := range s {
		if c == code {
			return true
		}
	}
	return false
}
