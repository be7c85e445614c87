package keyvar

import (
	"log/slog"
	"time"

	"github.com/Subaru-PFS/tron-actorcore-sub000/message"
)

// CmdOption configures a CmdVar at construction.
type CmdOption func(*CmdVar)

// WithTimeLimit sets the expiry deadline; 0 means unlimited. The
// limit is a lower bound: the command expires no sooner than this.
func WithTimeLimit(d time.Duration) CmdOption {
	return func(cv *CmdVar) { cv.timeLim = d }
}

// WithDescription attaches a free-form description for help output.
func WithDescription(desc string) CmdOption {
	return func(cv *CmdVar) { cv.description = desc }
}

// WithCallback registers cb for replies whose code is in codes.
func WithCallback(codes message.CodeSet, cb CmdCallback) CmdOption {
	return func(cv *CmdVar) {
		cv.callbacks = append(cv.callbacks, cmdCallbackEntry{codes: codes, cb: cb})
	}
}

// WithAbortCmdStr sets the command string sent to the actor when the
// command is aborted while executing.
func WithAbortCmdStr(cmdStr string) CmdOption {
	return func(cv *CmdVar) { cv.abortCmdStr = cmdStr }
}

// WithKeyVars watches KeyVars for this command: updates arriving in
// response to it are captured for KeyVarData and LastKeyVarData.
func WithKeyVars(kvs ...*KeyVar) CmdOption {
	return func(cv *CmdVar) { cv.keyVars = append(cv.keyVars, kvs...) }
}

// WithTimeLimKeyVar arms dynamic deadline extension: whenever kv
// updates in response to this command, the deadline becomes now plus
// the value at index ind (plus the configured time limit as margin).
func WithTimeLimKeyVar(kv *KeyVar, ind int) CmdOption {
	return func(cv *CmdVar) {
		cv.timeLimKeyVar = kv
		cv.timeLimKeyInd = ind
	}
}

// AsRefresh marks the command as issued by the refresh scheduler.
func AsRefresh() CmdOption {
	return func(cv *CmdVar) { cv.isRefresh = true }
}

// ForUser issues the command on behalf of cmdr: the wire line carries
// "<cmdr>.<dispatcherName>" as its commander prefix.
func ForUser(cmdr string) CmdOption {
	return func(cv *CmdVar) { cv.forUserCmd = cmdr }
}

// WithLogger overrides the logger used for callback failures.
func WithLogger(logger *slog.Logger) CmdOption {
	return func(cv *CmdVar) {
		if logger != nil {
			cv.logger = logger
		}
	}
}
