package keyvar

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Subaru-PFS/tron-actorcore-sub000/message"
)

// Dispatcher is the part of the command dispatcher a CmdVar calls back
// into: aborting itself and deciding whether a reply belongs to this
// connection.
type Dispatcher interface {
	AbortCmdByID(cmdID int)
	ReplyIsMine(reply *message.Reply) bool
}

// CmdCallback observes a CmdVar's state changes.
type CmdCallback func(cv *CmdVar)

type cmdCallbackEntry struct {
	codes message.CodeSet
	cb    CmdCallback
}

// CmdVar tracks one outstanding command through its lifecycle: built
// (no ID), dispatched (ID assigned, registered with a dispatcher),
// terminal (last code is a done code), retired (callbacks released).
//
// Replies arriving after the terminal code are logged and dropped.
type CmdVar struct {
	logger *slog.Logger

	// Immutable after construction.
	cmdStr      string
	actor       string
	timeLim     time.Duration
	description string
	isRefresh   bool
	abortCmdStr string
	forUserCmd  string
	keyVars     []*KeyVar

	timeLimKeyVar *KeyVar
	timeLimKeyInd int

	mu         sync.Mutex
	dispatcher Dispatcher
	cmdID      int
	startTime  time.Time
	maxEndTime time.Time // zero when unlimited
	lastCode   message.MsgCode
	replies    []*message.Reply
	callbacks  []cmdCallbackEntry
	keyVarData map[*KeyVar][][]any
	keyVarCbs  map[*KeyVar]int
	timeLimCb  int
	done       chan struct{}
}

// NewCmdVar builds a command variable for one command string aimed at
// one actor. The command is inert until a dispatcher executes it.
func NewCmdVar(actor, cmdStr string, opts ...CmdOption) *CmdVar {
	cv := &CmdVar{
		logger:     slog.Default(),
		cmdStr:     cmdStr,
		actor:      actor,
		lastCode:   message.CodeInformation,
		keyVarData: make(map[*KeyVar][][]any),
		keyVarCbs:  make(map[*KeyVar]int),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(cv)
	}
	cv.logger = cv.logger.With("cmdActor", actor, "cmdStr", cmdStr)
	return cv
}

func (cv *CmdVar) String() string {
	return fmt.Sprintf("CmdVar(%d %s %q)", cv.CmdID(), cv.actor, cv.cmdStr)
}

// CmdStr returns the command string, without line terminator.
func (cv *CmdVar) CmdStr() string { return cv.cmdStr }

// Actor returns the target actor.
func (cv *CmdVar) Actor() string { return cv.actor }

// Description returns the free-form description.
func (cv *CmdVar) Description() string { return cv.description }

// IsRefresh reports whether the command was issued by the refresh
// scheduler rather than a user.
func (cv *CmdVar) IsRefresh() bool { return cv.isRefresh }

// AbortCmdStr returns the command string sent to the actor on abort,
// or "".
func (cv *CmdVar) AbortCmdStr() string { return cv.abortCmdStr }

// ForUserCmd returns the commander ID this command is issued on behalf
// of, or "".
func (cv *CmdVar) ForUserCmd() string { return cv.forUserCmd }

// TimeLim returns the configured time limit; 0 means unlimited.
func (cv *CmdVar) TimeLim() time.Duration { return cv.timeLim }

// AddCallback registers cb for every reply whose code is in codes.
func (cv *CmdVar) AddCallback(codes message.CodeSet, cb CmdCallback) {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	cv.callbacks = append(cv.callbacks, cmdCallbackEntry{codes: codes, cb: cb})
}

// CmdID returns the dispatched command ID, 0 before dispatch.
func (cv *CmdVar) CmdID() int {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	return cv.cmdID
}

// StartTime returns when the command was dispatched.
func (cv *CmdVar) StartTime() time.Time {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	return cv.startTime
}

// MaxEndTime returns the current deadline; zero when unlimited.
func (cv *CmdVar) MaxEndTime() time.Time {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	return cv.maxEndTime
}

// LastCode returns the code of the most recent reply.
func (cv *CmdVar) LastCode() message.MsgCode {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	return cv.lastCode
}

// IsDone reports whether the command has reached a terminal code.
func (cv *CmdVar) IsDone() bool {
	return cv.LastCode().IsDone()
}

// DidFail reports whether the command terminated unsuccessfully.
func (cv *CmdVar) DidFail() bool {
	return cv.LastCode().IsFailed()
}

// Severity returns the log level of the most recent reply code.
func (cv *CmdVar) Severity() slog.Level {
	return cv.LastCode().Severity()
}

// Done returns a channel closed when the command reaches a terminal
// code.
func (cv *CmdVar) Done() <-chan struct{} { return cv.done }

// LastReply returns the most recent reply, or nil.
func (cv *CmdVar) LastReply() *message.Reply {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	if len(cv.replies) == 0 {
		return nil
	}
	return cv.replies[len(cv.replies)-1]
}

// Replies returns a snapshot of every reply received, oldest first.
func (cv *CmdVar) Replies() []*message.Reply {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	out := make([]*message.Reply, len(cv.replies))
	copy(out, cv.replies)
	return out
}

// Abort asks the owning dispatcher to abort the command. It is a
// no-op before dispatch or after completion; the downstream actor may
// still act on a command whose abort string never reached it.
func (cv *CmdVar) Abort() {
	cv.mu.Lock()
	d, id := cv.dispatcher, cv.cmdID
	terminal := cv.lastCode.IsDone()
	cv.mu.Unlock()
	if d != nil && !terminal {
		d.AbortCmdByID(id)
	}
}

// HandleReply feeds one reply into the state machine: it is recorded,
// matching callbacks run in registration order, and a terminal code
// retires the command. Replies after the terminal code are logged and
// dropped.
func (cv *CmdVar) HandleReply(reply *message.Reply) {
	cv.mu.Lock()
	if cv.lastCode.IsDone() {
		cv.mu.Unlock()
		cv.logger.Warn("reply for finished command dropped",
			"cmdID", reply.Header.CommandID, "code", reply.Header.Code.Name())
		return
	}
	cv.replies = append(cv.replies, reply)
	code := reply.Header.Code
	cv.lastCode = code
	snapshot := make([]cmdCallbackEntry, len(cv.callbacks))
	copy(snapshot, cv.callbacks)
	cv.mu.Unlock()

	for _, entry := range snapshot {
		if entry.codes.Contains(code) {
			cv.invoke(entry.cb)
		}
	}
	if code.IsDone() {
		cv.retire()
	}
}

func (cv *CmdVar) invoke(cb CmdCallback) {
	defer func() {
		if r := recover(); r != nil {
			cv.logger.Error("command callback panicked", "panic", r)
		}
	}()
	cb(cv)
}

// retire releases callbacks and keyword capture registrations so a
// finished command cannot leak observers.
func (cv *CmdVar) retire() {
	cv.mu.Lock()
	cv.callbacks = nil
	cbs := cv.keyVarCbs
	cv.keyVarCbs = make(map[*KeyVar]int)
	timeLimCb := cv.timeLimCb
	cv.timeLimCb = 0
	cv.mu.Unlock()

	for kv, id := range cbs {
		kv.RemoveCallback(id)
	}
	if cv.timeLimKeyVar != nil && timeLimCb != 0 {
		cv.timeLimKeyVar.RemoveCallback(timeLimCb)
	}
	close(cv.done)
}

// SetStartInfo is called by the dispatcher when it assigns the command
// an ID. It records the start time, arms the deadline, and registers
// keyword capture callbacks.
func (cv *CmdVar) SetStartInfo(dispatcher Dispatcher, cmdID int) {
	cv.mu.Lock()
	cv.dispatcher = dispatcher
	cv.cmdID = cmdID
	cv.startTime = time.Now()
	if cv.timeLim > 0 {
		cv.maxEndTime = cv.startTime.Add(cv.timeLim)
	}
	cv.mu.Unlock()

	for _, kv := range cv.keyVars {
		kv := kv
		id := kv.AddCallback(func(updated *KeyVar) { cv.captureKeyVar(updated) })
		cv.mu.Lock()
		cv.keyVarCbs[kv] = id
		cv.mu.Unlock()
	}
	if cv.timeLimKeyVar != nil {
		id := cv.timeLimKeyVar.AddCallback(cv.timeLimKeyVarCallback)
		cv.mu.Lock()
		cv.timeLimCb = id
		cv.mu.Unlock()
	}
}

// keyVarIsMine reports whether kv's latest update arrived in response
// to this command.
func (cv *CmdVar) keyVarIsMine(kv *KeyVar) bool {
	if !kv.IsCurrent() {
		return false
	}
	reply := kv.Reply()
	if reply == nil {
		return false
	}
	cv.mu.Lock()
	d, id := cv.dispatcher, cv.cmdID
	cv.mu.Unlock()
	if d == nil || !d.ReplyIsMine(reply) {
		return false
	}
	return reply.Header.CommandID == id
}

func (cv *CmdVar) captureKeyVar(kv *KeyVar) {
	if !cv.keyVarIsMine(kv) {
		return
	}
	vals := kv.Values()
	cv.mu.Lock()
	cv.keyVarData[kv] = append(cv.keyVarData[kv], vals)
	cv.mu.Unlock()
}

// timeLimKeyVarCallback extends the deadline from a time-limit keyword
// reported by the actor itself; the configured timeLim is added back
// as margin.
func (cv *CmdVar) timeLimKeyVarCallback(kv *KeyVar) {
	if !cv.keyVarIsMine(kv) {
		return
	}
	sec, ok := kv.floatAt(cv.timeLimKeyInd)
	if !ok {
		cv.logger.Warn("time limit keyword has no numeric value",
			"keyword", kv.Name(), "index", cv.timeLimKeyInd)
		return
	}
	newEnd := time.Now().Add(time.Duration(sec * float64(time.Second)))
	cv.mu.Lock()
	cv.maxEndTime = newEnd.Add(cv.timeLim)
	cv.mu.Unlock()
}

// KeyVarData returns every value list captured for kv in response to
// this command, oldest first. kv must be one of the watched KeyVars.
func (cv *CmdVar) KeyVarData(kv *KeyVar) [][]any {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	out := make([][]any, len(cv.keyVarData[kv]))
	copy(out, cv.keyVarData[kv])
	return out
}

// LastKeyVarData returns the most recent captured value list for kv.
// The second result is false when no data was seen, which is distinct
// from an empty value list.
func (cv *CmdVar) LastKeyVarData(kv *KeyVar) ([]any, bool) {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	all := cv.keyVarData[kv]
	if len(all) == 0 {
		return nil, false
	}
	return all[len(all)-1], true
}
