package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Subaru-PFS/tron-actorcore-sub000/errors"
	"github.com/Subaru-PFS/tron-actorcore-sub000/hub"
	"github.com/Subaru-PFS/tron-actorcore-sub000/keyvar"
	"github.com/Subaru-PFS/tron-actorcore-sub000/message"
	"github.com/Subaru-PFS/tron-actorcore-sub000/metric"
)

const (
	// User command IDs cycle in [userIDFirst, refreshIDFirst); refresh
	// command IDs cycle in [refreshIDFirst, refreshIDLimit). IDs still
	// present in the command table are skipped, so an ID is never
	// reused while its command is executing.
	userIDFirst    = 1
	refreshIDFirst = 1000
	refreshIDLimit = 2000

	// cacheRelayActor is the hub's keyword cache; replies from it
	// arrive with the actor prefixed cacheRelayPrefix and are treated
	// as cached rather than genuine.
	cacheRelayActor  = "keys"
	cacheRelayPrefix = cacheRelayActor + "."

	defaultRefreshInterval = time.Second
	defaultTimeoutInterval = 1300 * time.Millisecond
	defaultRefreshTimeLim  = 20 * time.Second
)

// LogSink receives every dispatched reply for operator-facing logging.
type LogSink func(message string, severity slog.Level, actor, cmdr string)

type tableKey struct {
	actor   string // lowercased
	keyword string // lowercased
}

type refreshKey struct {
	actor string
	cmd   string
}

// Dispatcher sends commands to the hub and routes replies back to
// CmdVars and KeyVars.
//
// All tables are guarded by one mutex; KeyVar and CmdVar callbacks are
// always invoked with the mutex released, so a callback may call back
// into the dispatcher. Replies enter through the connection's single
// read callback, which preserves wire order per command.
type Dispatcher struct {
	name   string
	conn   hub.Connection
	logger *slog.Logger

	logSink        LogSink
	metricRegistry *metric.Registry
	metrics        *dispatcherMetrics
	core           *metric.Metrics

	includeName bool

	refreshInterval time.Duration
	timeoutInterval time.Duration
	refreshTimeLim  time.Duration

	mu            sync.Mutex
	cmdr          string
	cmdTable      map[int]*keyvar.CmdVar
	keyVarTable   map[tableKey][]*keyvar.KeyVar
	models        map[string]*Model
	refreshing    map[refreshKey]bool
	nextUserID    int
	nextRefreshID int
	delaying      bool
	started       bool
	everConnected bool

	closed atomic.Bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher builds a dispatcher named name over conn. The name is
// the commander prefix on outgoing lines when includeName is set.
func NewDispatcher(name string, conn hub.Connection, opts ...Option) (*Dispatcher, error) {
	if name == "" || strings.ContainsAny(name, " \t") {
		return nil, errors.WrapInvalid(fmt.Errorf("bad dispatcher name %q", name),
			"dispatch.Dispatcher", "NewDispatcher", "validate name")
	}
	if conn == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("nil connection"),
			"dispatch.Dispatcher", "NewDispatcher", "validate connection")
	}

	d := &Dispatcher{
		name:            name,
		conn:            conn,
		logger:          slog.Default(),
		includeName:     true,
		refreshInterval: defaultRefreshInterval,
		timeoutInterval: defaultTimeoutInterval,
		refreshTimeLim:  defaultRefreshTimeLim,
		cmdr:            "me.me",
		cmdTable:        make(map[int]*keyvar.CmdVar),
		keyVarTable:     make(map[tableKey][]*keyvar.KeyVar),
		models:          make(map[string]*Model),
		refreshing:      make(map[refreshKey]bool),
		nextUserID:      userIDFirst,
		nextRefreshID:   refreshIDFirst,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "dispatch.Dispatcher", "name", name)

	if d.metricRegistry != nil {
		m, err := newDispatcherMetrics(d.metricRegistry)
		if err != nil {
			return nil, errors.WrapFatal(err, "dispatch.Dispatcher", "NewDispatcher", "register metrics")
		}
		d.metrics = m
		d.core = d.metricRegistry.Core()
	}
	if d.logSink == nil {
		logger := d.logger
		d.logSink = func(msg string, severity slog.Level, actor, cmdr string) {
			logger.Log(context.Background(), severity, msg, "actor", actor, "cmdr", cmdr)
		}
	}

	conn.OnRead(d.handleLine)
	conn.OnStateChange(d.connStateChanged)
	return d, nil
}

// Start connects to the hub and launches the timeout and refresh
// loops. ctx bounds the loops; Stop cancels them as well.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return errors.ErrAlreadyStarted
	}
	d.started = true
	d.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.conn.Start(); err != nil {
		return errors.WrapTransient(err, "dispatch.Dispatcher", "Start", "start hub connection")
	}

	d.wg.Add(2)
	go d.timeoutLoop(ctx)
	go d.refreshLoop(ctx)
	return nil
}

// Stop halts the loops and closes the connection. Safe to call more
// than once.
func (d *Dispatcher) Stop() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	return d.conn.Close()
}

// Name returns the dispatcher name.
func (d *Dispatcher) Name() string { return d.name }

// Cmdr returns the commander ID used for reply matching.
func (d *Dispatcher) Cmdr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cmdr
}

// SetCmdr installs the commander ID the hub assigned at login.
func (d *Dispatcher) SetCmdr(cmdr string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cmdr = cmdr
}

// ReplyIsMine reports whether reply was triggered by this connection.
// The commander ID must equal ours or end with ".<ours>": an
// intermediary forwarding our command prepends its own identity.
func (d *Dispatcher) ReplyIsMine(reply *message.Reply) bool {
	mine := d.Cmdr()
	full := reply.Header.Cmdr()
	if !strings.HasSuffix(full, mine) {
		return false
	}
	rest := full[:len(full)-len(mine)]
	return rest == "" || strings.HasSuffix(rest, ".")
}

// AddKeyVar registers a KeyVar for reply routing. More than one KeyVar
// may watch the same (actor, keyword) pair. A stale refreshable KeyVar
// is picked up by the next refresh scan.
func (d *Dispatcher) AddKeyVar(kv *keyvar.KeyVar) {
	key := tableKey{actor: strings.ToLower(kv.Actor), keyword: strings.ToLower(kv.Name())}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keyVarTable[key] = append(d.keyVarTable[key], kv)
}

// RemoveKeyVar unregisters a KeyVar, reporting whether it was present.
func (d *Dispatcher) RemoveKeyVar(kv *keyvar.KeyVar) bool {
	key := tableKey{actor: strings.ToLower(kv.Actor), keyword: strings.ToLower(kv.Name())}
	d.mu.Lock()
	defer d.mu.Unlock()
	list := d.keyVarTable[key]
	for i, got := range list {
		if got == kv {
			d.keyVarTable[key] = append(list[:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// KeyVars returns the KeyVars registered for one actor's keyword.
func (d *Dispatcher) KeyVars(actor, keyword string) []*keyvar.KeyVar {
	key := tableKey{actor: strings.ToLower(actor), keyword: strings.ToLower(keyword)}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*keyvar.KeyVar, len(d.keyVarTable[key]))
	copy(out, d.keyVarTable[key])
	return out
}

// ExecuteCmd sends cmdVar to the hub. Failures are delivered as
// synthesized replies through the CmdVar itself, never as a return
// value, so callers have one code path for local and remote failure.
func (d *Dispatcher) ExecuteCmd(cmdVar *keyvar.CmdVar) {
	if cmdVar.IsDone() {
		d.logger.Warn("refusing to execute a finished command", "cmd", cmdVar.String())
		return
	}
	if !d.conn.IsConnected() {
		d.finishCmd(cmdVar, message.CodeError, failData("Failed", cmdVar, "not connected"))
		return
	}

	d.mu.Lock()
	cmdID, ok := d.nextIDLocked(cmdVar.IsRefresh())
	if ok {
		d.cmdTable[cmdID] = cmdVar
	}
	pending := len(d.cmdTable)
	d.mu.Unlock()
	if !ok {
		d.finishCmd(cmdVar, message.CodeError, failData("Failed", cmdVar, "too many executing commands"))
		return
	}
	d.metrics.setPending(pending)

	cmdVar.SetStartInfo(d, cmdID)
	line := d.formatCmdLine(cmdVar, cmdID)
	d.metrics.commandSent(cmdVar.IsRefresh())
	if err := d.conn.WriteLine(line); err != nil {
		d.logger.Warn("command write failed", "cmd", cmdVar.String(), "error", err)
		d.core.RecordError("hub", "write")
		d.removeCmd(cmdID)
		d.finishCmd(cmdVar, message.CodeError, failData("Failed", cmdVar, "write to hub failed"))
		return
	}
	d.core.RecordLineWritten()
}

// Call executes cmdVar and blocks until it reaches a terminal code or
// ctx is cancelled. Cancellation aborts the command and waits for the
// abort to land. The dispatcher itself never blocks here.
func (d *Dispatcher) Call(ctx context.Context, cmdVar *keyvar.CmdVar) error {
	d.ExecuteCmd(cmdVar)
	select {
	case <-cmdVar.Done():
	case <-ctx.Done():
		cmdVar.Abort()
		<-cmdVar.Done()
		return ctx.Err()
	}
	if cmdVar.DidFail() {
		reason := "command failed"
		if last := cmdVar.LastReply(); last != nil && len(last.Keywords) > 0 {
			reason = last.Keywords.Canonical()
		}
		return errors.WrapTransient(fmt.Errorf("%s", reason),
			"dispatch.Dispatcher", "Call", fmt.Sprintf("%s %q", cmdVar.Actor(), cmdVar.CmdStr()))
	}
	return nil
}

// AbortCmdByID aborts an executing command: its abort string, if any,
// is sent to the actor fire-and-forget, and the command is finished
// locally with an Aborted reply. Unknown or finished IDs are a no-op.
func (d *Dispatcher) AbortCmdByID(cmdID int) {
	d.mu.Lock()
	cmdVar := d.cmdTable[cmdID]
	d.mu.Unlock()
	if cmdVar == nil || cmdVar.IsDone() {
		return
	}

	if abortStr := cmdVar.AbortCmdStr(); abortStr != "" && d.conn.IsConnected() {
		d.ExecuteCmd(keyvar.NewCmdVar(cmdVar.Actor(), abortStr, keyvar.WithLogger(d.logger)))
	}
	d.finishCmd(cmdVar, message.CodeError, abortData(cmdVar, ""))
}

// DispatchReplyStr parses a wire line and dispatches it. Unparseable
// lines are counted, logged, and dropped.
func (d *Dispatcher) DispatchReplyStr(line string) error {
	d.core.RecordLineRead()
	reply, err := message.ParseReply(line)
	if err != nil {
		d.metrics.parseError()
		d.core.RecordError("dispatch", "parse")
		d.logger.Warn("could not parse reply", "line", line, "error", err)
		return errors.WrapInvalid(err, "dispatch.Dispatcher", "DispatchReplyStr", "parse reply line")
	}
	d.DispatchReply(&reply)
	return nil
}

// DispatchReply updates every matching KeyVar, routes the reply to its
// CmdVar when it belongs to this connection, and feeds the log sink.
func (d *Dispatcher) DispatchReply(reply *message.Reply) {
	d.metrics.replyReceived(reply.Header.Code)

	actor := strings.ToLower(reply.Header.Actor)
	isGenuine := true
	if rest, ok := strings.CutPrefix(actor, cacheRelayPrefix); ok {
		actor = rest
		isGenuine = false
	}

	type target struct {
		kv *keyvar.KeyVar
		kw message.Keyword
	}
	var targets []target

	d.mu.Lock()
	notify := !d.delaying
	for _, kw := range reply.Keywords {
		key := tableKey{actor: actor, keyword: strings.ToLower(kw.Name)}
		for _, kv := range d.keyVarTable[key] {
			targets = append(targets, target{kv: kv, kw: kw})
		}
	}
	d.mu.Unlock()

	for _, tg := range targets {
		if err := tg.kv.Set(tg.kw.Values, isGenuine, reply, notify); err != nil {
			d.logger.Warn("keyvar rejected reply data",
				"keyvar", tg.kv.String(), "line", reply.Line, "error", err)
		}
	}

	if d.ReplyIsMine(reply) {
		cmdID := reply.Header.CommandID
		d.mu.Lock()
		cmdVar := d.cmdTable[cmdID]
		if cmdVar != nil && reply.Header.Code.IsDone() {
			delete(d.cmdTable, cmdID)
		}
		pending := len(d.cmdTable)
		d.mu.Unlock()
		if cmdVar != nil {
			d.metrics.setPending(pending)
			cmdVar.HandleReply(reply)
		}
	}

	d.logSink(reply.Canonical(), reply.Header.Code.Severity(), reply.Header.Actor, reply.Header.Cmdr())
}

// MakeReply synthesizes a reply from this dispatcher's commander ID.
// When dataStr does not parse as a keyword list it is wrapped whole
// into Text="..." so the payload always survives.
func (d *Dispatcher) MakeReply(cmdID int, actor string, code message.MsgCode, dataStr string) *message.Reply {
	head := fmt.Sprintf("%s %d %s %s", d.Cmdr(), cmdID, actor, code)
	line := head
	if dataStr != "" {
		line += " " + dataStr
	}
	reply, err := message.ParseReply(line)
	if err != nil {
		text := message.Keyword{Name: "Text", Values: message.Values{message.V(dataStr)}}
		line = head + " " + text.Canonical()
		reply, err = message.ParseReply(line)
		if err != nil {
			d.logger.Error("could not synthesize reply", "line", line, "error", err)
			reply = message.Reply{Header: message.ReplyHeader{
				CommandID: cmdID, Actor: actor, Code: code,
			}}
			reply.Header.Program, reply.Header.User = message.SplitCmdr(d.Cmdr())
		}
	}
	return &reply
}

// SendAllKeyVarCallbacks notifies every registered KeyVar, or only the
// current ones when includeNotCurrent is unset. Used after a delayed
// startup and by clients that rebuilt their display.
func (d *Dispatcher) SendAllKeyVarCallbacks(includeNotCurrent bool) {
	for _, kv := range d.allKeyVars() {
		if includeNotCurrent || kv.IsCurrent() {
			kv.Notify()
		}
	}
}

// handleLine is the connection read callback.
func (d *Dispatcher) handleLine(line string) {
	_ = d.DispatchReplyStr(line)
}

// connStateChanged reacts to hub connectivity: a disconnect invalidates
// every KeyVar and forgets in-flight refresh commands (the timeout
// scanner fails their CmdVars).
func (d *Dispatcher) connStateChanged(connected bool, reason error) {
	d.core.RecordHubStatus(connected)
	if connected {
		d.mu.Lock()
		reconnect := d.everConnected
		d.everConnected = true
		d.mu.Unlock()
		if reconnect {
			d.core.RecordHubReconnect()
		}
		d.logger.Info("hub connection established")
		return
	}
	d.logger.Warn("hub connection lost", "error", reason)

	d.mu.Lock()
	d.refreshing = make(map[refreshKey]bool)
	kvs := d.allKeyVarsLocked()
	d.mu.Unlock()
	for _, kv := range kvs {
		kv.SetNotCurrent()
	}
}

func (d *Dispatcher) allKeyVars() []*keyvar.KeyVar {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.allKeyVarsLocked()
}

func (d *Dispatcher) allKeyVarsLocked() []*keyvar.KeyVar {
	var out []*keyvar.KeyVar
	for _, list := range d.keyVarTable {
		out = append(out, list...)
	}
	return out
}

// nextIDLocked returns the next free command ID in the range for the
// command kind, skipping IDs still executing. Fails only when the
// whole range is busy.
func (d *Dispatcher) nextIDLocked(isRefresh bool) (int, bool) {
	first, limit := userIDFirst, refreshIDFirst
	next := &d.nextUserID
	if isRefresh {
		first, limit = refreshIDFirst, refreshIDLimit
		next = &d.nextRefreshID
	}
	for range limit - first {
		id := *next
		if id < first || id >= limit {
			id = first
		}
		*next = id + 1
		if _, busy := d.cmdTable[id]; !busy {
			return id, true
		}
	}
	return 0, false
}

// formatCmdLine renders the outgoing wire line. With includeName the
// line opens with "<name>" or, for a command issued on behalf of a
// user command, "<forCmdr>.<name>".
func (d *Dispatcher) formatCmdLine(cmdVar *keyvar.CmdVar, cmdID int) string {
	prefix := ""
	if d.includeName {
		if forCmdr := cmdVar.ForUserCmd(); forCmdr != "" {
			prefix = forCmdr + "." + d.name + " "
		} else {
			prefix = d.name + " "
		}
	}
	return fmt.Sprintf("%s%d %s %s", prefix, cmdID, cmdVar.Actor(), cmdVar.CmdStr())
}

func (d *Dispatcher) removeCmd(cmdID int) {
	d.mu.Lock()
	delete(d.cmdTable, cmdID)
	pending := len(d.cmdTable)
	d.mu.Unlock()
	d.metrics.setPending(pending)
}

// finishCmd delivers a locally synthesized terminal reply to cmdVar.
func (d *Dispatcher) finishCmd(cmdVar *keyvar.CmdVar, code message.MsgCode, dataStr string) {
	if cmdID := cmdVar.CmdID(); cmdID != 0 {
		d.removeCmd(cmdID)
	}
	reply := d.MakeReply(cmdVar.CmdID(), cmdVar.Actor(), code, dataStr)
	cmdVar.HandleReply(reply)
}

// timeoutLoop periodically fails commands past their deadline and, on
// disconnect, every executing command.
func (d *Dispatcher) timeoutLoop(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(d.timeoutInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			d.checkCmdTimeouts(now)
		}
	}
}

func (d *Dispatcher) checkCmdTimeouts(now time.Time) {
	connected := d.conn.IsConnected()

	var lost, expired []*keyvar.CmdVar
	d.mu.Lock()
	for _, cmdVar := range d.cmdTable {
		switch {
		case !connected:
			lost = append(lost, cmdVar)
		case !cmdVar.MaxEndTime().IsZero() && now.After(cmdVar.MaxEndTime()):
			expired = append(expired, cmdVar)
		}
	}
	d.mu.Unlock()

	for _, cmdVar := range lost {
		// the abort string is suppressed: the actor is unreachable
		d.finishCmd(cmdVar, message.CodeError, abortData(cmdVar, "disconnected"))
	}
	for _, cmdVar := range expired {
		d.metrics.commandTimeout()
		d.logger.Warn("command timed out", "cmd", cmdVar.String(),
			"started", cmdVar.StartTime(), "deadline", cmdVar.MaxEndTime())
		if abortStr := cmdVar.AbortCmdStr(); abortStr != "" && connected {
			d.ExecuteCmd(keyvar.NewCmdVar(cmdVar.Actor(), abortStr, keyvar.WithLogger(d.logger)))
		}
		d.finishCmd(cmdVar, message.CodeError, timeoutData(cmdVar))
	}
}

// refreshLoop periodically issues refresh commands for stale KeyVars.
func (d *Dispatcher) refreshLoop(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(d.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.scanRefresh()
		}
	}
}

// scanRefresh issues at most one refresh command per (actor, cmd)
// recipe, skipping recipes already in flight.
func (d *Dispatcher) scanRefresh() {
	if !d.conn.IsConnected() {
		return
	}

	var due []refreshKey
	d.mu.Lock()
	seen := make(map[refreshKey]bool)
	for _, list := range d.keyVarTable {
		for _, kv := range list {
			if kv.IsCurrent() || !kv.HasRefreshCmd() {
				continue
			}
			actor, cmd := kv.RefreshInfo()
			key := refreshKey{actor: actor, cmd: cmd}
			if seen[key] || d.refreshing[key] {
				continue
			}
			seen[key] = true
			due = append(due, key)
		}
	}
	for _, key := range due {
		d.refreshing[key] = true
	}
	delaying := d.delaying
	inFlight := len(d.refreshing)
	d.mu.Unlock()

	for _, key := range due {
		key := key
		cmdVar := keyvar.NewCmdVar(key.actor, key.cmd,
			keyvar.AsRefresh(),
			keyvar.WithTimeLimit(d.refreshTimeLim),
			keyvar.WithLogger(d.logger),
			keyvar.WithCallback(message.DoneCodes, func(cv *keyvar.CmdVar) {
				d.refreshCmdDone(key, cv)
			}),
		)
		d.ExecuteCmd(cmdVar)
	}

	if delaying && inFlight == 0 {
		d.endDelay()
	}
}

// refreshCmdDone reports the outcome of one refresh command and, in
// delayed-callback mode, releases callbacks once the last refresh
// lands.
func (d *Dispatcher) refreshCmdDone(key refreshKey, cmdVar *keyvar.CmdVar) {
	d.mu.Lock()
	delete(d.refreshing, key)
	var stale []string
	for _, list := range d.keyVarTable {
		for _, kv := range list {
			actor, cmd := kv.RefreshInfo()
			if actor == key.actor && cmd == key.cmd && !kv.IsCurrent() {
				stale = append(stale, kv.String())
			}
		}
	}
	delaying := d.delaying
	remaining := len(d.refreshing)
	d.mu.Unlock()

	if cmdVar.DidFail() {
		d.logger.Warn("refresh command failed",
			"refreshActor", key.actor, "refreshCmd", key.cmd, "staleKeyVars", stale)
	} else if len(stale) > 0 {
		d.logger.Warn("refresh command finished but keyvars are still stale",
			"refreshActor", key.actor, "refreshCmd", key.cmd, "staleKeyVars", stale)
	}

	if delaying && remaining == 0 {
		d.endDelay()
	}
}

// endDelay leaves delayed-callback mode and delivers the pent-up
// KeyVar notifications.
func (d *Dispatcher) endDelay() {
	d.mu.Lock()
	if !d.delaying {
		d.mu.Unlock()
		return
	}
	d.delaying = false
	d.mu.Unlock()

	d.logger.Info("initial refresh complete, delivering delayed keyvar callbacks")
	d.SendAllKeyVarCallbacks(false)
}

// failData renders "<label>; Actor=...; Cmd=...; Text=..." as a
// parseable keyword list.
func failData(label string, cmdVar *keyvar.CmdVar, text string) string {
	kws := message.Keywords{
		{Name: label},
		{Name: "Actor", Values: message.NewValues(cmdVar.Actor())},
		{Name: "Cmd", Values: message.NewValues(cmdVar.CmdStr())},
	}
	if text != "" {
		kws = append(kws, message.Keyword{Name: "Text", Values: message.NewValues(text)})
	}
	return kws.Canonical()
}

func abortData(cmdVar *keyvar.CmdVar, text string) string {
	return failData("Aborted", cmdVar, text)
}

func timeoutData(cmdVar *keyvar.CmdVar) string {
	return failData("Timeout", cmdVar, "")
}
