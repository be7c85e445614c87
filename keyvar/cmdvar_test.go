package keyvar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Subaru-PFS/tron-actorcore-sub000/message"
)

// fakeDispatcher implements Dispatcher for CmdVar tests.
type fakeDispatcher struct {
	aborted []int
	cmdr    string
}

func (d *fakeDispatcher) AbortCmdByID(cmdID int) { d.aborted = append(d.aborted, cmdID) }

func (d *fakeDispatcher) ReplyIsMine(reply *message.Reply) bool {
	return reply.Header.Cmdr() == d.cmdr
}

func reply(t *testing.T, line string) *message.Reply {
	t.Helper()
	r, err := message.ParseReply(line)
	require.NoError(t, err)
	return &r
}

func TestCmdVar_Lifecycle(t *testing.T) {
	var calls []message.MsgCode
	cv := NewCmdVar("test", "status",
		WithCallback(message.AllCodes, func(cv *CmdVar) {
			calls = append(calls, cv.LastCode())
		}))

	assert.Equal(t, 0, cv.CmdID())
	assert.False(t, cv.IsDone())

	d := &fakeDispatcher{cmdr: "prog.me"}
	cv.SetStartInfo(d, 7)
	assert.Equal(t, 7, cv.CmdID())
	assert.False(t, cv.StartTime().IsZero())
	assert.True(t, cv.MaxEndTime().IsZero(), "no time limit configured")

	cv.HandleReply(reply(t, "prog.me 7 test i text=working"))
	assert.False(t, cv.IsDone())
	cv.HandleReply(reply(t, "prog.me 7 test : text=done"))
	assert.True(t, cv.IsDone())
	assert.False(t, cv.DidFail())
	assert.Equal(t, []message.MsgCode{message.CodeInformation, message.CodeFinished}, calls)

	select {
	case <-cv.Done():
	default:
		t.Fatal("done channel not closed")
	}

	// a straggler reply is dropped, callbacks are gone
	cv.HandleReply(reply(t, "prog.me 7 test w text=late"))
	assert.Len(t, calls, 2)
	assert.Len(t, cv.Replies(), 2)
}

func TestCmdVar_CallbackFiltering(t *testing.T) {
	var failed, done int
	cv := NewCmdVar("test", "status",
		WithCallback(message.FailedCodes, func(*CmdVar) { failed++ }),
		WithCallback(message.DoneCodes, func(*CmdVar) { done++ }))
	cv.SetStartInfo(&fakeDispatcher{cmdr: "prog.me"}, 3)

	cv.HandleReply(reply(t, "prog.me 3 test i"))
	assert.Equal(t, 0, failed+done)

	cv.HandleReply(reply(t, "prog.me 3 test f text=broken"))
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, done)
	assert.True(t, cv.DidFail())
}

func TestCmdVar_CallbackPanicRecovered(t *testing.T) {
	reached := false
	cv := NewCmdVar("test", "status",
		WithCallback(message.AllCodes, func(*CmdVar) { panic("boom") }),
		WithCallback(message.AllCodes, func(*CmdVar) { reached = true }))
	cv.SetStartInfo(&fakeDispatcher{cmdr: "prog.me"}, 1)

	cv.HandleReply(reply(t, "prog.me 1 test :"))
	assert.True(t, reached)
	assert.True(t, cv.IsDone(), "panicking callback must not derail completion")
}

func TestCmdVar_Abort(t *testing.T) {
	d := &fakeDispatcher{cmdr: "prog.me"}
	cv := NewCmdVar("test", "move 5", WithAbortCmdStr("stop"))

	cv.Abort() // before dispatch: no-op
	assert.Empty(t, d.aborted)

	cv.SetStartInfo(d, 9)
	cv.Abort()
	assert.Equal(t, []int{9}, d.aborted)

	cv.HandleReply(reply(t, "prog.me 9 test f text=aborted"))
	cv.Abort() // after completion: no-op
	assert.Len(t, d.aborted, 1)
}

func TestCmdVar_TimeLimit(t *testing.T) {
	cv := NewCmdVar("test", "move 5", WithTimeLimit(30*time.Second))
	cv.SetStartInfo(&fakeDispatcher{cmdr: "prog.me"}, 2)

	end := cv.MaxEndTime()
	require.False(t, end.IsZero())
	assert.InDelta(t, 30, time.Until(end).Seconds(), 1)
}

func TestCmdVar_TimeLimKeyVar(t *testing.T) {
	kv := New("test", floatKey("timeout"), nil)
	d := &fakeDispatcher{cmdr: "prog.me"}
	cv := NewCmdVar("test", "move 5",
		WithTimeLimit(10*time.Second),
		WithTimeLimKeyVar(kv, 0))
	cv.SetStartInfo(d, 4)

	// the actor reports it needs 100 more seconds
	r := reply(t, "prog.me 4 test i timeout=100")
	require.NoError(t, kv.Set(r.Keywords[0].Values, true, r, true))

	end := cv.MaxEndTime()
	assert.InDelta(t, 110, time.Until(end).Seconds(), 2,
		"deadline is now + keyword value + timeLim margin")
}

func TestCmdVar_TimeLimKeyVar_IgnoresForeign(t *testing.T) {
	kv := New("test", floatKey("timeout"), nil)
	cv := NewCmdVar("test", "move 5",
		WithTimeLimit(10*time.Second),
		WithTimeLimKeyVar(kv, 0))
	cv.SetStartInfo(&fakeDispatcher{cmdr: "prog.me"}, 4)

	// reply for someone else's command must not move the deadline
	r := reply(t, "other.user 4 test i timeout=100")
	require.NoError(t, kv.Set(r.Keywords[0].Values, true, r, true))
	assert.InDelta(t, 10, time.Until(cv.MaxEndTime()).Seconds(), 1)
}

func TestCmdVar_KeyVarCapture(t *testing.T) {
	kv := New("test", intKey("counter"), nil)
	d := &fakeDispatcher{cmdr: "prog.me"}
	cv := NewCmdVar("test", "count", WithKeyVars(kv))
	cv.SetStartInfo(d, 5)

	_, seen := cv.LastKeyVarData(kv)
	assert.False(t, seen)

	for i, line := range []string{
		"prog.me 5 test i counter=1",
		"other.user 99 test i counter=88", // not ours, must not be captured
		"prog.me 5 test i counter=2",
	} {
		r := reply(t, line)
		require.NoError(t, kv.Set(r.Keywords[0].Values, true, r, true), "reply %d", i)
	}

	data := cv.KeyVarData(kv)
	require.Len(t, data, 2)
	assert.Equal(t, []any{int64(1)}, data[0])
	last, seen := cv.LastKeyVarData(kv)
	require.True(t, seen)
	assert.Equal(t, []any{int64(2)}, last)

	// capture registration is released on completion
	cv.HandleReply(reply(t, "prog.me 5 test :"))
	r := reply(t, "prog.me 5 test i counter=3")
	require.NoError(t, kv.Set(r.Keywords[0].Values, true, r, true))
	assert.Len(t, cv.KeyVarData(kv), 2)
}
