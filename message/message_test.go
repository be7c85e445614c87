package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Subaru-PFS/tron-actorcore-sub000/errors"
)

func TestParseReply(t *testing.T) {
	r, err := ParseReply("prog.me 7 test : StringKey=hello; IntKey=1,2")
	require.NoError(t, err)

	assert.Equal(t, "prog", r.Header.Program)
	assert.Equal(t, "me", r.Header.User)
	assert.Equal(t, "prog.me", r.Header.Cmdr())
	assert.Equal(t, 7, r.Header.CommandID)
	assert.Equal(t, "test", r.Header.Actor)
	assert.Equal(t, CodeFinished, r.Header.Code)

	require.Len(t, r.Keywords, 2)
	kw, ok := r.Keywords.Get("stringkey")
	require.True(t, ok)
	assert.Equal(t, []string{"hello"}, kw.Values.Strings())
	kw, ok = r.Keywords.Get("INTKEY")
	require.True(t, ok)
	assert.Equal(t, []string{"1", "2"}, kw.Values.Strings())
}

func TestParseReply_Header(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"no dot in commander", "prog 7 test :"},
		{"bad command id", "prog.me seven test :"},
		{"bad code", "prog.me 7 test x"},
		{"truncated", "prog.me 7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseReply(tt.line)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrParse))
		})
	}
}

func TestParseReply_CaseAndDots(t *testing.T) {
	// Upper-case codes and multi-dot commanders are accepted; the user
	// part keeps its internal dots for forwarded commands.
	r, err := ParseReply("hub.tui.script 42 mcs W text=oops")
	require.NoError(t, err)
	assert.Equal(t, "hub", r.Header.Program)
	assert.Equal(t, "tui.script", r.Header.User)
	assert.Equal(t, CodeWarning, r.Header.Code)
}

func TestParseReply_QuotedValues(t *testing.T) {
	r, err := ParseReply(`prog.me 1 test i text="a \"b\", c=d; e"`)
	require.NoError(t, err)
	kw, ok := r.Keywords.Get("text")
	require.True(t, ok)
	require.Len(t, kw.Values, 1)
	assert.Equal(t, `a "b", c=d; e`, kw.Values[0].Raw)
}

func TestParseReply_EmptyValue(t *testing.T) {
	r, err := ParseReply("prog.me 1 test i empty=; bare")
	require.NoError(t, err)
	require.Len(t, r.Keywords, 2)
	assert.Equal(t, []string{""}, r.Keywords[0].Values.Strings())
	assert.Empty(t, r.Keywords[1].Values)
}

func TestParseReply_Raw(t *testing.T) {
	r, err := ParseReply(`prog.me 1 test i raw=anything goes; here ="unquoted`)
	require.NoError(t, err)
	require.Len(t, r.Keywords, 1)
	assert.Equal(t, `anything goes; here ="unquoted`, r.Keywords[0].Values[0].Raw)
}

func TestReplyCanonical_Invariant(t *testing.T) {
	lines := []string{
		"prog.me 7 test : stringkey=hello;intkey=1,2",
		`prog.me 1 test i text="a b, c"`,
		"prog.me 1 test f bare;empty=",
		"hub.tui.script 42 mcs w raw=verbatim; stuff",
	}
	for _, line := range lines {
		r, err := ParseReply(line)
		require.NoError(t, err, line)
		canon := r.Canonical()
		r2, err := ParseReply(canon)
		require.NoError(t, err, canon)
		assert.Equal(t, canon, r2.Canonical(), line)
	}
}

func TestParseCommand(t *testing.T) {
	c, err := ParseCommand(`move 1.0,2.0 abs home="north pole"`)
	require.NoError(t, err)
	assert.Equal(t, "move", c.Verb)
	assert.Equal(t, []string{"1.0", "2.0"}, c.Values.Strings())
	require.Len(t, c.Keywords, 2)
	assert.True(t, c.Keywords[0].Matches("abs"))
	assert.Equal(t, []string{"north pole"}, c.Keywords[1].Values.Strings())
}

func TestParseCommand_BareVerb(t *testing.T) {
	c, err := ParseCommand("status")
	require.NoError(t, err)
	assert.Equal(t, "status", c.Verb)
	assert.Empty(t, c.Values)
	assert.Empty(t, c.Keywords)
}

func TestParseCommand_BadVerbs(t *testing.T) {
	for _, line := range []string{"", "raw stuff", "a.b x=1"} {
		_, err := ParseCommand(line)
		require.Error(t, err, line)
		assert.True(t, errors.Is(err, errors.ErrParse), line)
	}
}

func TestCommandCanonical_Invariant(t *testing.T) {
	c, err := ParseCommand(`MOVE 1,2 ABS speed=3 label="a b"`)
	require.NoError(t, err)
	canon := c.Canonical()
	assert.Equal(t, `move 1,2 abs speed=3 label="a b"`, canon)
	c2, err := ParseCommand(canon)
	require.NoError(t, err)
	assert.Equal(t, canon, c2.Canonical())
}

func TestQuoteIfNeeded(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"plain", "plain"},
		{"", `""`},
		{"a b", `"a b"`},
		{"a,b", `"a,b"`},
		{"a=b", `"a=b"`},
		{"a;b", `"a;b"`},
		{`"lead`, `"\"lead"`},
		{`back\slash`, `back\slash`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, quoteIfNeeded(tt.raw), tt.raw)
		assert.Equal(t, tt.want, V(tt.raw).Canonical(), tt.raw)
	}
}

func TestCodes(t *testing.T) {
	assert.True(t, CodeFinished.IsDone())
	assert.False(t, CodeFinished.IsFailed())
	assert.True(t, CodeFatal.IsDone())
	assert.True(t, CodeFatal.IsFailed())
	assert.False(t, CodeInformation.IsDone())

	assert.True(t, DoneCodes.Contains(CodeError))
	assert.False(t, FailedCodes.Contains(CodeFinished))
	assert.True(t, AllCodes.Contains(CodeQueued))
}
