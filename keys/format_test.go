package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Subaru-PFS/tron-actorcore-sub000/errors"
	"github.com/Subaru-PFS/tron-actorcore-sub000/message"
	"github.com/Subaru-PFS/tron-actorcore-sub000/vtype"
)

func testDict(t *testing.T) *Dictionary {
	t.Helper()
	d, err := NewDictionary("test", 1, 0,
		&Key{Name: "speed", Types: MustTypedValues(vtype.Once(vtype.Float{}))},
		&Key{Name: "label", Types: MustTypedValues(vtype.Once(vtype.String{}))},
		&Key{Name: "count", Types: MustTypedValues(vtype.Once(vtype.Int{}))},
	)
	require.NoError(t, err)
	return d
}

func TestCompileFormat(t *testing.T) {
	dict := testDict(t)
	valid := []string{
		"key1 key2 key3",
		"key1 key2 [key3]",
		"key1 (key2 [key3])",
		"@key1 key2 key3",
		"key1 [@key2 [key3]]",
		"<speed> <label> [<count>]",
		"@<speed> (<label>|<count>)",
		"abs|rel",
	}
	for _, format := range valid {
		_, err := CompileFormat(format, dict)
		assert.NoError(t, err, format)
	}

	invalid := []string{
		"",
		"key1 [key2",
		"(key1",
		"key1 @key2",
		"<nosuchkey>",
		"key1 | key2",
		"[]",
	}
	for _, format := range invalid {
		_, err := CompileFormat(format, dict)
		assert.Error(t, err, format)
	}
}

func mustCmd(t *testing.T, line string) *message.Command {
	t.Helper()
	cmd, err := message.ParseCommand(line)
	require.NoError(t, err)
	return &cmd
}

func TestCmdSpec_Validate(t *testing.T) {
	dict := testDict(t)
	spec, err := NewCmdSpec("move",
		MustTypedValues(vtype.Times(vtype.Float{}, 2)),
		"(abs|rel) <speed> [<label>]", dict)
	require.NoError(t, err)

	cmd := mustCmd(t, "move 1.0,2.0 abs speed=3.5")
	require.NoError(t, spec.Validate(cmd))
	assert.Equal(t, 2.0, cmd.Values[1].Val)
	kw, _ := cmd.Keywords.Get("speed")
	assert.Equal(t, 3.5, kw.Values[0].Val)

	// floating keys match in any order; optional key present
	cmd = mustCmd(t, `move 1.0,2.0 label="to home" speed=3.5 rel`)
	assert.NoError(t, spec.Validate(cmd))
}

func TestCmdSpec_Validate_Failures(t *testing.T) {
	dict := testDict(t)
	spec, err := NewCmdSpec("move",
		MustTypedValues(vtype.Times(vtype.Float{}, 2)),
		"(abs|rel) <speed>", dict)
	require.NoError(t, err)

	tests := []struct {
		name string
		line string
	}{
		{"wrong verb", "home abs speed=1"},
		{"missing values", "move abs speed=1"},
		{"missing required alternation", "move 1.0,2.0 speed=1"},
		{"missing required key", "move 1.0,2.0 abs"},
		{"unmatched keyword", "move 1.0,2.0 abs speed=1 extra"},
		{"bad value type", "move 1.0,2.0 abs speed=fast"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := mustCmd(t, tt.line)
			err := spec.Validate(cmd)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrValidation))
		})
	}
}

func TestCmdSpec_Validate_Rollback(t *testing.T) {
	dict := testDict(t)
	spec, err := NewCmdSpec("move", TypedValues{}, "<speed> <count>", dict)
	require.NoError(t, err)

	// speed converts before count fails; the conversion must be undone
	cmd := mustCmd(t, "move speed=1.5 count=oops")
	require.Error(t, spec.Validate(cmd))
	kw, _ := cmd.Keywords.Get("speed")
	assert.Nil(t, kw.Values[0].Val)
}

func TestCmdSpec_Validate_Positioned(t *testing.T) {
	spec, err := NewCmdSpec("set", TypedValues{}, "@first second", nil)
	require.NoError(t, err)

	assert.NoError(t, spec.Validate(mustCmd(t, "set first second")))
	assert.Error(t, spec.Validate(mustCmd(t, "set second first")),
		"positioned key must lead the keyword list")
}

func TestCmdSpec_Validate_OptionalGroup(t *testing.T) {
	dict := testDict(t)
	spec, err := NewCmdSpec("expose", TypedValues{}, "[<count> <label>]", dict)
	require.NoError(t, err)

	assert.NoError(t, spec.Validate(mustCmd(t, "expose")))
	assert.NoError(t, spec.Validate(mustCmd(t, `expose count=3 label=dark`)))
	// half a group does not match and is rolled back into "unmatched"
	assert.Error(t, spec.Validate(mustCmd(t, "expose count=3")))
}
