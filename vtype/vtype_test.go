package vtype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalarParse_Valid(t *testing.T) {
	tests := []struct {
		name  string
		vt    ValueType
		token string
		want  any
	}{
		{"float", Float{}, "1.23", 1.23},
		{"int", Int{}, "-123", int64(-123)},
		{"string", String{}, "hello", "hello"},
		{"uint", UInt{}, "+123", uint64(123)},
		{"hex", Hex{}, "123", uint64(0x123)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.vt.Parse(tt.token)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScalarParse_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		vt    ValueType
		token string
	}{
		{"float garbage", Float{}, "1.2*3"},
		{"int float", Int{}, "1.2"},
		{"uint negative", UInt{}, "-123"},
		{"hex garbage", Hex{}, "xyz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := tt.vt.Parse(tt.token)
			assert.False(t, ok)
		})
	}
}

func TestInvalidSentinel(t *testing.T) {
	f := Float{Meta{InvalidTok: "???"}}
	got, ok := f.Parse("???")
	require.True(t, ok)
	assert.True(t, IsInvalid(got))
	assert.Equal(t, "???", f.Format(got))

	e := Enum{Meta: Meta{InvalidTok: "PINK"}, Labels: []string{"RED", "GREEN", "BLUE"}}
	got, ok = e.Parse("PINK")
	require.True(t, ok)
	assert.True(t, IsInvalid(got))

	u := UInt{Meta{InvalidTok: "-"}}
	got, ok = u.Parse("-")
	require.True(t, ok)
	assert.True(t, IsInvalid(got))
}

func TestEnum(t *testing.T) {
	color := Enum{Labels: []string{"red", "green", "blue"}}

	got, ok := color.Parse("green")
	require.True(t, ok)
	assert.Equal(t, 1, got)
	assert.Equal(t, "blue", color.Format(2))

	// case-insensitive label match
	got, ok = color.Parse("RED")
	require.True(t, ok)
	assert.Equal(t, 0, got)

	_, ok = color.Parse("brown")
	assert.False(t, ok)
	_, ok = color.Parse("0")
	assert.False(t, ok)
}

func TestBool(t *testing.T) {
	b := Bool{FalseTok: "Nay", TrueTok: "Yay"}

	got, ok := b.Parse("Yay")
	require.True(t, ok)
	assert.Equal(t, true, got)

	got, ok = b.Parse("Nay")
	require.True(t, ok)
	assert.Equal(t, false, got)

	_, ok = b.Parse("maybe")
	assert.False(t, ok)

	assert.Equal(t, "Nay", b.Format(false))
	assert.Equal(t, "Yay", b.Format(true))
}

func TestBits(t *testing.T) {
	reg, err := NewBits(Meta{}, "addr:8", ":1", "strobe")
	require.NoError(t, err)
	assert.Equal(t, uint(10), reg.Width())

	v, ok := reg.Parse("639") // 0x27f
	require.True(t, ok)

	addr, ok := reg.Field(v.(uint64), "addr")
	require.True(t, ok)
	assert.Equal(t, uint64(0x7f), addr)

	strobe, ok := reg.Field(v.(uint64), "strobe")
	require.True(t, ok)
	assert.Equal(t, uint64(1), strobe)

	v2 := uint64(0)
	v2, ok = reg.SetField(v2, "strobe", 1)
	require.True(t, ok)
	v2, ok = reg.SetField(v2, "addr", 0x7f)
	require.True(t, ok)
	assert.Equal(t, uint64(0x27f), v2)
	assert.Equal(t, "(addr=01111111,strobe=1)", reg.FieldString(v2))
}

func TestBits_BadSpecs(t *testing.T) {
	_, err := NewBits(Meta{})
	assert.Error(t, err)
	_, err = NewBits(Meta{}, "addr*:2")
	assert.Error(t, err)
	_, err = NewBits(Meta{}, "addr:-2")
	assert.Error(t, err)
	_, err = NewBits(Meta{}, "addr:99")
	assert.Error(t, err)
}

func TestRepeated_Validate(t *testing.T) {
	assert.NoError(t, Once(Float{}).Validate())
	assert.NoError(t, Between(Float{}, 0, 3).Validate())
	assert.NoError(t, Between(Float{}, 1, Unbounded).Validate())

	assert.Error(t, Between(Float{}, 2, 1).Validate())
	assert.Error(t, Between(Float{}, -1, 1).Validate())
	assert.Error(t, Repeated{}.Validate())
}

func TestRepeated_String(t *testing.T) {
	assert.Equal(t, "Float*3", Times(Float{}, 3).String())
	assert.Equal(t, "Int*(1,)", Between(Int{}, 1, Unbounded).String())
	assert.Equal(t, "String*(0,3)", Between(String{}, 0, 3).String())
}
