package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Subaru-PFS/tron-actorcore-sub000/message"
	"github.com/Subaru-PFS/tron-actorcore-sub000/vtype"
)

func TestNewTypedValues(t *testing.T) {
	_, err := NewTypedValues(vtype.Once(vtype.Float{}), vtype.Once(vtype.Int{}))
	assert.NoError(t, err)

	// ranged repeats only on the last entry
	_, err = NewTypedValues(vtype.Between(vtype.Float{}, 0, 2), vtype.Once(vtype.Int{}))
	assert.Error(t, err)
	_, err = NewTypedValues(vtype.Once(vtype.Int{}), vtype.Between(vtype.Float{}, 0, vtype.Unbounded))
	assert.NoError(t, err)
}

func TestTypedValues_Descriptor(t *testing.T) {
	assert.Equal(t, "none", MustTypedValues().Descriptor())
	assert.Equal(t, "2", MustTypedValues(vtype.Times(vtype.Int{}, 2)).Descriptor())
	assert.Equal(t, "1 or more", MustTypedValues(vtype.Between(vtype.Int{}, 1, vtype.Unbounded)).Descriptor())
	assert.Equal(t, "1-3", MustTypedValues(vtype.Between(vtype.Int{}, 1, 3)).Descriptor())
}

func TestConsume_Scalar(t *testing.T) {
	tv := MustTypedValues(vtype.Once(vtype.Int{}))

	vals := message.NewValues("42")
	require.True(t, tv.Consume(vals))
	assert.Equal(t, int64(42), vals[0].Val)

	// a second token never matches a single-value signature
	vals = message.NewValues("42", "43")
	assert.False(t, tv.Consume(vals))
	assert.Nil(t, vals[0].Val)

	// a non-integer token fails and leaves the values untouched
	vals = message.NewValues("4.2")
	assert.False(t, tv.Consume(vals))
	assert.Nil(t, vals[0].Val)
}

func TestConsume_Repeats(t *testing.T) {
	tv := MustTypedValues(vtype.Once(vtype.String{}), vtype.Between(vtype.Int{}, 1, vtype.Unbounded))

	vals := message.NewValues("label", "1", "2", "3")
	require.True(t, tv.Consume(vals))
	assert.Equal(t, "label", vals[0].Val)
	assert.Equal(t, int64(3), vals[3].Val)

	// minimum repeat unmet
	vals = message.NewValues("label")
	assert.False(t, tv.Consume(vals))

	// trailing token the last entry cannot convert
	vals = message.NewValues("label", "1", "oops")
	assert.False(t, tv.Consume(vals))
	assert.Nil(t, vals[1].Val, "rollback must clear partial conversions")
}

func TestConsume_BoundedRange(t *testing.T) {
	tv := MustTypedValues(vtype.Between(vtype.Float{}, 1, 3))

	for _, n := range []int{1, 2, 3} {
		raw := []string{"1.0", "2.0", "3.0"}[:n]
		vals := message.NewValues(raw...)
		assert.True(t, tv.Consume(vals), "%d values", n)
	}
	vals := message.NewValues("1.0", "2.0", "3.0", "4.0")
	assert.False(t, tv.Consume(vals))
}

func TestConsume_InvalidSentinel(t *testing.T) {
	tv := MustTypedValues(vtype.Once(vtype.Float{Meta: vtype.Meta{InvalidTok: "NaN"}}))

	vals := message.NewValues("NaN")
	require.True(t, tv.Consume(vals))
	assert.True(t, vtype.IsInvalid(vals[0].Val))
}

func TestKey_Consume(t *testing.T) {
	key := &Key{Name: "IntKey", Types: MustTypedValues(vtype.Once(vtype.Int{}))}

	kw := message.NewKeyword("intkey", "7")
	require.True(t, key.Consume(&kw))
	assert.Equal(t, int64(7), kw.Values[0].Val)

	other := message.NewKeyword("floatkey", "7")
	assert.False(t, key.Consume(&other))
}

func TestKey_Create(t *testing.T) {
	key := &Key{Name: "pos", Types: MustTypedValues(vtype.Times(vtype.Float{}, 2))}

	kw, err := key.Create("1.5", "-2.5")
	require.NoError(t, err)
	assert.Equal(t, -2.5, kw.Values[1].Val)

	_, err = key.Create("1.5")
	assert.Error(t, err)
}
