package keyvar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Subaru-PFS/tron-actorcore-sub000/errors"
	"github.com/Subaru-PFS/tron-actorcore-sub000/keys"
	"github.com/Subaru-PFS/tron-actorcore-sub000/message"
	"github.com/Subaru-PFS/tron-actorcore-sub000/vtype"
)

func intKey(name string) *keys.Key {
	return &keys.Key{Name: name, Types: keys.MustTypedValues(vtype.Once(vtype.Int{}))}
}

func floatKey(name string) *keys.Key {
	return &keys.Key{Name: name, Types: keys.MustTypedValues(vtype.Once(vtype.Float{}))}
}

func TestKeyVar_Set(t *testing.T) {
	kv := New("test", intKey("IntKey"), nil)

	assert.False(t, kv.IsCurrent())
	assert.True(t, kv.Timestamp().IsZero())
	_, err := kv.Value()
	assert.Error(t, err, "never-set keyvar has no value")

	var seen []*KeyVar
	kv.AddCallback(func(k *KeyVar) { seen = append(seen, k) })

	require.NoError(t, kv.Set(message.NewValues("42"), true, nil, true))
	assert.True(t, kv.IsCurrent())
	assert.True(t, kv.IsGenuine())
	assert.False(t, kv.Timestamp().IsZero())
	require.Len(t, seen, 1)
	assert.Same(t, kv, seen[0])

	v, err := kv.Value()
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
}

func TestKeyVar_SetMismatch(t *testing.T) {
	kv := New("test", intKey("IntKey"), nil)

	err := kv.Set(message.NewValues("notanint"), true, nil, true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValueMismatch))
	assert.False(t, kv.IsCurrent(), "failed set leaves the keyvar unchanged")

	require.NoError(t, kv.Set(message.NewValues("1"), true, nil, true))
	err = kv.Set(message.NewValues("1", "2"), true, nil, true)
	require.Error(t, err)
	v, _ := kv.Value()
	assert.Equal(t, int64(1), v, "failed set keeps the previous value")
}

func TestKeyVar_SetNotCurrent(t *testing.T) {
	kv := New("test", intKey("IntKey"), nil)
	require.NoError(t, kv.Set(message.NewValues("5"), true, nil, true))

	calls := 0
	kv.AddCallback(func(*KeyVar) { calls++ })

	kv.SetNotCurrent()
	assert.False(t, kv.IsCurrent())
	assert.Equal(t, 1, calls, "setNotCurrent still notifies")

	v, err := kv.Value()
	require.NoError(t, err)
	assert.Equal(t, int64(5), v, "stale value stays readable")
}

func TestKeyVar_DelayedNotify(t *testing.T) {
	kv := New("test", intKey("IntKey"), nil)
	calls := 0
	kv.AddCallback(func(*KeyVar) { calls++ })

	require.NoError(t, kv.Set(message.NewValues("5"), true, nil, false))
	assert.Equal(t, 0, calls)
	kv.Notify()
	assert.Equal(t, 1, calls)
}

func TestKeyVar_CallbackPanicRecovered(t *testing.T) {
	kv := New("test", intKey("IntKey"), nil)
	kv.AddCallback(func(*KeyVar) { panic("boom") })
	called := false
	kv.AddCallback(func(*KeyVar) { called = true })

	require.NoError(t, kv.Set(message.NewValues("1"), true, nil, true))
	assert.True(t, called, "panic must not block later callbacks")
}

func TestKeyVar_RemoveCallback(t *testing.T) {
	kv := New("test", intKey("IntKey"), nil)
	calls := 0
	id := kv.AddCallback(func(*KeyVar) { calls++ })
	kv.RemoveCallback(id)
	kv.RemoveCallback(999) // unknown handle is a no-op

	require.NoError(t, kv.Set(message.NewValues("1"), true, nil, true))
	assert.Equal(t, 0, calls)
}

func TestKeyVar_RefreshInfo(t *testing.T) {
	kv := New("mcs", &keys.Key{
		Name:       "state",
		Types:      keys.MustTypedValues(vtype.Once(vtype.String{})),
		RefreshCmd: "status",
	}, nil)
	require.True(t, kv.HasRefreshCmd())
	actor, cmd := kv.RefreshInfo()
	assert.Equal(t, "mcs", actor, "refresh actor defaults to the owner")
	assert.Equal(t, "status", cmd)

	plain := New("mcs", intKey("IntKey"), nil)
	assert.False(t, plain.HasRefreshCmd())
	plain.SetRefreshInfo("keys", "getFor=mcs IntKey")
	assert.True(t, plain.HasRefreshCmd())
	actor, cmd = plain.RefreshInfo()
	assert.Equal(t, "keys", actor)
	assert.Equal(t, "getFor=mcs IntKey", cmd)
}

func TestKeyVar_ValueShapes(t *testing.T) {
	flag := New("test", &keys.Key{Name: "flag", Types: keys.MustTypedValues()}, nil)
	require.NoError(t, flag.Set(nil, true, nil, true))
	v, err := flag.Value()
	require.NoError(t, err)
	assert.Equal(t, true, v, "zero-value keyword reads as true")

	pair := New("test", &keys.Key{
		Name:  "pair",
		Types: keys.MustTypedValues(vtype.Times(vtype.Float{}, 2)),
	}, nil)
	require.NoError(t, pair.Set(message.NewValues("1.5", "2.5"), true, nil, true))
	v, err = pair.Value()
	require.NoError(t, err)
	assert.Equal(t, []any{1.5, 2.5}, v)
}
