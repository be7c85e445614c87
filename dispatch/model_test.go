package dispatch

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Subaru-PFS/tron-actorcore-sub000/errors"
	"github.com/Subaru-PFS/tron-actorcore-sub000/keys"
	"github.com/Subaru-PFS/tron-actorcore-sub000/vtype"
)

func TestNewModel_RegistersOncePerActor(t *testing.T) {
	d, _ := newTestDispatcher(t)
	dict := testDict(t)

	model, err := NewModel(d, "test", dict, nil)
	require.NoError(t, err)

	got, ok := d.Model("TEST")
	require.True(t, ok)
	assert.Same(t, model, got)

	_, err = NewModel(d, "Test", dict, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAlreadyRegistered))
}

func TestModel_KeyVarLookup(t *testing.T) {
	d, _ := newTestDispatcher(t)
	model, err := NewModel(d, "test", testDict(t), nil)
	require.NoError(t, err)

	kv, ok := model.KeyVar("intkey")
	require.True(t, ok)
	assert.Equal(t, "IntKey", kv.Name())
	assert.Equal(t, "test", kv.Actor)

	_, ok = model.KeyVar("nosuchkey")
	assert.False(t, ok)

	assert.Len(t, model.KeyVars(), 3)
	assert.NotEmpty(t, d.KeyVars("test", "IntKey"), "model keyvars are registered for routing")
}

func TestModel_CacheRelayBatches(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var keyList []*keys.Key
	for i := range 25 {
		keyList = append(keyList, &keys.Key{
			Name:    fmt.Sprintf("Key%02d", i),
			Types:   keys.MustTypedValues(vtype.Once(vtype.Int{})),
			DoCache: true,
		})
	}
	// a key with its own recipe must not join a cache batch
	keyList = append(keyList, &keys.Key{
		Name:       "OwnRecipe",
		Types:      keys.MustTypedValues(vtype.Once(vtype.Int{})),
		DoCache:    true,
		RefreshCmd: "status",
	})
	dict, err := keys.NewDictionary("mcs", 1, 0, keyList...)
	require.NoError(t, err)

	model, err := NewModel(d, "mcs", dict, nil)
	require.NoError(t, err)

	recipes := make(map[string]int)
	for i := range 25 {
		kv, ok := model.KeyVar(fmt.Sprintf("Key%02d", i))
		require.True(t, ok)
		actor, cmd := kv.RefreshInfo()
		assert.Equal(t, "keys", actor)
		assert.True(t, strings.HasPrefix(cmd, "getFor=mcs "), cmd)
		recipes[cmd]++
	}
	require.Len(t, recipes, 2, "25 cacheable keys split into two getFor batches")
	counts := make(map[int]bool)
	for _, n := range recipes {
		counts[n] = true
	}
	assert.True(t, counts[20] && counts[5])

	own, _ := model.KeyVar("OwnRecipe")
	actor, cmd := own.RefreshInfo()
	assert.Equal(t, "mcs", actor)
	assert.Equal(t, "status", cmd)
}
