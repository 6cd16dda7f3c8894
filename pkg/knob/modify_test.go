package knob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/knobs/pkg/anim"
)

func TestModificationFlag(t *testing.T) {
	ctx := context.Background()
	k := NewDouble(newTestHolder("node", nil), "size", 1)
	assert.False(t, k.HasModifications())

	require.NoError(t, k.SetDefaultValue(ctx, 5, anim.DimSpecAll))
	set(t, k, 0, 0, 5)
	assert.False(t, k.HasModifications())

	set(t, k, 0, 0, 6)
	assert.True(t, k.HasModifications())
	assert.True(t, k.HasModificationsForDimension(0))

	require.NoError(t, k.ResetToDefaultValue(ctx, anim.ViewSetSpecAll, anim.DimSpecAll))
	assert.False(t, k.HasModifications())

	keyed(t, k, anim.Dim(0), 1)
	assert.True(t, k.HasModifications(), "keyframes are a modification")
	require.NoError(t, k.ResetToDefaultValue(ctx, anim.ViewSetSpecAll, anim.DimSpecAll))
	assert.False(t, k.IsAnimated(0, anim.ViewMain))
	assert.False(t, k.HasModifications())
}

func TestModificationFlagPerDimension(t *testing.T) {
	k := NewDouble(nil, "translate", 2)
	set(t, k, 1, 0, 1)
	assert.False(t, k.HasModificationsForDimension(0))
	assert.True(t, k.HasModificationsForDimension(1))
	assert.False(t, k.HasModificationsForDimension(5))
}

func TestModificationFlagInSplitView(t *testing.T) {
	ctx := context.Background()
	k := NewDouble(nil, "size", 1)
	require.True(t, k.SplitView(ctx, 1))
	set(t, k, 0, 1, 2)
	assert.True(t, k.HasModifications())
	require.True(t, k.UnSplitView(ctx, 1))
	assert.False(t, k.HasModifications())
}

func TestDefaultValues(t *testing.T) {
	ctx := context.Background()
	k := NewInt(nil, "count", 2)

	require.NoError(t, k.SetDefaultValueWithoutApplying(3, anim.DimSpecAll))
	assert.False(t, k.HasDefaultValueChanged(0))
	v, err := k.RawValue(0, anim.ViewMain)
	require.NoError(t, err)
	assert.Zero(t, v, "not applied")
	assert.True(t, k.HasModifications(), "0 differs from the default 3")

	require.NoError(t, k.SetDefaultValue(ctx, 4, anim.Dim(1)))
	assert.True(t, k.HasDefaultValueChanged(1))
	assert.False(t, k.HasDefaultValueChanged(0))
	def, err := k.DefaultValue(1)
	require.NoError(t, err)
	assert.Equal(t, 4, def)
	v, err = k.RawValue(1, anim.ViewMain)
	require.NoError(t, err)
	assert.Equal(t, 4, v, "applied")

	_, err = k.DefaultValue(2)
	assert.Error(t, err)
}

func TestFoldDimensions(t *testing.T) {
	ctx := context.Background()
	k := NewDouble(nil, "scale", 3)
	assert.True(t, k.AllDimensionsVisible(0))

	require.NoError(t, k.AutoAdjustFoldExpandDimensions(ctx, anim.ViewSetSpecAll))
	assert.False(t, k.AllDimensionsVisible(0), "equal dimensions fold")

	set(t, k, 1, 0, 2)
	require.NoError(t, k.AutoAdjustFoldExpandDimensions(ctx, anim.ViewSetSpecAll))
	assert.True(t, k.AllDimensionsVisible(0))

	set(t, k, 0, 0, 7)
	require.NoError(t, k.SetAllDimensionsVisible(ctx, anim.ViewSetSpecAll, false))
	assert.False(t, k.AllDimensionsVisible(0))
	for d := range 3 {
		assert.Equal(t, 7.0, rawValue(t, k, anim.DimIdx(d), 0), "folding copies dimension 0")
	}
}
