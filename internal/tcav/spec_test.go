package tcav_test

import (
	"tcav-panel/internal/tcav"
	"tcav-panel/pkg/api"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldDisplay(t *testing.T) {
	emb := api.FieldSpec{Name: "emb", Kind: api.KindEmbeddings}
	grad := api.FieldSpec{Name: "grad", Kind: api.KindGradients}
	preds := api.FieldSpec{Name: "preds", Kind: api.KindMulticlassPreds, Vocab: []string{"0", "1"}}

	assert.True(t, tcav.ShouldDisplay(api.ModelSpec{Output: []api.FieldSpec{emb, grad, preds}}))
	assert.False(t, tcav.ShouldDisplay(api.ModelSpec{Output: []api.FieldSpec{grad, preds}}))
	assert.False(t, tcav.ShouldDisplay(api.ModelSpec{Output: []api.FieldSpec{emb, preds}}))
	assert.False(t, tcav.ShouldDisplay(api.ModelSpec{Output: []api.FieldSpec{emb, grad}}))
	assert.False(t, tcav.ShouldDisplay(api.ModelSpec{}))
}

func TestOptionLists(t *testing.T) {
	spec := api.ModelSpec{Output: []api.FieldSpec{
		{Name: "g2", Kind: api.KindGradients},
		{Name: "first", Kind: api.KindMulticlassPreds, Vocab: []string{"neg", "pos"}},
		{Name: "g1", Kind: api.KindGradients},
		{Name: "second", Kind: api.KindMulticlassPreds, Vocab: []string{"a", "b", "c"}},
	}}

	assert.Equal(t, []string{"g2", "g1"}, tcav.GradientLayers(spec))
	assert.Equal(t, []string{"neg", "pos"}, tcav.PredictableClasses(spec))

	assert.Empty(t, tcav.GradientLayers(api.ModelSpec{}))
	assert.Empty(t, tcav.PredictableClasses(api.ModelSpec{}))
}
