package main

import (
	"tcav-panel/internal/tcav"
	"tcav-panel/pkg/api"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var runSpec = api.ModelSpec{
	Model: "sst2",
	Output: []api.FieldSpec{
		{Name: "cls_emb", Kind: api.KindEmbeddings},
		{Name: "probas", Kind: api.KindMulticlassPreds, Vocab: []string{"negative", "positive"}},
		{Name: "cls_grad", Kind: api.KindGradients},
	},
}

func TestNewPanelRejectsUnknownOptions(t *testing.T) {
	_, err := newPanel(runSpec, tcav.Deps{}, api.Selection{Subset: tcav.AllSubsets, Layer: "bogus"})
	assert.ErrorIs(t, err, tcav.ErrInvalidSelection)

	_, err = newPanel(runSpec, tcav.Deps{}, api.Selection{Subset: tcav.AllSubsets, Class: "bogus"})
	assert.ErrorIs(t, err, tcav.ErrInvalidSelection)
}

func TestNewPanelKeepsValidSelection(t *testing.T) {
	panel, err := newPanel(runSpec, tcav.Deps{}, api.Selection{Subset: "pair", Class: "positive"})
	require.NoError(t, err)
	assert.Equal(t, api.Selection{Subset: "pair", Class: "positive"}, panel.Selection())
}
