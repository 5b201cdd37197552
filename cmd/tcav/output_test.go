package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteScoresTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeScores(&buf, "table", map[string]float64{"neg": 0.25, "pos": 0.8, "mixed": 0.25}))

	assert.Equal(t, "SUBSET  SCORE\npos     0.8000\nmixed   0.2500\nneg     0.2500\n", buf.String())
}

func TestWriteScoresEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeScores(&buf, "table", map[string]float64{}))
	assert.Equal(t, "no significant scores\n", buf.String())
}

func TestWriteScoresYaml(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeScores(&buf, "yaml", map[string]float64{"neg": 0.25, "pos": 0.8}))

	assert.Equal(t, "- subset: pos\n  score: 0.8\n- subset: neg\n  score: 0.25\n", buf.String())
}
