package interpreter_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"tcav-panel/internal/interpreter"
	"tcav-panel/pkg/api"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientInterpret(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/get_interpretations", r.URL.Path)
		assert.Equal(t, "sst2", r.URL.Query().Get("model"))
		assert.Equal(t, "sst_dev", r.URL.Query().Get("dataset_name"))
		assert.Equal(t, "tcav", r.URL.Query().Get("interpreter"))

		var body map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.JSONEq(t, `{"concept_set_ids":["a","b"],"class_to_explain":"1","grad_layer":"cls_grad"}`, string(body["config"]))
		assert.JSONEq(t, `[{"id":"a"},{"id":"b"},{"id":"c"}]`, string(body["inputs"]))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"p_val": 0.02, "random_mean": 0.4, "result": {"score": 0.75, "accuracy": 0.9}}]`))
	}))
	defer server.Close()

	client := interpreter.NewClient(server.URL, time.Second)
	results, err := client.Interpret(context.Background(), api.InterpretRequest{
		Inputs:  []api.IndexedInput{{Id: "a"}, {Id: "b"}, {Id: "c"}},
		Model:   "sst2",
		Dataset: "sst_dev",
		Method:  "tcav",
		Config: api.TCAVConfig{
			ConceptSetIds:  []string{"a", "b"},
			ClassToExplain: "1",
			GradLayer:      "cls_grad",
		},
		Description: "Running TCAV",
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0.02, results[0].PValue)
	assert.Equal(t, 0.4, results[0].RandomMean)
	assert.Equal(t, 0.75, results[0].Result.Score)
	assert.Equal(t, 0.9, results[0].Result.Accuracy)
}

func TestClientInterpretServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "layer not found", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := interpreter.NewClient(server.URL, time.Second)
	_, err := client.Interpret(context.Background(), api.InterpretRequest{Method: "tcav"})
	assert.ErrorContains(t, err, "status 500")
}

func TestClientModelSpec(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/get_model_spec", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"output": [{"name": "grad", "kind": "Gradients"}, {"name": "probas", "kind": "MulticlassPreds", "vocab": ["0", "1"]}]}`))
	}))
	defer server.Close()

	client := interpreter.NewClient(server.URL, time.Second)
	spec, err := client.ModelSpec(context.Background(), "sst2")
	require.NoError(t, err)
	assert.Equal(t, api.ModelSpec{
		Model: "sst2",
		Output: []api.FieldSpec{
			{Name: "grad", Kind: api.KindGradients},
			{Name: "probas", Kind: api.KindMulticlassPreds, Vocab: []string{"0", "1"}},
		},
	}, spec)
}

type countingSource struct {
	calls atomic.Int32
	gate  chan struct{}
	err   error
}

func (s *countingSource) ModelSpec(ctx context.Context, model string) (api.ModelSpec, error) {
	s.calls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	if s.err != nil {
		return api.ModelSpec{}, s.err
	}
	return api.ModelSpec{Model: model}, nil
}

func TestCapabilityCacheMemoizes(t *testing.T) {
	source := &countingSource{}
	cache := interpreter.NewCapabilityCache(source)

	for i := 0; i < 3; i++ {
		spec, err := cache.ModelSpec(context.Background(), "sst2")
		require.NoError(t, err)
		assert.Equal(t, "sst2", spec.Model)
	}
	assert.EqualValues(t, 1, source.calls.Load())

	cache.Invalidate("sst2")
	_, err := cache.ModelSpec(context.Background(), "sst2")
	require.NoError(t, err)
	assert.EqualValues(t, 2, source.calls.Load())
}

func TestCapabilityCacheCollapsesConcurrentLookups(t *testing.T) {
	source := &countingSource{gate: make(chan struct{})}
	cache := interpreter.NewCapabilityCache(source)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.ModelSpec(context.Background(), "sst2")
			assert.NoError(t, err)
		}()
	}

	require.Eventually(t, func() bool { return source.calls.Load() == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(source.gate)
	wg.Wait()

	assert.EqualValues(t, 1, source.calls.Load())
}

func TestCapabilityCacheDoesNotCacheErrors(t *testing.T) {
	source := &countingSource{err: errors.New("unavailable")}
	cache := interpreter.NewCapabilityCache(source)

	_, err := cache.ModelSpec(context.Background(), "sst2")
	assert.Error(t, err)
	_, err = cache.ModelSpec(context.Background(), "sst2")
	assert.Error(t, err)
	assert.EqualValues(t, 2, source.calls.Load())
}
