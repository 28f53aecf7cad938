package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/agentmem-go/pkg/embedder"
	"github.com/oceanbase/agentmem-go/pkg/embedder/openai"
)

var _ embedder.Provider = (*openai.Client)(nil)

// fakeServer answers /embeddings with vectors [len(input), i], listed in
// reverse order to check that results are placed by index.
func fakeServer(t *testing.T, gotModel *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if gotModel != nil {
			*gotModel = req.Model
		}

		type item struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, item{
				Object:    "embedding",
				Embedding: []float32{float32(len(req.Input[i])), float32(i)},
				Index:     i,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"data":   data,
			"model":  req.Model,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_EmbedBatch(t *testing.T) {
	var model string
	srv := fakeServer(t, &model)

	client, err := openai.NewClient(&openai.Config{
		APIKey:     "test",
		BaseURL:    srv.URL + "/v1",
		Model:      "nomic-embed-text",
		Dimensions: 2,
	})
	require.NoError(t, err)
	defer client.Close()

	got, err := client.EmbedBatch(context.Background(), []string{"a", "bbb"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 0}, {3, 1}}, got)
	assert.Equal(t, "nomic-embed-text", model)
	assert.Equal(t, 2, client.Dimensions())

	one, err := client.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 0}, one)
}

func TestClient_Defaults(t *testing.T) {
	var model string
	srv := fakeServer(t, &model)

	client, err := openai.NewClient(&openai.Config{BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)
	assert.Equal(t, openai.DefaultDimensions, client.Dimensions())

	_, err = client.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-ada-002", model)

	empty, err := client.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := openai.NewClient(&openai.Config{BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "x")
	assert.Error(t, err)
}

func TestNewClient_Invalid(t *testing.T) {
	_, err := openai.NewClient(nil)
	assert.Error(t, err)
	_, err = openai.NewClient(&openai.Config{Dimensions: -1})
	assert.Error(t, err)
}
