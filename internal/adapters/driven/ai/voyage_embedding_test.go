package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVoyageEmbedding_RequiresAPIKey(t *testing.T) {
	_, err := NewVoyageEmbedding("", "voyage-3-large", "")
	assert.Error(t, err)
}

func TestNewVoyageEmbedding_Defaults(t *testing.T) {
	svc, err := NewVoyageEmbedding("pa-test", "", "")
	require.NoError(t, err)

	emb := svc.(*VoyageEmbedding)
	assert.Equal(t, "voyage-3-large", emb.Model())
	assert.Equal(t, 1024, emb.Dimensions())
	assert.Equal(t, "https://api.voyageai.com/v1", emb.api.baseURL)
}

func TestVoyageEmbedding_InputTypes(t *testing.T) {
	var inputTypes []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer pa-test", r.Header.Get("Authorization"))

		var req voyageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		inputTypes = append(inputTypes, req.InputType)

		resp := embeddingResponse{Object: "list", Model: req.Model}
		// Return vectors out of order to check reordering by index
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, embeddingData{Index: i, Embedding: []float32{float32(i), 1}})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	svc, err := NewVoyageEmbedding("pa-test", "voyage-3-large", server.URL)
	require.NoError(t, err)

	docs, err := svc.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, float32(0), docs[0][0])
	assert.Equal(t, float32(2), docs[2][0])

	q, err := svc.EmbedQuery(context.Background(), "what is covered?")
	require.NoError(t, err)
	assert.Len(t, q, 2)

	assert.Equal(t, []string{"document", "query"}, inputTypes)
}

func TestVoyageEmbedding_ErrorDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail": "Input exceeds the maximum batch size"}`))
	}))
	defer server.Close()

	svc, err := NewVoyageEmbedding("pa-test", "", server.URL)
	require.NoError(t, err)

	_, err = svc.Embed(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Voyage API returned status 400")
	assert.Contains(t, err.Error(), "maximum batch size")
}

func TestVoyageEmbedding_MissingVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embeddingResponse{
			Data: []embeddingData{{Index: 0, Embedding: []float32{1}}},
		})
	}))
	defer server.Close()

	svc, err := NewVoyageEmbedding("pa-test", "", server.URL)
	require.NoError(t, err)

	_, err = svc.Embed(context.Background(), []string{"x", "y"})
	assert.Error(t, err)
}

func TestVoyageEmbedding_EmptyInput(t *testing.T) {
	svc, err := NewVoyageEmbedding("pa-test", "", "")
	require.NoError(t, err)

	out, err := svc.Embed(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, out)
	assert.NoError(t, svc.Close())
}
