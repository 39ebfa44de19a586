package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthshield-ai/internal/platform/logger"
	"healthshield-ai/internal/rag"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func newTestIndex(t *testing.T, keys []string, roundTrip func(*http.Request) (*http.Response, error)) *VectorIndex {
	t.Helper()
	x, err := NewVectorIndex(logger.Nop(), Config{
		URL:         "http://qdrant.local/",
		APIKey:      "qk",
		Collection:  "policy_chunks",
		VectorDim:   3,
		IndexedKeys: keys,
		HTTPClient:  &http.Client{Transport: roundTripFunc(roundTrip)},
	})
	require.NoError(t, err)
	return x
}

func jsonResponse(t *testing.T, status int, result any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"result": result, "status": "ok", "time": 0.001})
	require.NoError(t, err)
	return &http.Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(bytes.NewReader(raw)),
	}
}

func TestUpsertRequestShape(t *testing.T) {
	var captured map[string]any
	x := newTestIndex(t, nil, func(r *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/collections/policy_chunks/points", r.URL.Path)
		assert.Equal(t, "wait=true", r.URL.RawQuery)
		assert.Equal(t, "qk", r.Header.Get("api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		return jsonResponse(t, http.StatusOK, map[string]any{"status": "acknowledged"}), nil
	})

	meta := map[string]any{rag.MetaOwnerID: "u1", rag.MetaText: "room rent"}
	require.NoError(t, x.Upsert(context.Background(), []rag.VectorRecord{
		{ID: "d1_0", Values: []float32{1, 2, 3}, Metadata: meta},
	}))

	points := captured["points"].([]any)
	require.Len(t, points, 1)
	first := points[0].(map[string]any)
	assert.Equal(t, pointID("d1_0"), first["id"])
	payload := first["payload"].(map[string]any)
	assert.Equal(t, "d1_0", payload[payloadVectorIDKey])
	assert.Equal(t, "u1", payload[rag.MetaOwnerID])
	_, mutated := meta[payloadVectorIDKey]
	assert.False(t, mutated)
}

func TestUpsertRejectsDimensionMismatch(t *testing.T) {
	x := newTestIndex(t, nil, func(r *http.Request) (*http.Response, error) {
		t.Errorf("unexpected request %s", r.URL.Path)
		return nil, errors.New("unexpected")
	})
	err := x.Upsert(context.Background(), []rag.VectorRecord{{ID: "d1_0", Values: []float32{1}}})
	var typed *OperationError
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, OperationErrorValidation, typed.Code)
}

func TestQueryFilterAndMatches(t *testing.T) {
	var captured map[string]any
	x := newTestIndex(t, nil, func(r *http.Request) (*http.Response, error) {
		assert.Equal(t, "/collections/policy_chunks/points/search", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		return jsonResponse(t, http.StatusOK, []map[string]any{
			{"id": pointID("d1_1"), "score": 0.4, "payload": map[string]any{payloadVectorIDKey: "d1_1", rag.MetaOwnerID: "u1"}},
			{"id": pointID("d1_0"), "score": 0.9, "payload": map[string]any{payloadVectorIDKey: "d1_0", rag.MetaOwnerID: "u1", rag.MetaText: "room rent"}},
		}), nil
	})

	got, err := x.Query(context.Background(), []float32{1, 0, 0}, 5, map[string]any{rag.MetaOwnerID: "u1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "d1_0", got[0].ID)
	assert.Equal(t, map[string]any{rag.MetaOwnerID: "u1", rag.MetaText: "room rent"}, got[0].Metadata)

	assert.Equal(t, float64(5), captured["limit"])
	assert.Equal(t, map[string]any{
		"must": []any{map[string]any{"key": "ownerId", "match": map[string]any{"value": "u1"}}},
	}, captured["filter"])
}

func TestQueryHTTPErrorIsTyped(t *testing.T) {
	x := newTestIndex(t, nil, func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusInternalServerError,
			Header:     make(http.Header),
			Body:       io.NopCloser(bytes.NewBufferString(`{"status":{"error":"boom"}}`)),
		}, nil
	})
	_, err := x.Query(context.Background(), []float32{1, 0, 0}, 5, nil)
	var typed *OperationError
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, OperationErrorQueryFailed, typed.Code)
	assert.Equal(t, http.StatusInternalServerError, typed.StatusCode)
}

func TestEnsureCollectionCreatesMissing(t *testing.T) {
	var calls []string
	x := newTestIndex(t, []string{rag.MetaOwnerID}, func(r *http.Request) (*http.Response, error) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodGet {
			return &http.Response{
				StatusCode: http.StatusNotFound,
				Header:     make(http.Header),
				Body:       io.NopCloser(bytes.NewBufferString(`{"status":{"error":"Not found"}}`)),
			}, nil
		}
		return jsonResponse(t, http.StatusOK, true), nil
	})

	require.NoError(t, x.EnsureCollection(context.Background()))
	assert.Equal(t, []string{
		"GET /collections/policy_chunks",
		"PUT /collections/policy_chunks",
		"PUT /collections/policy_chunks/index",
	}, calls)
}

func TestEnsureCollectionSizeMismatch(t *testing.T) {
	x := newTestIndex(t, nil, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(t, http.StatusOK, map[string]any{
			"config": map[string]any{"params": map[string]any{"vectors": map[string]any{"size": 1536}}},
		}), nil
	})
	err := x.EnsureCollection(context.Background())
	assert.ErrorContains(t, err, "vector size mismatch")
}
