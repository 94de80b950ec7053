package external

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"floodcast/internal/types"
)

func newInferenceServer(t *testing.T, state string, predictions string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/models/{name}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("name") != "DHOMPO_GRU" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"Servable not found"}`))
			return
		}
		w.Write([]byte(`{"model_version_status":[{"version":"1","state":"` + state + `"}]}`))
	})
	mux.HandleFunc("POST /v1/models/{action}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("action") != "DHOMPO_GRU:predict" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var req predictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if len(req.Instances) != 1 || len(req.Instances[0]) != 2 || len(req.Instances[0][0]) != 4 {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"bad shape"}`))
			return
		}
		w.Write([]byte(`{"predictions":` + predictions + `}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestInference(t *testing.T, baseURL string) *InferenceClient {
	t.Helper()
	return NewInferenceClientWithBase(newTestClient(t, fastPolicy(0)), InferenceClientConfig{BaseURL: baseURL + "/"})
}

var testWindow = [][]float64{{1, 2, 3, 4}, {2, 3, 4, 5}}

func TestInference_LoadAndPredict(t *testing.T) {
	tests := []struct {
		name        string
		predictions string
		want        []float64
	}{
		{"row per instance", `[[0.1, 0.2, 0.3, 0.4, 0.5]]`, []float64{0.1, 0.2, 0.3, 0.4, 0.5}},
		{"column per instance", `[[[0.1], [0.2], [0.3]]]`, []float64{0.1, 0.2, 0.3}},
		{"squeezed batch", `[0.7, 0.8]`, []float64{0.7, 0.8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newInferenceServer(t, "AVAILABLE", tt.predictions)
			client := newTestInference(t, srv.URL)

			model, err := client.LoadModel(context.Background(), "DHOMPO_GRU")
			require.NoError(t, err)

			got, err := model.Predict(context.Background(), testWindow)
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.want, got, 1e-12)
		})
	}
}

func TestInference_LoadModelNotAvailable(t *testing.T) {
	srv := newInferenceServer(t, "LOADING", `[]`)
	client := newTestInference(t, srv.URL)

	_, err := client.LoadModel(context.Background(), "DHOMPO_GRU")
	assert.True(t, types.IsCode(err, types.ErrCodeModelLoadFailed), "got %v", err)
}

func TestInference_LoadModelUnknown(t *testing.T) {
	srv := newInferenceServer(t, "AVAILABLE", `[]`)
	client := newTestInference(t, srv.URL)

	_, err := client.LoadModel(context.Background(), "MISSING")
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeModelLoadFailed), "got %v", err)
}

func TestInference_PredictErrors(t *testing.T) {
	t.Run("bad request surfaces as inference failure", func(t *testing.T) {
		srv := newInferenceServer(t, "AVAILABLE", `[[1]]`)
		client := newTestInference(t, srv.URL)
		model, err := client.LoadModel(context.Background(), "DHOMPO_GRU")
		require.NoError(t, err)

		_, err = model.Predict(context.Background(), [][]float64{{1, 2, 3}})
		assert.True(t, types.IsCode(err, types.ErrCodeUpstreamInference), "got %v", err)
	})

	t.Run("empty predictions", func(t *testing.T) {
		srv := newInferenceServer(t, "AVAILABLE", `[]`)
		client := newTestInference(t, srv.URL)
		model, err := client.LoadModel(context.Background(), "DHOMPO_GRU")
		require.NoError(t, err)

		_, err = model.Predict(context.Background(), testWindow)
		assert.True(t, types.IsCode(err, types.ErrCodeUpstreamInference), "got %v", err)
	})

	t.Run("non numeric predictions", func(t *testing.T) {
		srv := newInferenceServer(t, "AVAILABLE", `[["a"]]`)
		client := newTestInference(t, srv.URL)
		model, err := client.LoadModel(context.Background(), "DHOMPO_GRU")
		require.NoError(t, err)

		_, err = model.Predict(context.Background(), testWindow)
		assert.True(t, types.IsCode(err, types.ErrCodeUpstreamInference), "got %v", err)
	})
}
