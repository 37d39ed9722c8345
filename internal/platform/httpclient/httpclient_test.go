package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDoJSON_SendsHeadersAndDecodes(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/animals", r.URL.Path)
		require.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["name"]})
	}))
	t.Cleanup(ts.Close)

	c, err := New(ts.URL+"/", 0)
	require.NoError(t, err)
	c.WithHeader("X-Api-Key", "secret")

	var out map[string]string
	err = c.DoJSON(context.Background(), http.MethodPost, "v1/animals", nil, map[string]string{"name": "Mia"}, &out)
	require.NoError(t, err)
	require.Equal(t, "Mia", out["echo"])
}

func TestDoJSON_Non2xx(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "animal not found", http.StatusNotFound)
	}))
	t.Cleanup(ts.Close)

	c, err := New(ts.URL, 0)
	require.NoError(t, err)

	err = c.DoJSON(context.Background(), http.MethodGet, "/v1/animals/x", nil, nil, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusNotFound, StatusOf(err))
	require.Contains(t, err.Error(), "animal not found")
}

func TestNew_RejectsBadBaseURL(t *testing.T) {
	_, err := New("::nope", 0)
	require.Error(t, err)

	c, err := New("", 0)
	require.NoError(t, err)
	err = c.DoJSON(context.Background(), http.MethodGet, "relative", nil, nil, nil)
	require.Error(t, err)
}
