package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cattery-breeding/internal/domain/animals"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T, h http.HandlerFunc) *Repo {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	r, err := New(Config{BaseURL: srv.URL, APIKey: "reg-key"})
	require.NoError(t, err)
	return r
}

func TestGetByID_MapsRegistryAnimal(t *testing.T) {
	repo := newRepo(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/animals/f1", r.URL.Path)
		require.Equal(t, "reg-key", r.Header.Get("X-Api-Key"))
		_, _ = w.Write([]byte(`{"id":"f1","name":"Mia","gender":"female","birth_date":"2022-06-01T00:00:00Z","tags":["Y"],"is_in_house":true}`))
	})

	a, err := repo.GetByID(context.Background(), "f1")
	require.NoError(t, err)
	require.Equal(t, animals.GenderFemale, a.Gender)
	require.Equal(t, civil.Date{Year: 2022, Month: time.June, Day: 1}, *a.BirthDate)
	require.True(t, a.HasAnyTag([]string{"Y"}))
}

func TestGetByID_NotFound(t *testing.T) {
	repo := newRepo(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	})

	_, err := repo.GetByID(context.Background(), "x")
	require.ErrorIs(t, err, animals.ErrNotFound)
}

func TestList_SendsFilterAndReapplies(t *testing.T) {
	repo := newRepo(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "f1", r.URL.Query().Get("mother_id"))
		_ = json.NewEncoder(w).Encode([]animalDTO{
			{ID: "k1", Name: "Mia-1", Gender: "MALE", MotherID: "f1"},
			{ID: "k2", Name: "Other", Gender: "MALE", MotherID: "f2"},
		})
	})

	items, err := repo.List(context.Background(), animals.ListFilter{MotherID: "f1"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "k1", items[0].ID)
}

func TestCreate_PostsAnimal(t *testing.T) {
	var got animalDTO
	repo := newRepo(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	})

	bd := civil.Date{Year: 2025, Month: time.March, Day: 7}
	require.NoError(t, repo.Create(context.Background(), animals.Animal{ID: "k1", Name: "Mia-1", Gender: animals.GenderMale, BirthDate: &bd, MotherID: "f1"}))
	require.Equal(t, "2025-03-07", got.BirthDate)
	require.Equal(t, "f1", got.MotherID)
}

func TestUpstreamError(t *testing.T) {
	repo := newRepo(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := repo.List(context.Background(), animals.ListFilter{})
	require.ErrorIs(t, err, ErrUpstream)
}
