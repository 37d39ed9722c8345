package router_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cattery-breeding/internal/router"

	"github.com/stretchr/testify/require"
)

const (
	operatorID = "operator-1"
	deviceID   = "tablet-1"
)

func TestHTTP_EndToEnd_MatingToDisposition(t *testing.T) {
	ts := httptest.NewServer(router.NewRouter(router.Options{AuthVerifier: nil}))
	defer ts.Close()

	today := time.Now().UTC()
	adult := today.AddDate(-2, 0, 0).Format("2006-01-02")

	// 1) Alta de macho y hembra adultos
	maleID := createAnimal(t, ts.URL, map[string]any{
		"name": "Leo", "gender": "MALE", "birth_date": adult, "is_in_house": true,
	})
	femaleID := createAnimal(t, ts.URL, map[string]any{
		"name": "Mia", "gender": "FEMALE", "birth_date": adult, "is_in_house": true,
	})

	// 2) Macho al roster del dispositivo
	{
		st, body := doReq(t, ts.URL, "POST", "/calendar/roster", map[string]any{"male_id": maleID})
		require.Equal(t, http.StatusCreated, st, string(body))
	}

	// 3) Ventana de 2 días a partir de mañana
	start := today.AddDate(0, 0, 1)
	lastDay := start.AddDate(0, 0, 1).Format("2006-01-02")
	{
		st, body := doReq(t, ts.URL, "POST", "/calendar/windows", map[string]any{
			"male_id": maleID, "female_id": femaleID, "start": start.Format("2006-01-02"), "duration": 2,
		})
		require.Equal(t, http.StatusCreated, st, string(body))
	}

	// 4) El resultado solo se registra en el último día
	{
		st, _ := doReq(t, ts.URL, "POST", "/lifecycle/outcomes", map[string]any{
			"male_id": maleID, "date": start.Format("2006-01-02"), "outcome": "success",
		})
		require.Equal(t, http.StatusConflict, st)
	}
	var checkID string
	{
		st, body := doReq(t, ts.URL, "POST", "/lifecycle/outcomes", map[string]any{
			"male_id": maleID, "date": lastDay, "outcome": "success",
		})
		require.Equal(t, http.StatusOK, st, string(body))

		var out struct {
			Window struct {
				Entries []struct {
					IsHistory bool   `json:"is_history"`
					Result    string `json:"result"`
				} `json:"entries"`
			} `json:"window"`
			Check struct {
				ID        string `json:"id"`
				CheckDate string `json:"check_date"`
				Status    string `json:"status"`
			} `json:"pregnancy_check"`
		}
		require.NoError(t, json.Unmarshal(body, &out))
		require.Len(t, out.Window.Entries, 2)
		for _, e := range out.Window.Entries {
			require.True(t, e.IsHistory)
			require.Equal(t, "success", e.Result)
		}
		require.Equal(t, start.AddDate(0, 0, 21).Format("2006-01-02"), out.Check.CheckDate)
		require.Equal(t, "SUSPECTED", out.Check.Status)
		checkID = out.Check.ID
	}

	// 5) Chequeo pendiente listado
	{
		st, body := doReq(t, ts.URL, "GET", "/pregnancy-checks", nil)
		require.Equal(t, http.StatusOK, st, string(body))
		require.Contains(t, string(body), checkID)
	}

	// 6) Confirmar crea el plan de parto y retira el chequeo
	var planID string
	{
		st, body := doReq(t, ts.URL, "POST", "/pregnancy-checks/"+checkID+"/confirm", map[string]any{"expected_kittens": 4})
		require.Equal(t, http.StatusCreated, st, string(body))

		var out struct {
			Plan struct {
				ID                string `json:"id"`
				ExpectedBirthDate string `json:"expected_birth_date"`
			} `json:"birth_plan"`
		}
		require.NoError(t, json.Unmarshal(body, &out))
		require.Equal(t, start.AddDate(0, 0, 21+45).Format("2006-01-02"), out.Plan.ExpectedBirthDate)
		planID = out.Plan.ID

		st, body = doReq(t, ts.URL, "GET", "/pregnancy-checks", nil)
		require.Equal(t, http.StatusOK, st)
		require.NotContains(t, string(body), checkID)
	}

	// 7) Parto: 4 nacidos, 1 fallecido
	var kittenID string
	{
		st, body := doReq(t, ts.URL, "POST", "/birth-plans/"+planID+"/birth", map[string]any{
			"birth_date": today.Format("2006-01-02"), "birth_count": 4, "death_count": 1,
		})
		require.Equal(t, http.StatusOK, st, string(body))

		var out struct {
			LiveCount int `json:"live_count"`
			Kittens   []struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"kittens"`
			Gaps []string `json:"not_evaluated"`
		}
		require.NoError(t, json.Unmarshal(body, &out))
		require.Equal(t, 3, out.LiveCount)
		require.Len(t, out.Kittens, 3)
		require.True(t, strings.HasPrefix(out.Kittens[0].Name, "Mia-"))
		require.Contains(t, out.Gaps, "kitten_sex")
		kittenID = out.Kittens[0].ID
	}

	// 8) Gatitos en crianza agrupados por madre
	{
		st, body := doReq(t, ts.URL, "GET", "/kittens/raising", nil)
		require.Equal(t, http.StatusOK, st, string(body))
		require.Contains(t, string(body), kittenID)
	}

	// 9) Destino del gatito; un segundo destino es conflicto
	{
		st, body := doReq(t, ts.URL, "POST", "/kittens/"+kittenID+"/disposition", map[string]any{
			"disposition": "TRAINING",
		})
		require.Equal(t, http.StatusCreated, st, string(body))

		st, _ = doReq(t, ts.URL, "POST", "/kittens/"+kittenID+"/disposition", map[string]any{
			"disposition": "DECEASED",
		})
		require.Equal(t, http.StatusConflict, st)
	}

	// 10) Destinos del plan
	{
		st, body := doReq(t, ts.URL, "GET", "/birth-plans/"+planID+"/dispositions", nil)
		require.Equal(t, http.StatusOK, st, string(body))
		require.Contains(t, string(body), "TRAINING")
	}
}

func TestHTTP_NGRuleBlocksWindowUnlessOverridden(t *testing.T) {
	ts := httptest.NewServer(router.NewRouter(router.Options{}))
	defer ts.Close()

	adult := time.Now().UTC().AddDate(-2, 0, 0).Format("2006-01-02")
	maleID := createAnimal(t, ts.URL, map[string]any{
		"name": "Rex", "gender": "MALE", "birth_date": adult, "is_in_house": true, "tags": []string{"X"},
	})
	femaleID := createAnimal(t, ts.URL, map[string]any{
		"name": "Luna", "gender": "FEMALE", "birth_date": adult, "is_in_house": true, "tags": []string{"Y"},
	})

	st, body := doReq(t, ts.URL, "POST", "/ng-rules", map[string]any{
		"name": "X con Y", "type": "TAG_COMBINATION",
		"male_conditions": []string{"X"}, "female_conditions": []string{"Y"},
	})
	require.Equal(t, http.StatusCreated, st, string(body))

	st, body = doReq(t, ts.URL, "POST", "/calendar/roster", map[string]any{"male_id": maleID})
	require.Equal(t, http.StatusCreated, st, string(body))

	window := map[string]any{
		"male_id": maleID, "female_id": femaleID,
		"start": time.Now().UTC().AddDate(0, 0, 3).Format("2006-01-02"),
	}

	st, body = doReq(t, ts.URL, "POST", "/calendar/windows", window)
	require.Equal(t, http.StatusConflict, st, string(body))
	require.Contains(t, string(body), `"kind":"ng_rule"`)

	window["override"] = true
	st, body = doReq(t, ts.URL, "POST", "/calendar/windows", window)
	require.Equal(t, http.StatusCreated, st, string(body))
}

func TestHTTP_RequiresOperator(t *testing.T) {
	ts := httptest.NewServer(router.NewRouter(router.Options{}))
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/calendar", nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestHTTP_PublicEndpoints(t *testing.T) {
	ts := httptest.NewServer(router.NewRouter(router.Options{}))
	defer ts.Close()

	for _, path := range []string{"/health", "/metrics"} {
		res, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		_ = res.Body.Close()
		require.Equal(t, http.StatusOK, res.StatusCode, path)
	}
}

func TestHTTP_CalendarIsScopedByDevice(t *testing.T) {
	ts := httptest.NewServer(router.NewRouter(router.Options{}))
	defer ts.Close()

	adult := time.Now().UTC().AddDate(-2, 0, 0).Format("2006-01-02")
	maleID := createAnimal(t, ts.URL, map[string]any{
		"name": "Tom", "gender": "MALE", "birth_date": adult, "is_in_house": true,
	})
	st, body := doReq(t, ts.URL, "POST", "/calendar/roster", map[string]any{"male_id": maleID})
	require.Equal(t, http.StatusCreated, st, string(body))

	// Otro dispositivo del mismo operador no ve el roster
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/calendar/roster", nil)
	require.NoError(t, err)
	req.Header.Set("X-Debug-User-ID", operatorID)
	req.Header.Set("X-Device-ID", "phone-2")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	other, _ := io.ReadAll(res.Body)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NotContains(t, string(other), maleID)
}

// -------------------------
// helpers
// -------------------------

func createAnimal(t *testing.T, baseURL string, payload map[string]any) string {
	t.Helper()
	st, body := doReq(t, baseURL, "POST", "/animals", payload)
	require.Equal(t, http.StatusCreated, st, string(body))

	var out struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.NotEmpty(t, out.ID)
	return out.ID
}

func doReq(t *testing.T, baseURL, method, path string, payload any) (int, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, baseURL+path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Debug-User-ID", operatorID)
	req.Header.Set("X-Device-ID", deviceID)

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	b, _ := io.ReadAll(res.Body)
	return res.StatusCode, b
}
