package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/boq-ai/internal/pricing"
	"github.com/cuongbtq/boq-ai/internal/workbook"
)

const testCatalog = `{
  "item_to_material_map": {"Concrete": "concrete", "Rebar": "steel"},
  "materials": {
    "concrete": [{"vendor": "Acme", "price": 100, "unit": "m3"}, {"vendor": "BuildCo", "price": 95, "unit": "m3"}],
    "steel": [{"vendor": "Acme", "price": 2.5, "unit": "kg"}]
  }
}`

// takeoffService answers like the processing service: one job that is queued
// on the first poll and finished afterwards.
func takeoffService(t *testing.T) *httptest.Server {
	t.Helper()
	var polls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/boq", func(w http.ResponseWriter, r *http.Request) {
		_, _, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		io.WriteString(w, `{"job_id":"srv-1"}`)
	})
	mux.HandleFunc("GET /status/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "srv-1" {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"error":"Job not found"}`)
			return
		}
		if polls.Add(1) == 1 {
			io.WriteString(w, `{"job_id":"srv-1","status":"queued"}`)
			return
		}
		io.WriteString(w, `{"job_id":"srv-1","status":"finished","result":{"file":"plan.dwg","items":[
			{"description":"Concrete","quantity":2,"unit":"m3"},
			{"description":"Rebar","quantity":40,"unit":"kg"}]}}`)
	})
	mux.HandleFunc("POST /api/generate_excel", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			BoqItems []workbook.Row `json:"boqItems"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		data, err := workbook.Build(req.BoqItems)
		require.NoError(t, err)
		w.Header().Set("Content-Type", workbook.ContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="boq_with_costing.xlsx"`)
		w.Write(data)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type cliEnv struct {
	dir        string
	configPath string
	drawing    string
}

func newCLIEnv(t *testing.T, baseURL string) cliEnv {
	t.Helper()
	dir := t.TempDir()

	catalogPath := filepath.Join(dir, "catalog.json")
	require.NoError(t, os.WriteFile(catalogPath, []byte(testCatalog), 0o644))

	drawing := filepath.Join(dir, "plan.dwg")
	require.NoError(t, os.WriteFile(drawing, []byte("AC1032 drawing"), 0o644))

	config := strings.Join([]string{
		"logging:",
		"  level: error",
		"  format: json",
		"client:",
		"  base_url: " + baseURL,
		"  poll_interval: 10ms",
		"  catalog: " + catalogPath,
		"  export_dir: " + filepath.Join(dir, "exports"),
		"  history_path: " + filepath.Join(dir, "history.db"),
	}, "\n")
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0o644))

	return cliEnv{dir: dir, configPath: configPath, drawing: drawing}
}

func (e cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestSubmit_PricesExportsAndRecordsHistory(t *testing.T) {
	srv := takeoffService(t)
	env := newCLIEnv(t, srv.URL)

	pricesPath := filepath.Join(env.dir, "prices.yaml")
	require.NoError(t, os.WriteFile(pricesPath, []byte("1: 3\n"), 0o644))

	out, err := env.run(t, "submit", env.drawing, "--vendor", "0=BuildCo", "--prices", pricesPath, "--export")
	require.NoError(t, err)

	assert.Contains(t, out, "plan.dwg (job srv-1")
	assert.Contains(t, out, "BuildCo 95.00")
	// 2 * 95 + 40 * 3
	assert.Contains(t, out, "310.00")

	exported := filepath.Join(env.dir, "exports", "boq_with_costing.xlsx")
	assert.Contains(t, out, "Saved "+exported)
	f, err := os.Open(exported)
	require.NoError(t, err)
	defer f.Close()
	sheet, err := workbook.Read(f)
	require.NoError(t, err)
	assert.InDelta(t, 310.0, sheet.Total, 1e-9)

	key := regexp.MustCompile(`key ([0-9a-f-]{36})\)`).FindStringSubmatch(out)
	require.Len(t, key, 2)

	trail, err := env.run(t, "history", key[1])
	require.NoError(t, err)
	for _, status := range []string{"uploading", "queued", "finished"} {
		assert.Contains(t, trail, status)
	}
}

func TestSubmit_RejectsUnsupportedFile(t *testing.T) {
	srv := takeoffService(t)
	env := newCLIEnv(t, srv.URL)

	pdf := filepath.Join(env.dir, "plan.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF"), 0o644))

	_, err := env.run(t, "submit", pdf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plan.pdf")
}

func TestPrice_RemoteJob(t *testing.T) {
	srv := takeoffService(t)
	env := newCLIEnv(t, srv.URL)

	_, err := env.run(t, "price", "srv-1")
	require.Error(t, err, "first poll still reports queued")
	assert.Contains(t, err.Error(), "not finished")

	out, err := env.run(t, "price", "srv-1", "--vendor", "0=Acme", "--vendor", "1=Acme")
	require.NoError(t, err)
	// 2 * 100 + 40 * 2.5
	assert.Contains(t, out, "300.00")

	_, err = env.run(t, "price", "missing")
	assert.Error(t, err)
}

func TestCatalogCommand(t *testing.T) {
	env := newCLIEnv(t, "http://localhost:1")

	out, err := env.run(t, "catalog", "Concrete")
	require.NoError(t, err)
	assert.Contains(t, out, "Acme")
	assert.Contains(t, out, "BuildCo")

	_, err = env.run(t, "catalog", "Timber")
	assert.Error(t, err)
}

func TestLoadPriceInput(t *testing.T) {
	tests := []struct {
		name    string
		vendors []string
		wantErr string
	}{
		{name: "valid", vendors: []string{"0=Acme", " 2 = BuildCo "}},
		{name: "missing separator", vendors: []string{"0Acme"}, wantErr: "want index=vendor"},
		{name: "empty vendor", vendors: []string{"0="}, wantErr: "want index=vendor"},
		{name: "negative index", vendors: []string{"-1=Acme"}, wantErr: "non-negative integer"},
		{name: "text index", vendors: []string{"first=Acme"}, wantErr: "non-negative integer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := loadPriceInput("", tt.vendors)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, map[int]string{0: "Acme", 2: "BuildCo"}, in.vendors)
		})
	}
}

func TestPriceInput_SelectionsFor(t *testing.T) {
	offers := func(int) []pricing.VendorOffer {
		return []pricing.VendorOffer{{Vendor: "Acme", Price: 12}}
	}

	t.Run("vendor overrides manual price", func(t *testing.T) {
		in := priceInput{manual: map[int]float64{0: 5, 1: 7}, vendors: map[int]string{0: "Acme"}}
		sel, err := in.selectionsFor(2, offers)
		require.NoError(t, err)
		assert.Equal(t, pricing.Selections{0: 12, 1: 7}, sel)
	})

	t.Run("line out of range", func(t *testing.T) {
		in := priceInput{manual: map[int]float64{3: 5}}
		_, err := in.selectionsFor(2, offers)
		assert.Error(t, err)
	})

	t.Run("negative manual price", func(t *testing.T) {
		in := priceInput{manual: map[int]float64{0: -1}}
		_, err := in.selectionsFor(1, offers)
		assert.ErrorIs(t, err, pricing.ErrNegativePrice)
	})

	t.Run("unknown vendor", func(t *testing.T) {
		in := priceInput{vendors: map[int]string{0: "Nobody"}}
		_, err := in.selectionsFor(1, offers)
		assert.ErrorIs(t, err, pricing.ErrUnknownVendor)
	})
}
