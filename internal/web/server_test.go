package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bsipocz/gammapy/internal/catalog"
	"github.com/bsipocz/gammapy/internal/config"
	"github.com/bsipocz/gammapy/internal/fits"
	"github.com/bsipocz/gammapy/internal/irf"
	"github.com/bsipocz/gammapy/internal/logging"
	"github.com/bsipocz/gammapy/internal/units"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{RequestTimeout: 10 * time.Second},
		Upload:   config.UploadConfig{MaxFileSize: 1 << 20},
		Security: config.SecurityConfig{EnableCSP: true},
		ARF: config.ARFConfig{
			Telescope:   "DUMMY",
			Instrument:  "DUMMY",
			Filter:      "NONE",
			ThresholdLo: 0.1,
			ThresholdHi: 100,
			EnergyMin:   0.1,
			EnergyMax:   100,
			Bins:        12,
			MaxBins:     100,
		},
		Plot: config.PlotConfig{Width: 400, Height: 300, MaxWidth: 1000, MaxHeight: 1000},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *catalog.Memory) {
	t.Helper()
	cat := catalog.NewMemory()
	s := NewServer(cat, cfg, logging.Discard())
	t.Cleanup(func() { s.Shutdown(t.Context()) })
	return s, cat
}

func do(t *testing.T, s *Server, method, target string, body io.Reader, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func assertErrorCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	resp := decodeJSON[ErrorResponse](t, rec)
	if resp.Code != code {
		t.Errorf("code = %q, want %q", resp.Code, code)
	}
}

// parametrize stores a 12-bin HESS table and returns its entry.
func parametrize(t *testing.T, s *Server) catalog.Entry {
	t.Helper()
	body := `{"name":"hess-test","instrument":"HESS","emin":"0.1 TeV","emax":"100 TeV","bins":12,"thresh_lo":"0.3 TeV","thresh_hi":"50 TeV","telescope":"HESS"}`
	rec := do(t, s, http.MethodPost, "/api/arf/parametrize", strings.NewReader(body),
		map[string]string{"Content-Type": "application/json"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("parametrize status = %d, body %s", rec.Code, rec.Body.String())
	}
	return decodeJSON[catalog.Entry](t, rec)
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	rec := do(t, s, http.MethodGet, "/healthz", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("security headers missing, X-Content-Type-Options = %q", got)
	}
	got := decodeJSON[HealthResponse](t, rec)
	if got.Status != "ok" || got.Uploads.MaxConcurrent != defaultMaxConcurrent || got.Uploads.Active != 0 {
		t.Errorf("health = %+v", got)
	}
}

func TestInstruments(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	rec := do(t, s, http.MethodGet, "/api/instruments", nil, nil)
	got := decodeJSON[[]string](t, rec)
	if len(got) != 3 {
		t.Fatalf("instruments = %v, want 3", got)
	}
}

func TestParametrization(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := do(t, s, http.MethodGet, "/api/parametrization?instrument=HESS&energy=1%20TeV", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	got := decodeJSON[AreaResponse](t, rec)
	if want := 1213230530.231214; math.Abs(got.AreaCM2-want)/want > 1e-9 {
		t.Errorf("effective_area_cm2 = %v, want %v", got.AreaCM2, want)
	}
	if math.Abs(got.AreaM2-got.AreaCM2/1e4) > 1e-6 {
		t.Errorf("effective_area_m2 = %v, inconsistent with cm2 %v", got.AreaM2, got.AreaCM2)
	}
}

func TestParametrization_Errors(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	tests := []struct {
		name   string
		query  string
		status int
		code   string
	}{
		{"missing instrument", "energy=1%20TeV", http.StatusBadRequest, "REQ002"},
		{"missing energy", "instrument=HESS", http.StatusBadRequest, "REQ002"},
		{"bare number", "instrument=HESS&energy=1", http.StatusBadRequest, "ARF001"},
		{"area as energy", "instrument=HESS&energy=1%20m2", http.StatusBadRequest, "ARF001"},
		{"unknown instrument", "instrument=MAGIC&energy=1%20TeV", http.StatusBadRequest, "ARF002"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodGet, "/api/parametrization?"+tt.query, nil, nil)
			assertErrorCode(t, rec, tt.status, tt.code)
		})
	}
}

func TestParametrize_Validation(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"malformed json", `{`, http.StatusBadRequest, "REQ002"},
		{"missing name", `{"instrument":"HESS"}`, http.StatusBadRequest, "REQ002"},
		{"unknown instrument", `{"name":"x","instrument":"VERITAS"}`, http.StatusBadRequest, "ARF002"},
		{"bare threshold", `{"name":"x","instrument":"HESS","thresh_lo":"0.3"}`, http.StatusBadRequest, "ARF001"},
		{"inverted range", `{"name":"x","instrument":"HESS","emin":"10 TeV","emax":"1 TeV"}`, http.StatusBadRequest, "REQ002"},
		{"inverted thresholds", `{"name":"x","instrument":"HESS","thresh_lo":"50 TeV","thresh_hi":"1 TeV"}`, http.StatusBadRequest, "REQ002"},
		{"too many bins", `{"name":"x","instrument":"HESS","bins":1000000000}`, http.StatusBadRequest, "REQ002"},
		{"non-ASCII telescope", `{"name":"x","instrument":"HESS","telescope":"ČČČČ"}`, http.StatusBadRequest, "ARF006"},
		{"non-ASCII filter", `{"name":"x","instrument":"HESS","filter":"filtré"}`, http.StatusBadRequest, "ARF006"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/api/arf/parametrize", strings.NewReader(tt.body), nil)
			assertErrorCode(t, rec, tt.status, tt.code)
		})
	}
}

func TestTableLifecycle(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	entry := parametrize(t, s)

	if entry.Bins != 12 || entry.Instrument != "HESS" || entry.Telescope != "HESS" || entry.Filter != "NONE" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.ThresholdLo != 0.3 || entry.ThresholdHi != 50 {
		t.Errorf("thresholds = %v, %v, want 0.3, 50", entry.ThresholdLo, entry.ThresholdHi)
	}
	base := "/api/arf/" + entry.ID.String()

	t.Run("list", func(t *testing.T) {
		got := decodeJSON[[]catalog.Entry](t, do(t, s, http.MethodGet, "/api/arf", nil, nil))
		if len(got) != 1 || got[0].ID != entry.ID {
			t.Errorf("list = %+v", got)
		}
	})

	t.Run("get", func(t *testing.T) {
		got := decodeJSON[TableResponse](t, do(t, s, http.MethodGet, base, nil, nil))
		if len(got.EnergyLo) != 12 || len(got.EnergyHi) != 12 || len(got.EffectiveArea) != 12 {
			t.Fatalf("bins = %d/%d/%d", len(got.EnergyLo), len(got.EnergyHi), len(got.EffectiveArea))
		}
		if math.Abs(got.EnergyHi[11]-100) > 1e-4 {
			t.Errorf("last energy_hi = %v, want 100", got.EnergyHi[11])
		}
	})

	t.Run("lookup", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, base+"/lookup?energy=1000%20GeV", nil, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		got := decodeJSON[AreaResponse](t, rec)

		// The bin ending at 1 TeV is centred on 10^-0.125 TeV.
		want, err := irf.AbramowskiEffectiveArea(units.NewEnergy(math.Pow(10, -0.125), units.TeV), irf.HESS)
		if err != nil {
			t.Fatal(err)
		}
		if w := want.In(units.SquareMeter); math.Abs(got.AreaM2-w)/w > 1e-6 {
			t.Errorf("effective_area_m2 = %v, want %v", got.AreaM2, w)
		}
	})

	t.Run("info", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, base+"/info?energy=2%20TeV", nil, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		body := rec.Body.String()
		for _, want := range []string{"Summary ARF info", "Safe energy threshold lo:  0.300 TeV", "Effective area at E =  2.0"} {
			if !strings.Contains(body, want) {
				t.Errorf("info missing %q:\n%s", want, body)
			}
		}
	})

	t.Run("fits", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, base+"/fits", nil, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "hess-test.fits") {
			t.Errorf("Content-Disposition = %q", got)
		}
		l, err := fits.Decode(rec.Body)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		table, err := irf.FromFITS(l)
		if err != nil {
			t.Fatalf("FromFITS() error = %v", err)
		}
		if table.Len() != 12 {
			t.Errorf("Len() = %d, want 12", table.Len())
		}
	})

	t.Run("plot", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, base+"/plot.png?width=200", nil, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		img, err := png.Decode(rec.Body)
		if err != nil {
			t.Fatalf("png.Decode() error = %v", err)
		}
		if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 300 {
			t.Errorf("plot size = %dx%d, want 200x300", b.Dx(), b.Dy())
		}
	})

	t.Run("plot too large", func(t *testing.T) {
		for _, q := range []string{"?width=100000&height=100000", "?width=1001", "?height=1001"} {
			rec := do(t, s, http.MethodGet, base+"/plot.png"+q, nil, nil)
			assertErrorCode(t, rec, http.StatusBadRequest, "REQ002")
		}
	})

	t.Run("pages", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/", nil, nil)
		if !strings.Contains(rec.Body.String(), "/arf/"+entry.ID.String()) {
			t.Errorf("index page does not link the table:\n%s", rec.Body.String())
		}
		rec = do(t, s, http.MethodGet, "/arf/"+entry.ID.String(), nil, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("table page status = %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "plot.png") {
			t.Errorf("table page missing plot:\n%s", rec.Body.String())
		}
	})

	t.Run("delete", func(t *testing.T) {
		if rec := do(t, s, http.MethodDelete, base, nil, nil); rec.Code != http.StatusNoContent {
			t.Fatalf("delete status = %d", rec.Code)
		}
		assertErrorCode(t, do(t, s, http.MethodGet, base, nil, nil), http.StatusNotFound, "ARF004")
		assertErrorCode(t, do(t, s, http.MethodDelete, base, nil, nil), http.StatusNotFound, "ARF004")
	})
}

func TestTableRoutes_BadID(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	assertErrorCode(t, do(t, s, http.MethodGet, "/api/arf/not-a-uuid", nil, nil), http.StatusBadRequest, "REQ001")
	assertErrorCode(t, do(t, s, http.MethodGet, "/api/arf/"+uuid.NewString()+"/info", nil, nil), http.StatusNotFound, "ARF004")

	// Pages answer in plain text.
	rec := do(t, s, http.MethodGet, "/arf/"+uuid.NewString(), nil, nil)
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "ARF004") {
		t.Errorf("page status = %d, body %q", rec.Code, rec.Body.String())
	}
}

// arfUpload builds a multipart body holding an ARF file.
func arfUpload(t *testing.T, data []byte, name string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if name != "" {
		mw.WriteField("name", name)
	}
	if data != nil {
		fw, err := mw.CreateFormFile("file", "run1.fits")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(data)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func sampleARFBytes(t *testing.T) []byte {
	t.Helper()
	edges, err := irf.LogEnergyEdges(units.NewEnergy(0.1, units.TeV), units.NewEnergy(100, units.TeV), 6)
	if err != nil {
		t.Fatal(err)
	}
	table, err := irf.NewTableFromParametrization(irf.CTA, edges)
	if err != nil {
		t.Fatal(err)
	}
	l, err := table.ToFITS(irf.ARFMeta{Telescope: "CTA", Instrument: "South", Filter: "NONE"})
	if err != nil {
		t.Fatal(err)
	}
	data, err := l.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// withIntCard replaces the first card for key with an integer value.
func withIntCard(t *testing.T, data []byte, key string, v int64) []byte {
	t.Helper()
	i := bytes.Index(data, []byte(fmt.Sprintf("%-8s=", key)))
	if i < 0 || i%80 != 0 {
		t.Fatalf("no %s card", key)
	}
	out := bytes.Clone(data)
	copy(out[i:i+80], fmt.Sprintf("%-8s= %20d%50s", key, v, ""))
	return out
}

func TestUpload(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	body, ct := arfUpload(t, sampleARFBytes(t), "")
	rec := do(t, s, http.MethodPost, "/api/arf", body, map[string]string{"Content-Type": ct})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	entry := decodeJSON[catalog.Entry](t, rec)
	if entry.Name != "run1.fits" || entry.Telescope != "CTA" || entry.Instrument != "South" || entry.Bins != 6 {
		t.Errorf("entry = %+v", entry)
	}

	body, ct = arfUpload(t, sampleARFBytes(t), "south")
	rec = do(t, s, http.MethodPost, "/api/arf", body, map[string]string{"Content-Type": ct})
	if got := decodeJSON[catalog.Entry](t, rec); got.Name != "south" {
		t.Errorf("Name = %q, want south", got.Name)
	}
}

func TestUpload_Errors(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.MaxFileSize = 8 * 2880
	s, _ := newTestServer(t, cfg)

	noThresholds := func() []byte {
		tbl, err := fits.NewBinTable([]fits.Column{
			{Name: "ENERG_LO", Format: "1E", Unit: "TeV", Data: []float64{1}},
			{Name: "ENERG_HI", Format: "1E", Unit: "TeV", Data: []float64{2}},
			{Name: "SPECRESP", Format: "1E", Unit: "m^2", Data: []float64{100}},
		})
		if err != nil {
			t.Fatal(err)
		}
		tbl.Header().Set("EXTNAME", "SPECRESP", "")
		data, err := fits.NewHDUList(tbl).Bytes()
		if err != nil {
			t.Fatal(err)
		}
		return data
	}

	tests := []struct {
		name   string
		data   []byte
		status int
		code   string
	}{
		{"no file", nil, http.StatusBadRequest, "FILE004"},
		{"not fits", []byte("name,value\nfoo,1\n"), http.StatusUnprocessableEntity, "ARF005"},
		{"missing thresholds", noThresholds(), http.StatusUnprocessableEntity, "ARF003"},
		{"negative row count", withIntCard(t, sampleARFBytes(t), "NAXIS2", -1), http.StatusUnprocessableEntity, "ARF005"},
		{"row count beyond the file", withIntCard(t, sampleARFBytes(t), "NAXIS2", 1<<40), http.StatusUnprocessableEntity, "ARF005"},
		{"too large", bytes.Repeat([]byte{' '}, 10*2880), http.StatusRequestEntityTooLarge, "FILE001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := arfUpload(t, tt.data, "")
			rec := do(t, s, http.MethodPost, "/api/arf", body, map[string]string{"Content-Type": ct})
			assertErrorCode(t, rec, tt.status, tt.code)
		})
	}
}

func TestMutations_RequireAPIKey(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret"}
	s, _ := newTestServer(t, cfg)

	body := `{"name":"keyed","instrument":"CTA"}`
	rec := do(t, s, http.MethodPost, "/api/arf/parametrize", strings.NewReader(body), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("without key: status = %d, want 401", rec.Code)
	}

	rec = do(t, s, http.MethodPost, "/api/arf/parametrize", strings.NewReader(body), map[string]string{"X-API-Key": "secret"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("with key: status = %d, body %s", rec.Code, rec.Body.String())
	}

	// Reads stay open.
	if rec := do(t, s, http.MethodGet, "/api/arf", nil, nil); rec.Code != http.StatusOK {
		t.Errorf("list status = %d, want 200", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2}
	s, _ := newTestServer(t, cfg)

	for i, want := range []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests} {
		if rec := do(t, s, http.MethodGet, "/healthz", nil, nil); rec.Code != want {
			t.Errorf("request %d: status = %d, want %d", i, rec.Code, want)
		}
	}
}
