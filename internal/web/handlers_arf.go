package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bsipocz/gammapy/internal/catalog"
	"github.com/bsipocz/gammapy/internal/fits"
	"github.com/bsipocz/gammapy/internal/irf"
	"github.com/bsipocz/gammapy/internal/logging"
	"github.com/bsipocz/gammapy/internal/units"
)

// ParametrizeRequest is the body of POST /api/arf/parametrize. Energies are
// quantity strings such as "0.1 TeV"; empty fields take configured defaults.
type ParametrizeRequest struct {
	Name       string `json:"name"`
	Instrument string `json:"instrument"`
	EMin       string `json:"emin"`
	EMax       string `json:"emax"`
	Bins       int    `json:"bins"`
	ThreshLo   string `json:"thresh_lo"`
	ThreshHi   string `json:"thresh_hi"`
	Telescope  string `json:"telescope"`
	Filter     string `json:"filter"`
}

// TableResponse is a stored table with its bins.
type TableResponse struct {
	catalog.Entry
	EnergyLo      []float64 `json:"energy_lo_tev"`
	EnergyHi      []float64 `json:"energy_hi_tev"`
	EffectiveArea []float64 `json:"effective_area_m2"`
}

// AreaResponse reports an effective area at one energy.
type AreaResponse struct {
	Instrument string  `json:"instrument,omitempty"`
	Energy     string  `json:"energy"`
	AreaCM2    float64 `json:"effective_area_cm2"`
	AreaM2     float64 `json:"effective_area_m2"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uploads limiterStatus `json:"uploads"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, HealthResponse{Status: "ok", Uploads: s.work.status()})
}

func (s *Server) handleInstruments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, irf.Instruments())
}

// handleParametrization evaluates the Abramowski parametrization.
// Query: instrument, energy.
func (s *Server) handleParametrization(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := q.Get("instrument")
	if name == "" {
		respondError(w, r, fmt.Errorf("%w: instrument is required", errBadRequest))
		return
	}
	energy, err := energyParam(r, "energy")
	if err != nil {
		respondError(w, r, err)
		return
	}

	instrument, err := irf.ParseInstrument(name)
	if err != nil {
		respondError(w, r, err)
		return
	}
	area, err := irf.AbramowskiEffectiveArea(energy, instrument)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, AreaResponse{
		Instrument: string(instrument),
		Energy:     energy.String(),
		AreaCM2:    area.In(units.SquareCentimeter),
		AreaM2:     area.In(units.SquareMeter),
	})
}

// handleParametrize builds a table from a parametrization and stores it.
func (s *Server) handleParametrize(w http.ResponseWriter, r *http.Request) {
	var req ParametrizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if req.Name == "" {
		respondError(w, r, fmt.Errorf("%w: name is required", errBadRequest))
		return
	}

	def := s.cfg.ARF
	instrument, err := irf.ParseInstrument(req.Instrument)
	if err != nil {
		respondError(w, r, err)
		return
	}
	emin, err := energyOr(req.EMin, def.EnergyMin)
	if err != nil {
		respondError(w, r, err)
		return
	}
	emax, err := energyOr(req.EMax, def.EnergyMax)
	if err != nil {
		respondError(w, r, err)
		return
	}
	threshLo, err := energyOr(req.ThreshLo, def.ThresholdLo)
	if err != nil {
		respondError(w, r, err)
		return
	}
	threshHi, err := energyOr(req.ThreshHi, def.ThresholdHi)
	if err != nil {
		respondError(w, r, err)
		return
	}
	bins := req.Bins
	if bins == 0 {
		bins = def.Bins
	}
	if bins > def.MaxBins {
		respondError(w, r, fmt.Errorf("%w: %d bins exceeds the limit of %d", errBadRequest, bins, def.MaxBins))
		return
	}

	if err := s.work.acquire(r.Context()); err != nil {
		respondError(w, r, err)
		return
	}
	defer s.work.release()

	edges, err := irf.LogEnergyEdges(emin, emax, bins)
	if err != nil {
		respondError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	table, err := irf.NewTableFromParametrization(instrument, edges,
		irf.WithThresholds(threshLo, threshHi), irf.Strict())
	if err != nil {
		respondError(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}

	meta := irf.ARFMeta{
		Telescope:  stringOr(req.Telescope, def.Telescope),
		Instrument: string(instrument),
		Filter:     stringOr(req.Filter, def.Filter),
	}
	entry, err := s.catalog.Save(r.Context(), req.Name, meta, table)
	if err != nil {
		respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("table created",
		"id", entry.ID, "name", entry.Name, "instrument", instrument, "bins", entry.Bins)
	writeJSON(w, r, http.StatusCreated, entry)
}

// handleUpload stores an ARF file sent as the multipart field "file".
// The optional "name" field defaults to the file name.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := s.work.acquire(r.Context()); err != nil {
		respondError(w, r, err)
		return
	}
	defer s.work.release()

	limit := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, fmt.Errorf("file too large: %w", err))
			return
		}
		respondError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, errNoFile)
		return
	}
	defer file.Close()

	l, err := fits.Decode(file)
	if err != nil {
		respondError(w, r, err)
		return
	}
	table, err := irf.FromFITS(l)
	if err != nil {
		respondError(w, r, err)
		return
	}
	meta, err := irf.MetaFromFITS(l)
	if err != nil {
		respondError(w, r, err)
		return
	}

	name := stringOr(r.FormValue("name"), header.Filename)
	entry, err := s.catalog.Save(r.Context(), name, meta, table)
	if err != nil {
		respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("table uploaded",
		"id", entry.ID, "name", entry.Name, "size", header.Size, "bins", entry.Bins)
	writeJSON(w, r, http.StatusCreated, entry)
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	entries, err := s.catalog.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	if entries == nil {
		entries = []catalog.Entry{}
	}
	writeJSON(w, r, http.StatusOK, entries)
}

func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	rec, table, err := s.loadTable(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, TableResponse{
		Entry:         rec.Entry,
		EnergyLo:      units.EnergyValues(table.EnergyLo(), units.TeV),
		EnergyHi:      units.EnergyValues(table.EnergyHi(), units.TeV),
		EffectiveArea: units.AreaValues(table.EffectiveArea(), units.SquareMeter),
	})
}

func (s *Server) handleDeleteTable(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.catalog.Delete(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	logging.FromContext(r.Context()).Info("table deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleDownloadFITS returns the stored ARF file unchanged.
func (s *Server) handleDownloadFITS(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	rec, err := s.catalog.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	filename := strings.TrimSuffix(rec.Name, ".fits") + ".fits"
	w.Header().Set("Content-Type", "application/fits")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(rec.Data)))
	w.Write(rec.Data)
}

// handleInfo returns the text summary. Repeated "energy" parameters replace
// the default lookup energies.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	energies, err := units.ParseEnergies(r.URL.Query()["energy"])
	if err != nil {
		respondError(w, r, err)
		return
	}
	_, table, err := s.loadTable(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	info, err := table.Info(energies...)
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, info)
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	energy, err := energyParam(r, "energy")
	if err != nil {
		respondError(w, r, err)
		return
	}
	_, table, err := s.loadTable(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	area, err := table.EffectiveAreaAtEnergy(energy)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, AreaResponse{
		Energy:  energy.String(),
		AreaCM2: area.In(units.SquareCentimeter),
		AreaM2:  area.In(units.SquareMeter),
	})
}

// handlePlot renders the table as PNG. Query: width, height.
func (s *Server) handlePlot(w http.ResponseWriter, r *http.Request) {
	limits := s.cfg.Plot
	opts := irf.PlotOptions{
		Width:  intParam(r, "width", limits.Width),
		Height: intParam(r, "height", limits.Height),
	}
	if opts.Width > limits.MaxWidth || opts.Height > limits.MaxHeight {
		respondError(w, r, fmt.Errorf("%w: plot size %dx%d exceeds the limit of %dx%d",
			errBadRequest, opts.Width, opts.Height, limits.MaxWidth, limits.MaxHeight))
		return
	}

	_, table, err := s.loadTable(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.work.acquire(r.Context()); err != nil {
		respondError(w, r, err)
		return
	}
	defer s.work.release()

	// Render fully before writing so a failure can still produce an error response.
	var buf bytes.Buffer
	if err := table.Plot(&buf, opts); err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	buf.WriteTo(w)
}

// loadTable fetches and decodes the table named by the {id} URL parameter.
func (s *Server) loadTable(r *http.Request) (*catalog.Record, *irf.EffectiveAreaTable, error) {
	id, err := idParam(r)
	if err != nil {
		return nil, nil, err
	}
	rec, err := s.catalog.Get(r.Context(), id)
	if err != nil {
		return nil, nil, err
	}
	table, err := rec.Table()
	if err != nil {
		return nil, nil, err
	}
	return rec, table, nil
}

func idParam(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w %q", errInvalidID, raw)
	}
	return id, nil
}

// energyParam parses a required energy query parameter.
func energyParam(r *http.Request, name string) (units.Energy, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return units.Energy{}, fmt.Errorf("%w: %s is required", errBadRequest, name)
	}
	return units.ParseEnergy(raw)
}

// energyOr parses s, or returns def TeV when s is empty.
func energyOr(s string, def float64) (units.Energy, error) {
	if s == "" {
		return units.NewEnergy(def, units.TeV), nil
	}
	return units.ParseEnergy(s)
}

func stringOr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// intParam parses an integer query parameter with a default value.
func intParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
