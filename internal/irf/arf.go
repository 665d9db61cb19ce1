package irf

import (
	"fmt"

	"github.com/bsipocz/gammapy/internal/fits"
	"github.com/bsipocz/gammapy/internal/units"
)

// ARFExtension is the EXTNAME of the effective area table in an ARF file.
const ARFExtension = "SPECRESP"

// ARFMeta holds the descriptive header values of an ARF file.
type ARFMeta struct {
	Telescope  string
	Instrument string
	Filter     string
	PHAFile    string // Written only when non-empty
}

// DefaultARFMeta returns the placeholder metadata used by Write.
func DefaultARFMeta() ARFMeta {
	return ARFMeta{Telescope: "DUMMY", Instrument: "DUMMY", Filter: "NONE"}
}

// ToFITS encodes the table as an OGIP ARF file.
//
// The SPECRESP extension holds ENERG_LO, ENERG_HI and SPECRESP as float32
// columns in TeV, TeV and m^2. LO_THRES and HI_THRES are written in TeV so
// that FromFITS can restore the thresholds.
func (t *EffectiveAreaTable) ToFITS(meta ARFMeta) (*fits.HDUList, error) {
	tbl, err := fits.NewBinTable([]fits.Column{
		{Name: "ENERG_LO", Format: "1E", Unit: "TeV", Data: t.energyLo},
		{Name: "ENERG_HI", Format: "1E", Unit: "TeV", Data: t.energyHi},
		{Name: "SPECRESP", Format: "1E", Unit: "m^2", Data: t.effectiveArea},
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ARFExtension, err)
	}

	h := tbl.Header()
	h.Set("EXTNAME", ARFExtension, "Name of this binary table extension")
	h.Set("TELESCOP", meta.Telescope, "Mission/satellite name")
	h.Set("INSTRUME", meta.Instrument, "Instrument/detector")
	h.Set("FILTER", meta.Filter, "Filter information")
	h.Set("HDUCLASS", "OGIP", "Organisation devising file format")
	h.Set("HDUCLAS1", "RESPONSE", "File relates to response of instrument")
	h.Set("HDUCLAS2", "SPECRESP", "Effective area data is stored")
	h.Set("HDUVERS", "1.1.0", "Version of file format")
	if meta.PHAFile != "" {
		h.Set("PHAFILE", meta.PHAFile, "PHA file for which ARF was produced")
	}
	// Older readers look for these.
	h.Set("ARFVERSN", "1992a", "Obsolete")
	h.Set("HDUVERS1", "1.0.0", "Obsolete")
	h.Set("HDUVERS2", "1.1.0", "Obsolete")

	h.Set("LO_THRES", t.threshLo, "Low energy threshold [TeV]")
	h.Set("HI_THRES", t.threshHi, "High energy threshold [TeV]")

	l := fits.NewHDUList(tbl)
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("encode %s: %w", ARFExtension, err)
	}
	return l, nil
}

// FromFITS reads the SPECRESP extension of an ARF file. The extension and
// the LO_THRES and HI_THRES header keys are required; their absence is
// reported as an error matching fits.ErrNotFound.
func FromFITS(l *fits.HDUList) (*EffectiveAreaTable, error) {
	tbl, err := l.BinTable(ARFExtension)
	if err != nil {
		return nil, err
	}

	lo, err := energyColumn(tbl, "ENERG_LO")
	if err != nil {
		return nil, err
	}
	hi, err := energyColumn(tbl, "ENERG_HI")
	if err != nil {
		return nil, err
	}
	area, err := areaColumn(tbl, "SPECRESP")
	if err != nil {
		return nil, err
	}

	threshLo, err := tbl.Header().Float("LO_THRES")
	if err != nil {
		return nil, err
	}
	threshHi, err := tbl.Header().Float("HI_THRES")
	if err != nil {
		return nil, err
	}

	return NewEffectiveAreaTable(lo, hi, area, WithThresholds(
		units.NewEnergy(threshLo, units.TeV),
		units.NewEnergy(threshHi, units.TeV),
	))
}

// MetaFromFITS reads TELESCOP, INSTRUME, FILTER and PHAFILE from the
// SPECRESP extension. Keys that are absent keep their DefaultARFMeta value.
func MetaFromFITS(l *fits.HDUList) (ARFMeta, error) {
	tbl, err := l.BinTable(ARFExtension)
	if err != nil {
		return ARFMeta{}, err
	}
	meta := DefaultARFMeta()
	h := tbl.Header()
	for key, dst := range map[string]*string{
		"TELESCOP": &meta.Telescope,
		"INSTRUME": &meta.Instrument,
		"FILTER":   &meta.Filter,
		"PHAFILE":  &meta.PHAFile,
	} {
		if v, err := h.String(key); err == nil {
			*dst = v
		}
	}
	return meta, nil
}

// energyColumn reads a column as energies, honouring its TUNIT and falling
// back to TeV when none is given.
func energyColumn(tbl *fits.BinTable, name string) ([]units.Energy, error) {
	values, err := tbl.Column(name)
	if err != nil {
		return nil, err
	}
	unit := units.TeV
	if s, _ := tbl.ColumnUnit(name); s != "" {
		if unit, err = units.LookupEnergyUnit(s); err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
	}
	return units.Energies(unit, values...), nil
}

func areaColumn(tbl *fits.BinTable, name string) ([]units.Area, error) {
	values, err := tbl.Column(name)
	if err != nil {
		return nil, err
	}
	unit := units.SquareMeter
	if s, _ := tbl.ColumnUnit(name); s != "" {
		if unit, err = units.LookupAreaUnit(s); err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
	}
	return units.Areas(unit, values...), nil
}

// Write stores the table at path with DefaultARFMeta. Options are passed
// through to fits.HDUList.WriteFile.
func (t *EffectiveAreaTable) Write(path string, opts ...fits.WriteOption) error {
	return t.WriteARF(path, DefaultARFMeta(), opts...)
}

// WriteARF stores the table at path with the given metadata.
func (t *EffectiveAreaTable) WriteARF(path string, meta ARFMeta, opts ...fits.WriteOption) error {
	l, err := t.ToFITS(meta)
	if err != nil {
		return err
	}
	return l.WriteFile(path, opts...)
}

// Read loads a table from the ARF file at path.
func Read(path string) (*EffectiveAreaTable, error) {
	l, err := fits.Open(path)
	if err != nil {
		return nil, err
	}
	t, err := FromFITS(l)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}
