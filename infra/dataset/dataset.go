// Package dataset reads planning inputs from YAML or JSON files.
package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/fleetplan/core/model"
	"github.com/kilianp07/fleetplan/core/params"
)

// File is the on-disk layout of a dataset. JSON files use the same keys.
type File struct {
	Name            string           `yaml:"name"`
	Horizon         int              `yaml:"horizon"`
	WorkBand        *model.WorkBand  `yaml:"work_band"`
	ReserveFraction *float64         `yaml:"reserve_fraction"`
	Penalties       model.Penalties  `yaml:"penalties"`
	Resources       []model.Resource `yaml:"resources"`
	Activities      []model.Activity `yaml:"activities"`
	Prices          []float64        `yaml:"prices"`
	// PricesCSV names an hour,price file, relative to the dataset file.
	PricesCSV string    `yaml:"prices_csv"`
	Targets   []float64 `yaml:"targets"`
}

// Dataset is a decoded file with its price series resolved.
type Dataset struct {
	Name    string
	Path    string
	Input   params.Input
	Targets []float64
}

// Load reads the dataset at path. Structural checks beyond the file format
// are left to params.Load; see Snapshot.
func Load(path string) (*Dataset, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml", ".json":
	default:
		return nil, fmt.Errorf("dataset: unsupported format %q", ext)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}

	prices := f.Prices
	if f.PricesCSV != "" {
		if len(prices) > 0 {
			return nil, fmt.Errorf("dataset %s: prices and prices_csv are mutually exclusive", path)
		}
		csvPath := f.PricesCSV
		if !filepath.IsAbs(csvPath) {
			csvPath = filepath.Join(filepath.Dir(path), csvPath)
		}
		fh, err := os.Open(csvPath)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", path, err)
		}
		prices, err = ReadPricesCSV(fh)
		_ = fh.Close()
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %s: %w", path, f.PricesCSV, err)
		}
	}

	in := params.Input{
		Resources:       f.Resources,
		Activities:      f.Activities,
		Prices:          prices,
		Penalties:       f.Penalties,
		Horizon:         f.Horizon,
		WorkBand:        model.DefaultWorkBand,
		ReserveFraction: params.DefaultReserveFraction,
	}
	if in.Horizon == 0 {
		in.Horizon = len(prices)
	}
	if f.WorkBand != nil {
		in.WorkBand = *f.WorkBand
	}
	if f.ReserveFraction != nil {
		in.ReserveFraction = *f.ReserveFraction
	}
	name := f.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &Dataset{Name: name, Path: path, Input: in, Targets: f.Targets}, nil
}

// Snapshot validates the dataset.
func (d *Dataset) Snapshot() (*params.Snapshot, error) {
	return params.Load(d.Input)
}

// ReadPricesCSV reads hour,price records. A header line is allowed. Every
// hour from 0 to the largest one must appear exactly once.
func ReadPricesCSV(r io.Reader) ([]float64, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2
	cr.TrimLeadingSpace = true
	cr.Comment = '#'
	byHour := map[int]float64{}
	maxHour := -1
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		hour, herr := strconv.Atoi(strings.TrimSpace(rec[0]))
		if herr != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: bad hour %q", line, rec[0])
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad price %q", line, rec[1])
		}
		if hour < 0 {
			return nil, fmt.Errorf("line %d: negative hour %d", line, hour)
		}
		if _, dup := byHour[hour]; dup {
			return nil, fmt.Errorf("line %d: hour %d listed twice", line, hour)
		}
		byHour[hour] = price
		maxHour = max(maxHour, hour)
	}
	prices := make([]float64, maxHour+1)
	for h := range prices {
		p, ok := byHour[h]
		if !ok {
			return nil, fmt.Errorf("hour %d missing", h)
		}
		prices[h] = p
	}
	return prices, nil
}
