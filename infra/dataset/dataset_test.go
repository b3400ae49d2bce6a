package dataset

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetplan/core/model"
	"github.com/kilianp07/fleetplan/core/params"
)

func TestLoadYAML(t *testing.T) {
	ds, err := Load(filepath.Join("testdata", "small.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "small", ds.Name)
	assert.Equal(t, []float64{0.5, 0.7, 0.9}, ds.Targets)
	assert.Equal(t, 8, ds.Input.Horizon)
	assert.Equal(t, model.DefaultWorkBand, ds.Input.WorkBand)
	assert.Equal(t, params.DefaultReserveFraction, ds.Input.ReserveFraction)
	require.Len(t, ds.Input.Resources, 1)
	assert.Equal(t, 4.0, ds.Input.Resources[0].ConsumptionKWh)

	snap, err := ds.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 8, snap.Horizon())
	assert.Equal(t, 1.0, snap.Price(7))
}

func TestLoadJSONWithPricesCSV(t *testing.T) {
	ds, err := Load(filepath.Join("testdata", "small.json"))
	require.NoError(t, err)
	assert.Equal(t, "small", ds.Name, "name defaults to the file stem")
	assert.Equal(t, []float64{5, 5, 5, 5, 5, 5, 5, 1}, ds.Input.Prices)
	assert.Equal(t, 8, ds.Input.Horizon, "horizon defaults to the price count")
	assert.Zero(t, ds.Input.ReserveFraction, "explicit zero reserve is kept")

	yamlDS, err := Load(filepath.Join("testdata", "small.yaml"))
	require.NoError(t, err)
	a, err := yamlDS.Snapshot()
	require.NoError(t, err)
	yamlDS.Input.ReserveFraction = 0
	b, err := yamlDS.Snapshot()
	require.NoError(t, err)
	c, err := ds.Snapshot()
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
	assert.Equal(t, b.Fingerprint(), c.Fingerprint())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "unknown_key.yaml"))
	assert.ErrorContains(t, err, "fleet")

	_, err = Load(filepath.Join("testdata", "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(filepath.Join("testdata", "prices.csv"))
	assert.ErrorContains(t, err, "unsupported format")
}

func TestSnapshotReportsDataErrors(t *testing.T) {
	ds, err := Load(filepath.Join("testdata", "small.yaml"))
	require.NoError(t, err)
	ds.Input.Prices = ds.Input.Prices[:5]
	_, err = ds.Snapshot()
	require.Error(t, err)
	assert.True(t, errors.Is(err, params.ErrData))
}

func TestReadPricesCSV(t *testing.T) {
	prices, err := ReadPricesCSV(strings.NewReader("0,1.5\n2, 3\n1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 2, 3}, prices)

	for name, in := range map[string]string{
		"gap":       "hour,price\n0,1\n2,1\n",
		"duplicate": "0,1\n0,2\n",
		"bad price": "0,abc\n",
		"bad hour":  "0,1\nx,2\n",
		"negative":  "-1,2\n",
		"columns":   "0,1,2\n",
	} {
		_, err := ReadPricesCSV(strings.NewReader(in))
		assert.Error(t, err, name)
	}
}

func TestExampleDataset(t *testing.T) {
	ds, err := Load(filepath.Join("..", "..", "examples", "fleet-week.yaml"))
	require.NoError(t, err)
	snap, err := ds.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, params.DefaultHorizon, snap.Horizon())
	assert.Len(t, snap.Resources(), 7)
	assert.Equal(t, 9, snap.ActivityCount())
	assert.Equal(t, []float64{0.2, 0.4, 0.6, 0.8, 1.0}, ds.Targets)
}
