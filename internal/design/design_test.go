package design

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/beadcraft/beadcore/internal/sampler"
)

func validRecord() *Record {
	return &Record{
		ID: "abc123", Rows: 20, Cols: 20, CellSizePx: 16,
		QuantizerMode: sampler.Average, QuantizerEdgeTrim: true,
		Palette:     PaletteSelection{"Hama": {"H1", "H2"}},
		CreatedAtMS: 1000, UpdatedAtMS: 1000,
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	r := validRecord()
	data, err := r.Marshal()
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, r, got)
}

func TestValidateRejectsMissingID(t *testing.T) {
	r := validRecord()
	r.ID = ""
	require.Error(t, r.Validate())
}

func TestValidateRejectsNonPositiveDimensions(t *testing.T) {
	r := validRecord()
	r.Rows = 0
	require.Error(t, r.Validate())
}

func TestValidateRejectsEmptyPalette(t *testing.T) {
	r := validRecord()
	r.Palette = nil
	require.Error(t, r.Validate())
}

func TestValidateRejectsBrandWithNoColors(t *testing.T) {
	r := validRecord()
	r.Palette = PaletteSelection{"Hama": {}}
	require.Error(t, r.Validate())
}
