package calibration

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bvkay/LEMI-423-Reader/internal/domain"
)

func TestParseCoilResponsePhaseConversion(t *testing.T) {
	in := "# freq, mag, phase\n" +
		"0.1, 10.0, 0\n" +
		"1 ,20.5, 90\n" +
		"\n" +
		"10\t30\t180\n" +
		"100;40;-90\n"

	resp, err := ParseCoilResponse(strings.NewReader(in), "coil.rsp")
	require.NoError(t, err)
	require.Equal(t, 4, resp.Len())

	wantPhase := []float64{0, math.Pi / 2, math.Pi, -math.Pi / 2}
	wantFreq := []float64{0.1, 1, 10, 100}
	for i, p := range resp.Points {
		assert.InDelta(t, wantPhase[i], p.Phase, 1e-12)
		assert.Equal(t, wantFreq[i], p.Frequency)
	}
	assert.Equal(t, 20.5, resp.Points[1].Magnitude)
	assert.Equal(t, "coil.rsp", resp.Source)
}

func TestParseCoilResponseRejects(t *testing.T) {
	cases := map[string]string{
		"non numeric":    "1,2,3\nx,2,3\n",
		"short row":      "1,2\n",
		"repeated freq":  "1,2,3\n1,2,3\n",
		"decreasing":     "10,2,3\n5,2,3\n",
		"empty":          "# nothing here\n",
		"infinite value": "1,inf,3\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			resp, err := ParseCoilResponse(strings.NewReader(in), "bad.rsp")
			assert.Nil(t, resp)
			var mr *domain.MalformedResponseFileError
			assert.ErrorAs(t, err, &mr)
		})
	}
}

func TestLoadCoilResponse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site.rsp")
	require.NoError(t, os.WriteFile(path, []byte("1,1,45\n2,1,-45\n"), 0o644))

	resp, err := LoadCoilResponse(path)
	require.NoError(t, err)
	assert.InDelta(t, math.Pi/4, resp.Points[0].Phase, 1e-12)

	_, err = LoadCoilResponse(filepath.Join(t.TempDir(), "missing.rsp"))
	assert.Equal(t, domain.KindIO, domain.KindOf(err))
}
