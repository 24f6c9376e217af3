package b423

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bvkay/LEMI-423-Reader/internal/domain"
)

const sampleHeader = "%LEMI423 # 110\r\n" +
	"%Ver. 2.21\r\n" +
	"%Data format B423\r\n" +
	"%\r\n" +
	"%Date 2024/03/15\r\n" +
	"%Time 10:20:30\r\n" +
	"%\r\n" +
	"%\r\n" +
	"%GPS\r\n" +
	"%Lat 3452.123400,S\r\n" +
	"%Lon 13836.567800,E\r\n" +
	"%Alt 120.5,m\r\n" +
	"%Calibration\r\n" +
	"%Kmx = 0.0025\r\n" +
	"%Ax = -1.5\r\n" +
	"%Kmy = 0.0026\r\n" +
	"%Ay = 2\r\n" +
	"%Kmz = 0.0027\r\n" +
	"%Az = 0\r\n" +
	"%Ke1 = 0.31\r\n" +
	"%Ae1 = 10\r\n" +
	"%Ke2 = 0.32\r\n" +
	"%Ae2 = -10\r\n" +
	"%Ke3 = 0.33\r\n" +
	"%Ae3 = 0.5\r\n"

func padHeader(s string) []byte {
	b := []byte(s)
	for len(b) < HeaderSize {
		b = append(b, 0)
	}
	return b
}

func unitHeader() domain.FileHeader {
	var c domain.Coefficients
	for i := range c {
		c[i] = domain.Pair{K: 1, A: 0}
	}
	return domain.FileHeader{
		Serial:       "110",
		Firmware:     "2.21",
		Start:        time.Date(2024, 3, 15, 10, 20, 30, 0, time.UTC),
		Latitude:     -34.868723333333335,
		Longitude:    138.60946333333334,
		Altitude:     120.5,
		Coefficients: c,
	}
}

func TestParseHeader(t *testing.T) {
	h, err := ParseHeader(padHeader(sampleHeader))
	require.NoError(t, err)

	assert.Equal(t, "110", h.Serial)
	assert.Equal(t, "2.21", h.Firmware)
	assert.Equal(t, time.Date(2024, 3, 15, 10, 20, 30, 0, time.UTC), h.Start)
	assert.InDelta(t, -(34 + 52.1234/60), h.Latitude, 1e-12)
	assert.InDelta(t, 138+36.5678/60, h.Longitude, 1e-12)
	assert.Equal(t, 120.5, h.Altitude)

	assert.Equal(t, domain.Pair{K: 0.0025, A: -1.5}, h.Coefficients[domain.Bx])
	assert.Equal(t, domain.Pair{K: 0.0026, A: 2}, h.Coefficients[domain.By])
	assert.Equal(t, domain.Pair{K: 0.0027, A: 0}, h.Coefficients[domain.Bz])
	assert.Equal(t, domain.Pair{K: 0.31, A: 10}, h.Coefficients[domain.Ex])
	assert.Equal(t, domain.Pair{K: 0.32, A: -10}, h.Coefficients[domain.Ey])
	assert.Equal(t, domain.Pair{K: 0.33, A: 0.5}, h.Coefficients[domain.Aux])
}

func TestParseHeaderRoundTrip(t *testing.T) {
	first, err := ParseHeader(padHeader(sampleHeader))
	require.NoError(t, err)

	rendered, err := FormatHeader(first)
	require.NoError(t, err)
	require.Len(t, rendered, HeaderSize)

	second, err := ParseHeader(rendered)
	require.NoError(t, err)

	assert.Equal(t, first.Serial, second.Serial)
	assert.Equal(t, first.Firmware, second.Firmware)
	assert.True(t, first.Start.Equal(second.Start))
	assert.InDelta(t, first.Latitude, second.Latitude, 1e-12)
	assert.InDelta(t, first.Longitude, second.Longitude, 1e-12)
	assert.Equal(t, first.Altitude, second.Altitude)
	assert.Equal(t, first.Coefficients, second.Coefficients)
}

func TestFormatHeaderRoundTripFromStruct(t *testing.T) {
	h := unitHeader()
	h.Coefficients[domain.Ex] = domain.Pair{K: 1.0e-7, A: -3.25}
	h.Longitude = -71.5
	h.Latitude = 0.25

	rendered, err := FormatHeader(h)
	require.NoError(t, err)
	got, err := ParseHeader(rendered)
	require.NoError(t, err)

	assert.Equal(t, h.Coefficients, got.Coefficients)
	assert.InDelta(t, h.Latitude, got.Latitude, 1e-8)
	assert.InDelta(t, h.Longitude, got.Longitude, 1e-8)
}

func TestParseHeaderWithoutSparePair(t *testing.T) {
	text := strings.Replace(sampleHeader, "%Ke3 = 0.33\r\n%Ae3 = 0.5\r\n", "", 1)
	h, err := ParseHeader(padHeader(text))
	require.NoError(t, err)
	assert.Equal(t, domain.Pair{K: 1}, h.Coefficients[domain.Aux])
}

func TestParseHeaderErrors(t *testing.T) {
	cases := map[string][]byte{
		"short buffer":       []byte(sampleHeader),
		"missing pair":       padHeader(strings.Replace(sampleHeader, "%Ae2 = -10\r\n", "", 1)),
		"bad coefficient":    padHeader(strings.Replace(sampleHeader, "%Kmx = 0.0025", "%Kmx = abc", 1)),
		"bad latitude":       padHeader(strings.Replace(sampleHeader, "3452.123400,S", "34xx.1234,S", 1)),
		"bad altitude":       padHeader(strings.Replace(sampleHeader, "%Alt 120.5,m", "%Alt high,m", 1)),
		"bad date":           padHeader(strings.Replace(sampleHeader, "2024/03/15", "2024-03-15", 1)),
		"no serial marker":   padHeader(strings.Replace(sampleHeader, "%LEMI423 # 110", "%LEMI423 110", 1)),
		"too few lines":      padHeader("%LEMI423 # 110\r\n%Ver. 2\r\n"),
		"non numeric serial": padHeader(strings.Replace(sampleHeader, "# 110", "# A1", 1)),
	}
	for name, buf := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseHeader(buf)
			require.Error(t, err)
			var mh *domain.MalformedHeaderError
			assert.ErrorAs(t, err, &mh)
			assert.Equal(t, domain.KindMalformedHeader, domain.KindOf(err))
		})
	}
}
