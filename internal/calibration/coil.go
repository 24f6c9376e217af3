package calibration

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/bvkay/LEMI-423-Reader/internal/domain"
)

// MagneticConverter is the extension point for turning calibrated Bx/By/Bz
// (mV) into nT with a coil response. Implementations work in the frequency
// domain and are not part of this package.
type MagneticConverter interface {
	ConvertMagnetic(samples []domain.CalibratedSample, rate int, resp *domain.CoilResponse) ([]domain.CalibratedSample, error)
}

// DegreesToRadians is the one-way phase conversion applied at load time.
func DegreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// LoadCoilResponse opens and parses the RSP file at path.
func LoadCoilResponse(path string) (*domain.CoilResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()
	return ParseCoilResponse(f, path)
}

// ParseCoilResponse reads "frequency magnitude phase_deg" rows separated by
// commas, semicolons or whitespace. Blank lines and lines starting with '#'
// or '%' are skipped. Frequencies must strictly increase.
func ParseCoilResponse(r io.Reader, source string) (*domain.CoilResponse, error) {
	resp := &domain.CoilResponse{Source: source}
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' || line[0] == '%' {
			continue
		}

		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ';' || r == ' ' || r == '\t'
		})
		if len(fields) < 3 {
			return nil, &domain.MalformedResponseFileError{Source: source, Line: lineNo, Reason: fmt.Sprintf("want 3 columns, got %d", len(fields))}
		}

		var vals [3]float64
		for i := range vals {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &domain.MalformedResponseFileError{Source: source, Line: lineNo, Reason: fmt.Sprintf("column %d %q is not a number", i+1, fields[i])}
			}
			vals[i] = v
		}

		if n := len(resp.Points); n > 0 && vals[0] <= resp.Points[n-1].Frequency {
			return nil, &domain.MalformedResponseFileError{Source: source, Line: lineNo,
				Reason: fmt.Sprintf("frequency %g does not increase past %g", vals[0], resp.Points[n-1].Frequency)}
		}
		resp.Points = append(resp.Points, domain.CoilResponsePoint{
			Frequency: vals[0],
			Magnitude: vals[1],
			Phase:     DegreesToRadians(vals[2]),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, &domain.IOError{Op: "read", Path: source, Err: err}
	}
	if len(resp.Points) == 0 {
		return nil, &domain.MalformedResponseFileError{Source: source, Reason: "no response rows"}
	}
	return resp, nil
}
