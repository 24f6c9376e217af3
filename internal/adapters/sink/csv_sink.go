package sink

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bvkay/LEMI-423-Reader/internal/domain"
	"github.com/bvkay/LEMI-423-Reader/internal/ports"
)

var csvColumns = []string{"time", "second", "index", "bx_mv", "by_mv", "bz_mv", "ex_mv_km", "ey_mv_km"}

// CSVSink writes one CSV per input file into dir. Output goes to a temp file
// first and is renamed into place, so readers never see a partial file.
type CSVSink struct {
	dir string
}

func NewCSVSink(dir string) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &CSVSink{dir: dir}, nil
}

func (c *CSVSink) Name() string { return "csv" }

// OutputPath is where the CSV for res ends up.
func (c *CSVSink) OutputPath(res *domain.FileResult) string {
	base := strings.TrimSuffix(filepath.Base(res.Job.Path), filepath.Ext(res.Job.Path))
	if res.Job.Site != "" {
		base = res.Job.Site + "_" + base
	}
	return filepath.Join(c.dir, base+".csv")
}

func (c *CSVSink) WriteResult(res *domain.FileResult) (err error) {
	if res == nil {
		return nil
	}
	final := c.OutputPath(res)
	tmp, err := os.CreateTemp(c.dir, "."+filepath.Base(final)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriterSize(tmp, 64<<10)
	writeComments(bw, res)

	w := csv.NewWriter(bw)
	if err = w.Write(csvColumns); err != nil {
		return err
	}
	row := make([]string, len(csvColumns))
	for _, s := range res.Samples {
		row[0] = s.Time.Format(time.RFC3339Nano)
		row[1] = strconv.FormatInt(s.Second, 10)
		row[2] = strconv.Itoa(s.Index)
		row[3] = formatFloat(s.Bx)
		row[4] = formatFloat(s.By)
		row[5] = formatFloat(s.Bz)
		row[6] = formatFloat(s.Ex)
		row[7] = formatFloat(s.Ey)
		if err = w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err = w.Error(); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), final); err != nil {
		return errors.Join(err, os.Remove(tmp.Name()))
	}
	return nil
}

func writeComments(w *bufio.Writer, res *domain.FileResult) {
	h := res.Header
	fmt.Fprintf(w, "# source: %s\n", res.Job.Path)
	if res.Job.Site != "" {
		fmt.Fprintf(w, "# site: %s\n", res.Job.Site)
	}
	fmt.Fprintf(w, "# serial: %s\n", h.Serial)
	fmt.Fprintf(w, "# firmware: %s\n", h.Firmware)
	fmt.Fprintf(w, "# start: %s\n", h.Start.Format(time.RFC3339))
	fmt.Fprintf(w, "# latitude: %s\n", formatFloat(h.Latitude))
	fmt.Fprintf(w, "# longitude: %s\n", formatFloat(h.Longitude))
	fmt.Fprintf(w, "# altitude_m: %s\n", formatFloat(h.Altitude))
	fmt.Fprintf(w, "# dipole_m: ex=%s ey=%s\n", formatFloat(res.Job.Dipole.Ex), formatFloat(res.Job.Dipole.Ey))
	fmt.Fprintf(w, "# azimuth_deg: ex=%s ey=%s\n", formatFloat(res.Job.Azimuth.Ex), formatFloat(res.Job.Azimuth.Ey))
	fmt.Fprintf(w, "# sample_rate_hz: %d\n", res.SampleRate)
	for ch, p := range h.Coefficients {
		fmt.Fprintf(w, "# coeff_%s: k=%s a=%s\n", domain.Channel(ch), formatFloat(p.K), formatFloat(p.A))
	}
	if n := len(res.Discontinuities); n > 0 {
		fmt.Fprintf(w, "# discontinuities: %d\n", n)
	}
	if res.Response != nil {
		fmt.Fprintf(w, "# coil_response: %s (%d points)\n", res.Response.Source, res.Response.Len())
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

var _ ports.Sink = (*CSVSink)(nil)
