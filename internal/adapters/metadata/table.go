// Package metadata loads the batch metadata table: one row per B423 file or
// per site folder, with the electrode geometry needed to calibrate it.
package metadata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bvkay/LEMI-423-Reader/internal/b423"
	"github.com/bvkay/LEMI-423-Reader/internal/domain"
)

type column int

const (
	colFile column = iota
	colSite
	colDipole
	colExDipole
	colEyDipole
	colExAzimuth
	colEyAzimuth
	colResponse
	numColumns
)

// aliases maps lower-cased header names to columns. The CamelCase names are
// the ones used by the field sheets.
var aliases = map[string]column{
	"file":          colFile,
	"path":          colFile,
	"site":          colSite,
	"sitename":      colSite,
	"dipole_m":      colDipole,
	"ex_dipole_m":   colExDipole,
	"exdipole":      colExDipole,
	"ey_dipole_m":   colEyDipole,
	"eydipole":      colEyDipole,
	"ex_azimuth":    colExAzimuth,
	"exazimuth":     colExAzimuth,
	"ey_azimuth":    colEyAzimuth,
	"eyazimuth":     colEyAzimuth,
	"response_file": colResponse,
	"response":      colResponse,
}

// Load reads the table at path. Relative file paths resolve against the
// table's directory; site folders resolve against baseDir, or the table's
// directory when baseDir is empty.
func Load(path, baseDir string) ([]domain.ProcessingJob, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	dir := filepath.Dir(path)
	if baseDir == "" {
		baseDir = dir
	}
	return Parse(f, dir, baseDir)
}

// Parse decodes a metadata table. Structural problems (unreadable CSV,
// missing required columns) are returned as errors before any job exists;
// problems in a single row are attached to that row's job.
func Parse(r io.Reader, dir, baseDir string) ([]domain.ProcessingJob, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &domain.ConfigurationError{Field: "metadata", Reason: "table is empty"}
	}
	if err != nil {
		return nil, &domain.ConfigurationError{Field: "metadata", Reason: err.Error()}
	}

	idx, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	var (
		jobs []domain.ProcessingJob
		row  int
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &domain.ConfigurationError{Field: "metadata", Reason: err.Error()}
		}
		if blank(rec) {
			continue
		}
		row++
		jobs = append(jobs, rowJobs(row, rec, idx, dir, baseDir)...)
	}
	return jobs, nil
}

func mapColumns(header []string) ([numColumns]int, error) {
	var idx [numColumns]int
	for i := range idx {
		idx[i] = -1
	}
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if c, ok := aliases[key]; ok && idx[c] < 0 {
			idx[c] = i
		}
	}

	var missing []string
	if idx[colFile] < 0 && idx[colSite] < 0 {
		missing = append(missing, "file or site")
	}
	if idx[colDipole] < 0 {
		if idx[colExDipole] < 0 {
			missing = append(missing, "ex_dipole_m")
		}
		if idx[colEyDipole] < 0 {
			missing = append(missing, "ey_dipole_m")
		}
	}
	if len(missing) > 0 {
		return idx, &domain.ConfigurationError{
			Field:  "metadata",
			Reason: "missing required column(s): " + strings.Join(missing, ", "),
		}
	}
	return idx, nil
}

func rowJobs(row int, rec []string, idx [numColumns]int, dir, baseDir string) []domain.ProcessingJob {
	cell := func(c column) string {
		i := idx[c]
		if i < 0 || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	base := domain.ProcessingJob{
		Row:          row,
		Site:         cell(colSite),
		ResponsePath: resolve(dir, cell(colResponse)),
	}

	var errs []error
	exDipole, eyDipole := cell(colExDipole), cell(colEyDipole)
	if exDipole == "" {
		exDipole = cell(colDipole)
	}
	if eyDipole == "" {
		eyDipole = cell(colDipole)
	}
	var err error
	base.Dipole.Ex, err = number("ex_dipole_m", exDipole, true)
	errs = append(errs, err)
	base.Dipole.Ey, err = number("ey_dipole_m", eyDipole, true)
	errs = append(errs, err)
	base.Azimuth.Ex, err = number("ex_azimuth", cell(colExAzimuth), false)
	errs = append(errs, err)
	base.Azimuth.Ey, err = number("ey_azimuth", cell(colEyAzimuth), false)
	errs = append(errs, err)
	base.Invalid = errors.Join(errs...)

	if file := cell(colFile); file != "" {
		job := base
		job.Path = resolve(dir, file)
		return []domain.ProcessingJob{job}
	}
	if base.Site == "" {
		job := base
		job.Invalid = errors.Join(job.Invalid, &domain.ConfigurationError{
			Field:  fmt.Sprintf("metadata row %d", row),
			Reason: "neither file nor site is set",
		})
		return []domain.ProcessingJob{job}
	}

	siteDir := resolve(baseDir, base.Site)
	files, err := SiteFiles(siteDir)
	if err != nil {
		job := base
		job.Path = siteDir
		job.Invalid = errors.Join(job.Invalid, err)
		return []domain.ProcessingJob{job}
	}
	jobs := make([]domain.ProcessingJob, len(files))
	for i, p := range files {
		jobs[i] = base
		jobs[i].Path = p
	}
	return jobs
}

// SiteFiles lists the B423 files in dir ordered by their numeric basename,
// which the logger sets to the file's start time. Non-numeric names sort
// last, by name.
func SiteFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &domain.IOError{Op: "list", Path: dir, Err: err}
	}

	type file struct {
		name    string
		stamp   int64
		numeric bool
	}
	var files []file
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), b423.Extension) {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		n, err := strconv.ParseInt(stem, 10, 64)
		files = append(files, file{name: e.Name(), stamp: n, numeric: err == nil})
	}
	if len(files) == 0 {
		return nil, &domain.ConfigurationError{Field: "site " + dir, Reason: "no " + b423.Extension + " files"}
	}

	sort.Slice(files, func(i, j int) bool {
		a, b := files[i], files[j]
		if a.numeric != b.numeric {
			return a.numeric
		}
		if a.numeric && a.stamp != b.stamp {
			return a.stamp < b.stamp
		}
		return a.name < b.name
	})

	out := make([]string, len(files))
	for i, f := range files {
		out[i] = filepath.Join(dir, f.name)
	}
	return out, nil
}

func number(field, s string, required bool) (float64, error) {
	if s == "" {
		if required {
			return 0, &domain.ConfigurationError{Field: field, Reason: "value is empty"}
		}
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &domain.ConfigurationError{Field: field, Reason: fmt.Sprintf("%q is not a number", s)}
	}
	return v, nil
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
