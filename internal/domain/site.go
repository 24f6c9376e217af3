package domain

import "time"

// SiteSummary rolls up the processed files of one site: where and with what
// instrument it recorded, and the span covered from the first file's start
// to the last file's end.
type SiteSummary struct {
	Site       string    `json:"site"`
	Serial     string    `json:"serial"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Altitude   float64   `json:"altitude"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	SampleRate int       `json:"sample_rate"`
	Dipole     Dipole    `json:"dipole"`
	Azimuth    Azimuth   `json:"azimuth"`
	Files      int       `json:"files"`
	Samples    int       `json:"samples"`
}

// Sites groups succeeded and skipped outcomes by Site, in the order each site
// first appears. Instrument, position, rate and electrode layout come from
// the site's first file; Start and End span all of its files.
func (r *Report) Sites() []SiteSummary {
	var out []SiteSummary
	idx := make(map[string]int)
	for _, o := range r.Outcomes {
		if o.Status != StatusSucceeded && o.Status != StatusSkipped {
			continue
		}
		i, ok := idx[o.Site]
		if !ok {
			idx[o.Site] = len(out)
			out = append(out, SiteSummary{
				Site:       o.Site,
				Serial:     o.Serial,
				Latitude:   o.Latitude,
				Longitude:  o.Longitude,
				Altitude:   o.Altitude,
				Start:      o.Start,
				End:        o.End,
				SampleRate: o.SampleRate,
				Dipole:     o.Dipole,
				Azimuth:    o.Azimuth,
				Files:      1,
				Samples:    o.SampleCount,
			})
			continue
		}
		s := &out[i]
		s.Files++
		s.Samples += o.SampleCount
		if !o.Start.IsZero() && (s.Start.IsZero() || o.Start.Before(s.Start)) {
			s.Start = o.Start
		}
		if o.End.After(s.End) {
			s.End = o.End
		}
	}
	return out
}
