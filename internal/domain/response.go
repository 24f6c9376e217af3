package domain

// CoilResponsePoint is one row of an RSP file with the phase already in radians.
type CoilResponsePoint struct {
	Frequency float64 `json:"frequency_hz"`
	Magnitude float64 `json:"magnitude_mv_per_nt"`
	Phase     float64 `json:"phase_rad"`
}

// CoilResponse is a frequency response table ordered by strictly increasing
// frequency. It is shared read-only by every file from the same site.
type CoilResponse struct {
	Source string              `json:"source"`
	Points []CoilResponsePoint `json:"points"`
}

// Len returns the number of points in the table.
func (c *CoilResponse) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Points)
}
