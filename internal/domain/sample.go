package domain

import "time"

// Channel indexes the calibration coefficient pairs carried in a B423 header.
type Channel int

const (
	Bx Channel = iota
	By
	Bz
	Ex
	Ey
	// Aux is the spare electrode pair (Ke3/Ae3). It is carried through
	// parsing and formatting but never applied to a recorded channel.
	Aux

	NumCoefficientPairs = 6
)

var channelNames = [NumCoefficientPairs]string{"Bx", "By", "Bz", "Ex", "Ey", "Aux"}

func (c Channel) String() string {
	if c < 0 || int(c) >= len(channelNames) {
		return "unknown"
	}
	return channelNames[c]
}

// Magnetic reports whether the channel carries a coil output (mV).
func (c Channel) Magnetic() bool { return c == Bx || c == By || c == Bz }

// Pair is one linear calibration: value = raw*K + A.
type Pair struct {
	K float64 `json:"k"`
	A float64 `json:"a"`
}

// Coefficients holds the six header pairs indexed by Channel.
type Coefficients [NumCoefficientPairs]Pair

// FileHeader is the decoded 1024-byte ASCII block at the start of a B423 file.
type FileHeader struct {
	Serial       string       `json:"serial"`
	Firmware     string       `json:"firmware"`
	Start        time.Time    `json:"start"`
	Latitude     float64      `json:"latitude"`
	Longitude    float64      `json:"longitude"`
	Altitude     float64      `json:"altitude"`
	Coefficients Coefficients `json:"coefficients"`
}

// SampleRecord is one 30-byte record exactly as stored on disk.
type SampleRecord struct {
	Second int64 `json:"second"`
	Index  int   `json:"index"`
	Bx     int32 `json:"bx"`
	By     int32 `json:"by"`
	Bz     int32 `json:"bz"`
	Ex     int32 `json:"ex"`
	Ey     int32 `json:"ey"`
	PPS    int16 `json:"pps"`
	PLL    int16 `json:"pll"`
}

// CalibratedSample carries Bx/By/Bz in mV and Ex/Ey in mV/km.
type CalibratedSample struct {
	Second int64     `json:"second"`
	Index  int       `json:"index"`
	Time   time.Time `json:"ts"`
	Bx     float64   `json:"bx"`
	By     float64   `json:"by"`
	Bz     float64   `json:"bz"`
	Ex     float64   `json:"ex"`
	Ey     float64   `json:"ey"`
}

// DiscontinuityKind classifies a break in the second/index sequence.
type DiscontinuityKind string

const (
	Gap       DiscontinuityKind = "gap"
	Duplicate DiscontinuityKind = "duplicate"
	Backward  DiscontinuityKind = "backward"
	// OutOfRange marks a record whose index is not below the file's rate.
	OutOfRange DiscontinuityKind = "index_out_of_range"
)

// Discontinuity is a data-quality fact found while scanning records. Records
// are never reordered or patched because of it.
type Discontinuity struct {
	Kind     DiscontinuityKind `json:"kind"`
	Position int               `json:"position"`
	Second   int64             `json:"second"`
	Index    int               `json:"index"`
	Missing  int64             `json:"missing,omitempty"`
}
