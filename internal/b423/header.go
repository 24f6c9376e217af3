package b423

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/bvkay/LEMI-423-Reader/internal/domain"
)

// HeaderSize is the fixed length of the ASCII block preceding the records.
const HeaderSize = 1024

// Header line positions. Coefficient lines start at lineCoefficients and
// may appear in any order after it.
const (
	lineSerial       = 0
	lineFirmware     = 1
	lineDate         = 4
	lineTime         = 5
	lineLatitude     = 9
	lineLongitude    = 10
	lineAltitude     = 11
	lineCoefficients = 13
)

const headerTimeLayout = "2006/01/02 15:04:05"

// coefficientKeys maps header keys to the pair they fill; scale first.
var coefficientKeys = [domain.NumCoefficientPairs][2]string{
	domain.Bx:  {"Kmx", "Ax"},
	domain.By:  {"Kmy", "Ay"},
	domain.Bz:  {"Kmz", "Az"},
	domain.Ex:  {"Ke1", "Ae1"},
	domain.Ey:  {"Ke2", "Ae2"},
	domain.Aux: {"Ke3", "Ae3"},
}

// ParseHeader decodes the first HeaderSize bytes of buf.
func ParseHeader(buf []byte) (domain.FileHeader, error) {
	var h domain.FileHeader
	if len(buf) < HeaderSize {
		return h, &domain.MalformedHeaderError{Line: -1, Reason: fmt.Sprintf("buffer is %d bytes, want %d", len(buf), HeaderSize)}
	}

	lines := headerLines(buf[:HeaderSize])
	if len(lines) <= lineCoefficients {
		return h, &domain.MalformedHeaderError{Line: -1, Reason: fmt.Sprintf("found %d lines, want at least %d", len(lines), lineCoefficients+1)}
	}

	serial, err := parseSerial(lines[lineSerial])
	if err != nil {
		return h, err
	}
	h.Serial = serial
	h.Firmware = labelledValue(lines[lineFirmware])

	stamp := lastField(lines[lineDate]) + " " + lastField(lines[lineTime])
	start, err := time.ParseInLocation(headerTimeLayout, stamp, time.UTC)
	if err != nil {
		return h, &domain.MalformedHeaderError{Line: lineDate, Reason: "start date/time", Err: err}
	}
	h.Start = start

	if h.Latitude, err = parseCoordinate(lines[lineLatitude], lineLatitude, 2, "S"); err != nil {
		return h, err
	}
	if h.Longitude, err = parseCoordinate(lines[lineLongitude], lineLongitude, 3, "W"); err != nil {
		return h, err
	}
	altField := lastField(strings.SplitN(lines[lineAltitude], ",", 2)[0])
	if h.Altitude, err = strconv.ParseFloat(altField, 64); err != nil {
		return h, &domain.MalformedHeaderError{Line: lineAltitude, Reason: "altitude", Err: err}
	}

	if h.Coefficients, err = parseCoefficients(lines[lineCoefficients:]); err != nil {
		return h, err
	}
	return h, nil
}

// FormatHeader renders h as a HeaderSize block that ParseHeader reads back
// to the same field values.
func FormatHeader(h domain.FileHeader) ([]byte, error) {
	if strings.ContainsAny(h.Serial+h.Firmware, "\r\n") {
		return nil, fmt.Errorf("format header: serial and firmware must be single line")
	}
	start := h.Start.UTC()

	var b bytes.Buffer
	fmt.Fprintf(&b, "%%LEMI423 # %s\r\n", h.Serial)
	fmt.Fprintf(&b, "%%Ver. %s\r\n", h.Firmware)
	b.WriteString("%Data format B423\r\n")
	b.WriteString("%\r\n")
	fmt.Fprintf(&b, "%%Date %s\r\n", start.Format("2006/01/02"))
	fmt.Fprintf(&b, "%%Time %s\r\n", start.Format("15:04:05"))
	b.WriteString("%\r\n")
	b.WriteString("%\r\n")
	b.WriteString("%GPS\r\n")
	fmt.Fprintf(&b, "%%Lat %s\r\n", formatCoordinate(h.Latitude, 2, "N", "S"))
	fmt.Fprintf(&b, "%%Lon %s\r\n", formatCoordinate(h.Longitude, 3, "E", "W"))
	fmt.Fprintf(&b, "%%Alt %s,m\r\n", strconv.FormatFloat(h.Altitude, 'g', -1, 64))
	b.WriteString("%Calibration\r\n")
	for ch, keys := range coefficientKeys {
		p := h.Coefficients[ch]
		fmt.Fprintf(&b, "%%%s = %s\r\n", keys[0], strconv.FormatFloat(p.K, 'g', -1, 64))
		fmt.Fprintf(&b, "%%%s = %s\r\n", keys[1], strconv.FormatFloat(p.A, 'g', -1, 64))
	}

	if b.Len() > HeaderSize {
		return nil, fmt.Errorf("format header: rendered %d bytes, limit %d", b.Len(), HeaderSize)
	}
	out := make([]byte, HeaderSize)
	n := copy(out, b.Bytes())
	for i := n; i < HeaderSize; i++ {
		out[i] = ' '
	}
	return out, nil
}

func headerLines(buf []byte) []string {
	text := strings.ToValidUTF8(string(buf), "")
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		lines = append(lines, strings.TrimRight(l, "\x00\r\t "))
	}
	// the padding after the last line is not a line
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func lastField(line string) string {
	f := strings.Fields(strings.TrimLeft(line, "%"))
	if len(f) == 0 {
		return ""
	}
	return f[len(f)-1]
}

// labelledValue returns everything after the leading label token.
func labelledValue(line string) string {
	f := strings.Fields(strings.TrimLeft(line, "%"))
	if len(f) < 2 {
		return ""
	}
	return strings.Join(f[1:], " ")
}

func parseSerial(line string) (string, error) {
	i := strings.LastIndex(line, "#")
	if i < 0 {
		return "", &domain.MalformedHeaderError{Line: lineSerial, Reason: "instrument number marker '#' not found"}
	}
	serial := strings.TrimSpace(line[i+1:])
	if _, err := strconv.Atoi(serial); err != nil {
		return "", &domain.MalformedHeaderError{Line: lineSerial, Reason: "instrument number", Err: err}
	}
	return serial, nil
}

// parseCoordinate reads "DDMM.MMMM,H" (or DDD for longitude) into signed
// decimal degrees.
func parseCoordinate(line string, idx, degDigits int, negative string) (float64, error) {
	val, hemi, ok := strings.Cut(lastField(line), ",")
	if !ok || len(val) <= degDigits {
		return 0, &domain.MalformedHeaderError{Line: idx, Reason: fmt.Sprintf("coordinate %q", lastField(line))}
	}
	deg, err := strconv.Atoi(val[:degDigits])
	if err != nil {
		return 0, &domain.MalformedHeaderError{Line: idx, Reason: "coordinate degrees", Err: err}
	}
	minutes, err := strconv.ParseFloat(val[degDigits:], 64)
	if err != nil {
		return 0, &domain.MalformedHeaderError{Line: idx, Reason: "coordinate minutes", Err: err}
	}
	v := float64(deg) + minutes/60
	if strings.TrimSpace(hemi) == negative {
		v = -v
	}
	return v, nil
}

func formatCoordinate(v float64, degDigits int, positive, negative string) string {
	hemi := positive
	if v < 0 {
		hemi = negative
		v = -v
	}
	deg := math.Floor(v)
	minutes := math.Round((v-deg)*60*1e6) / 1e6
	if minutes >= 60 {
		deg++
		minutes -= 60
	}
	return fmt.Sprintf("%0*d%09.6f,%s", degDigits, int(deg), minutes, hemi)
}

func parseCoefficients(lines []string) (domain.Coefficients, error) {
	var c domain.Coefficients
	values := make(map[string]float64)
	for i, line := range lines {
		key, raw, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimLeft(strings.TrimSpace(key), "%")
		if !knownCoefficient(key) {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return c, &domain.MalformedHeaderError{Line: lineCoefficients + i, Reason: "coefficient " + key, Err: err}
		}
		values[key] = v
	}

	for ch, keys := range coefficientKeys {
		k, okK := values[keys[0]]
		a, okA := values[keys[1]]
		switch {
		case okK && okA:
			c[ch] = domain.Pair{K: k, A: a}
		case domain.Channel(ch) == domain.Aux && !okK && !okA:
			// older firmware omits the spare pair
			c[ch] = domain.Pair{K: 1}
		default:
			return c, &domain.MalformedHeaderError{Line: -1, Reason: fmt.Sprintf("coefficient pair %s/%s for %s is absent", keys[0], keys[1], domain.Channel(ch))}
		}
	}
	return c, nil
}

func knownCoefficient(key string) bool {
	for _, keys := range coefficientKeys {
		if key == keys[0] || key == keys[1] {
			return true
		}
	}
	return false
}
