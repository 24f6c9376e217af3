package b423

import (
	"time"

	"github.com/bvkay/LEMI-423-Reader/internal/domain"
)

// SampleRate infers the sampling rate as the most common number of records
// sharing one second, ties going to the larger count. Partial first and last
// seconds and corrupt indexes do not move it. Returns 0 for an empty slice.
func SampleRate(recs []domain.SampleRecord) int {
	perSecond := make(map[int64]int)
	for _, r := range recs {
		perSecond[r.Second]++
	}
	freq := make(map[int]int)
	for _, n := range perSecond {
		freq[n]++
	}
	rate, best := 0, 0
	for n, f := range freq {
		if f > best || (f == best && n > rate) {
			rate, best = n, f
		}
	}
	return rate
}

// SampleTime is the UTC instant of the index-th sample in second.
func SampleTime(second int64, index, rate int) time.Time {
	t := time.Unix(second, 0).UTC()
	if rate <= 0 {
		return t
	}
	return t.Add(time.Duration(index) * time.Second / time.Duration(rate))
}

// CheckContinuity walks recs in file order and reports every place where the
// (second, index) sequence does not advance by exactly one sample. A record
// whose index is at or above rate is reported as OutOfRange and counted as
// the next expected sample, so one bad index does not also raise a gap.
func CheckContinuity(recs []domain.SampleRecord, rate int) []domain.Discontinuity {
	if rate <= 0 || len(recs) < 2 {
		return nil
	}
	pos := func(r domain.SampleRecord) int64 { return r.Second*int64(rate) + int64(r.Index) }

	var out []domain.Discontinuity
	prev := pos(recs[0])
	if recs[0].Index < 0 || recs[0].Index >= rate {
		out = append(out, domain.Discontinuity{Kind: domain.OutOfRange, Second: recs[0].Second, Index: recs[0].Index})
		prev = recs[0].Second * int64(rate)
	}
	for i := 1; i < len(recs); i++ {
		d := domain.Discontinuity{Position: i, Second: recs[i].Second, Index: recs[i].Index}
		if recs[i].Index < 0 || recs[i].Index >= rate {
			d.Kind = domain.OutOfRange
			out = append(out, d)
			prev++
			continue
		}
		cur := pos(recs[i])
		switch {
		case cur == prev+1:
			prev = cur
			continue
		case cur == prev:
			d.Kind = domain.Duplicate
		case cur < prev:
			d.Kind = domain.Backward
		default:
			d.Kind = domain.Gap
			d.Missing = cur - prev - 1
		}
		out = append(out, d)
		prev = cur
	}
	return out
}
