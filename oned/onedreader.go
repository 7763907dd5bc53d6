// Package oned implements one-dimensional barcode reading and writing. The
// core only ever sees a single already-detected row (a run-length-decoded
// BitArray) plus guard positions; finding which image row to sample and at
// what rotation is an external locator's job.
package oned

import (
	"math"

	barcodecore "github.com/barcodekit/core"
	"github.com/barcodekit/core/bitutil"
)

// RowDecoder decodes a single row of a 1D barcode.
type RowDecoder interface {
	// DecodeRow attempts to decode a barcode from a single row.
	DecodeRow(rowNumber int, row *bitutil.BitArray, opts *barcodecore.DecodeOptions) (*barcodecore.Result, error)
}

// RecordPattern records the widths of successive runs of black and white
// pixels in a row, starting at the given position.
func RecordPattern(row *bitutil.BitArray, start int, counters []int) error {
	numCounters := len(counters)
	for i := range counters {
		counters[i] = 0
	}
	end := row.Size()
	if start >= end {
		return barcodecore.ErrNotFound
	}
	isWhite := !row.Get(start)
	counterPosition := 0
	i := start
	for i < end {
		if row.Get(i) != isWhite {
			counters[counterPosition]++
		} else {
			counterPosition++
			if counterPosition == numCounters {
				break
			}
			counters[counterPosition] = 1
			isWhite = !isWhite
		}
		i++
	}
	if !(counterPosition == numCounters || (counterPosition == numCounters-1 && i == end)) {
		return barcodecore.ErrNotFound
	}
	return nil
}

// RecordPatternInReverse records a pattern by first walking backwards to find
// the start of the pattern, then recording forward.
func RecordPatternInReverse(row *bitutil.BitArray, start int, counters []int) error {
	numTransitionsLeft := len(counters)
	last := row.Get(start)
	for start > 0 && numTransitionsLeft >= 0 {
		start--
		if row.Get(start) != last {
			numTransitionsLeft--
			last = !last
		}
	}
	if numTransitionsLeft >= 0 {
		return barcodecore.ErrNotFound
	}
	return RecordPattern(row, start+1, counters)
}

// PatternMatchVariance determines how closely observed counter widths match
// a target pattern. Returns the ratio of total variance to pattern size.
// Returns +Inf if any individual counter exceeds maxIndividualVariance.
func PatternMatchVariance(counters []int, pattern []int, maxIndividualVariance float64) float64 {
	numCounters := len(counters)
	total := 0
	patternLength := 0
	for i := 0; i < numCounters; i++ {
		total += counters[i]
		patternLength += pattern[i]
	}
	if total < patternLength {
		return math.Inf(1)
	}

	unitBarWidth := float64(total) / float64(patternLength)
	maxIndividualVariance *= unitBarWidth

	totalVariance := 0.0
	for i := 0; i < numCounters; i++ {
		counter := float64(counters[i])
		scaledPattern := float64(pattern[i]) * unitBarWidth
		variance := counter - scaledPattern
		if variance < 0 {
			variance = -variance
		}
		if variance > maxIndividualVariance {
			return math.Inf(1)
		}
		totalVariance += variance
	}
	return totalVariance / float64(total)
}
