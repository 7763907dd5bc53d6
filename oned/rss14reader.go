package oned

import (
	"fmt"

	barcodecore "github.com/barcodekit/core"
	"github.com/barcodekit/core/bitutil"
)

// rss14Tables holds the subset lookup tables that drive RSS-14 data
// character decoding. Outside and inside data characters use distinct
// widest-element, total-subset, and group-sum tables, so the fields below
// mirror that split rather than sharing one generic table.
var rss14Tables = struct {
	outsideEvenTotalSubset []int
	insideOddTotalSubset   []int
	outsideGroupSum        []int
	insideGroupSum         []int
	outsideOddWidest       []int
	insideOddWidest        []int
	finderPatterns         [][]int
}{
	outsideEvenTotalSubset: []int{1, 10, 34, 70, 126},
	insideOddTotalSubset:   []int{4, 20, 48, 81},
	outsideGroupSum:        []int{0, 161, 961, 2015, 2715},
	insideGroupSum:         []int{0, 336, 1036, 1516},
	outsideOddWidest:       []int{8, 6, 4, 3, 1},
	insideOddWidest:        []int{2, 4, 6, 8},
	finderPatterns: [][]int{
		{3, 8, 2, 1},
		{3, 5, 5, 1},
		{3, 3, 7, 1},
		{3, 1, 9, 1},
		{2, 7, 4, 1},
		{2, 5, 6, 1},
		{2, 3, 8, 1},
		{1, 5, 7, 1},
		{1, 3, 9, 1},
	},
}

// RSS14Reader locates and decodes a GS1 DataBar Omnidirectional (RSS-14)
// symbol, including its truncated and stacked variants, by finding one
// finder pattern scanning left-to-right and a second scanning the reversed
// row, then checking every combination's checksum.
type RSS14Reader struct {
	leftCandidates  []rssPair
	rightCandidates []rssPair

	finderCounters [4]int
	charCounters   [8]int
	oddError       [4]float64
	evenError      [4]float64
	oddCounts      [4]int
	evenCounts     [4]int
}

func NewRSS14Reader() *RSS14Reader {
	return &RSS14Reader{}
}

func (r *RSS14Reader) DecodeRow(rowNumber int, row *bitutil.BitArray, opts *barcodecore.DecodeOptions) (*barcodecore.Result, error) {
	if pair := r.decodePair(row, false, rowNumber); pair != nil {
		r.recordCandidate(&r.leftCandidates, pair)
	}
	row.Reverse()
	if pair := r.decodePair(row, true, rowNumber); pair != nil {
		r.recordCandidate(&r.rightCandidates, pair)
	}
	row.Reverse()

	if pair := r.findConsistentPairing(); pair != nil {
		return rss14BuildResult(pair.left, pair.right), nil
	}
	return nil, barcodecore.ErrNotFound
}

type rss14Pairing struct {
	left, right *rssPair
}

// findConsistentPairing looks for a left/right pair that has each been seen
// more than once across scan rows and whose checksums agree.
func (r *RSS14Reader) findConsistentPairing() *rss14Pairing {
	for i := range r.leftCandidates {
		left := &r.leftCandidates[i]
		if left.count <= 1 {
			continue
		}
		for j := range r.rightCandidates {
			right := &r.rightCandidates[j]
			if right.count > 1 && rss14ChecksumMatches(left, right) {
				return &rss14Pairing{left: left, right: right}
			}
		}
	}
	return nil
}

func (r *RSS14Reader) recordCandidate(candidates *[]rssPair, pair *rssPair) {
	for i := range *candidates {
		if (*candidates)[i].value == pair.value {
			(*candidates)[i].count++
			return
		}
	}
	pair.count = 1
	*candidates = append(*candidates, *pair)
}

func rss14BuildResult(leftPair, rightPair *rssPair) *barcodecore.Result {
	symbolValue := int64(4537077)*int64(leftPair.value) + int64(rightPair.value)
	digits := rss14PadTo13Digits(fmt.Sprintf("%d", symbolValue))
	digits = append(digits, byte('0'+rss14CheckDigit(digits)))

	result := barcodecore.NewResult(
		string(digits),
		nil,
		[]barcodecore.ResultPoint{
			leftPair.finderPattern.resultPoints[0],
			leftPair.finderPattern.resultPoints[1],
			rightPair.finderPattern.resultPoints[0],
			rightPair.finderPattern.resultPoints[1],
		},
		barcodecore.FormatRSS14,
	)
	result.PutMetadata(barcodecore.MetadataSymbologyIdentifier, "]e0")
	return result
}

func rss14PadTo13Digits(text string) []byte {
	buf := make([]byte, 0, 14)
	for i := 13 - len(text); i > 0; i-- {
		buf = append(buf, '0')
	}
	return append(buf, []byte(text)...)
}

func rss14CheckDigit(digits []byte) int {
	sum := 0
	for i := 0; i < 13; i++ {
		digit := int(digits[i] - '0')
		if i&1 == 0 {
			sum += 3 * digit
		} else {
			sum += digit
		}
	}
	check := 10 - (sum % 10)
	if check == 10 {
		check = 0
	}
	return check
}

// rss14ChecksumMatches implements the RSS-14 "checksum character" rule,
// which skips over two reserved values (72 and then 8, each removed in
// turn) in the combined finder-value space.
func rss14ChecksumMatches(leftPair, rightPair *rssPair) bool {
	checkValue := (leftPair.checksumPortion + 16*rightPair.checksumPortion) % 79
	target := 9*leftPair.finderPattern.value + rightPair.finderPattern.value
	if target > 72 {
		target--
	}
	if target > 8 {
		target--
	}
	return checkValue == target
}

func (r *RSS14Reader) decodePair(row *bitutil.BitArray, right bool, rowNumber int) *rssPair {
	startEnd, err := r.findFinderPattern(row, right)
	if err != nil {
		return nil
	}
	pattern, err := r.parseFoundFinderPattern(row, rowNumber, right, startEnd)
	if err != nil {
		return nil
	}

	outside, err := r.decodeDataCharacter(row, pattern, true)
	if err != nil {
		return nil
	}
	inside, err := r.decodeDataCharacter(row, pattern, false)
	if err != nil {
		return nil
	}

	return &rssPair{
		value:           1597*outside.value + inside.value,
		checksumPortion: outside.checksumPortion + 4*inside.checksumPortion,
		finderPattern:   *pattern,
	}
}

// decodeDataCharacter samples the run lengths on either side of a finder
// pattern and maps them onto the odd/even "widest element" subsets that
// RSS-14 uses in place of explicit start/stop framing per character.
func (r *RSS14Reader) decodeDataCharacter(row *bitutil.BitArray, pattern *rssFinderPattern, outsideChar bool) (*rssDataCharacter, error) {
	counters := r.charCounters[:]
	for i := range counters {
		counters[i] = 0
	}

	if outsideChar {
		if err := RecordPatternInReverse(row, pattern.startEnd[0], counters); err != nil {
			return nil, err
		}
	} else {
		if err := RecordPattern(row, pattern.startEnd[1], counters); err != nil {
			return nil, err
		}
		reverseIntSlice(counters)
	}

	numModules := 16
	if !outsideChar {
		numModules = 15
	}
	r.sampleCountsToOddEven(counters, numModules)

	if err := r.adjustOddEvenCounts(outsideChar, numModules); err != nil {
		return nil, err
	}

	oddSum, oddChecksumPortion := rss14WeightedSum(r.oddCounts[:])
	evenSum, evenChecksumPortion := rss14WeightedSum(r.evenCounts[:])
	checksumPortion := oddChecksumPortion + 3*evenChecksumPortion

	if outsideChar {
		return r.outsideValue(oddSum, checksumPortion)
	}
	return r.insideValue(evenSum, checksumPortion)
}

// sampleCountsToOddEven turns raw pixel-run counters into per-element module
// counts (rounded to the nearest integer module width) split by parity.
func (r *RSS14Reader) sampleCountsToOddEven(counters []int, numModules int) {
	elementWidth := float64(sumInts(counters)) / float64(numModules)
	for i, c := range counters {
		value := float64(c) / elementWidth
		count := clampInt(int(value+0.5), 1, 8)
		offset := i / 2
		if i&1 == 0 {
			r.oddCounts[offset] = count
			r.oddError[offset] = value - float64(count)
		} else {
			r.evenCounts[offset] = count
			r.evenError[offset] = value - float64(count)
		}
	}
}

func (r *RSS14Reader) outsideValue(oddSum, checksumPortion int) (*rssDataCharacter, error) {
	if oddSum&1 != 0 || oddSum > 12 || oddSum < 4 {
		return nil, barcodecore.ErrNotFound
	}
	group := (12 - oddSum) / 2
	oddWidest := rss14Tables.outsideOddWidest[group]
	vOdd := getRSSvalue(r.oddCounts[:], oddWidest, false)
	vEven := getRSSvalue(r.evenCounts[:], 9-oddWidest, true)
	return &rssDataCharacter{
		value:           vOdd*rss14Tables.outsideEvenTotalSubset[group] + vEven + rss14Tables.outsideGroupSum[group],
		checksumPortion: checksumPortion,
	}, nil
}

func (r *RSS14Reader) insideValue(evenSum, checksumPortion int) (*rssDataCharacter, error) {
	if evenSum&1 != 0 || evenSum > 10 || evenSum < 4 {
		return nil, barcodecore.ErrNotFound
	}
	group := (10 - evenSum) / 2
	oddWidest := rss14Tables.insideOddWidest[group]
	vOdd := getRSSvalue(r.oddCounts[:], oddWidest, true)
	vEven := getRSSvalue(r.evenCounts[:], 9-oddWidest, false)
	return &rssDataCharacter{
		value:           vEven*rss14Tables.insideOddTotalSubset[group] + vOdd + rss14Tables.insideGroupSum[group],
		checksumPortion: checksumPortion,
	}, nil
}

func rss14WeightedSum(counts []int) (sum, checksumPortion int) {
	for i := len(counts) - 1; i >= 0; i-- {
		checksumPortion *= 9
		checksumPortion += counts[i]
		sum += counts[i]
	}
	return sum, checksumPortion
}

// findFinderPattern scans for four alternating runs matching the RSS
// finder-pattern shape, sliding the window forward by one bar/space pair
// (two runs) on a mismatch rather than restarting the whole scan.
func (r *RSS14Reader) findFinderPattern(row *bitutil.BitArray, rightFinderPattern bool) ([2]int, error) {
	counters := r.finderCounters[:]
	for i := range counters {
		counters[i] = 0
	}

	width := row.Size()
	isWhite := false
	rowOffset := 0
	for rowOffset < width {
		isWhite = !row.Get(rowOffset)
		if rightFinderPattern == isWhite {
			break
		}
		rowOffset++
	}

	counterPosition := 0
	patternStart := rowOffset
	for x := rowOffset; x < width; x++ {
		if row.Get(x) != isWhite {
			counters[counterPosition]++
			continue
		}
		if counterPosition == 3 {
			if rssIsFinderPattern(counters) {
				return [2]int{patternStart, x}, nil
			}
			patternStart += counters[0] + counters[1]
			counters[0] = counters[2]
			counters[1] = counters[3]
			counters[2] = 0
			counters[3] = 0
			counterPosition--
		} else {
			counterPosition++
		}
		counters[counterPosition] = 1
		isWhite = !isWhite
	}
	return [2]int{}, barcodecore.ErrNotFound
}

func (r *RSS14Reader) parseFoundFinderPattern(row *bitutil.BitArray, rowNumber int, right bool, startEnd [2]int) (*rssFinderPattern, error) {
	firstIsBlack := row.Get(startEnd[0])
	firstElementStart := startEnd[0] - 1
	for firstElementStart >= 0 && firstIsBlack != row.Get(firstElementStart) {
		firstElementStart--
	}
	firstElementStart++
	firstCounter := startEnd[0] - firstElementStart

	counters := r.finderCounters[:]
	copy(counters[1:], counters[:3])
	counters[0] = firstCounter

	value, err := rssParseFinderValue(counters, rss14Tables.finderPatterns)
	if err != nil {
		return nil, err
	}

	start, end := firstElementStart, startEnd[1]
	if right {
		start = row.Size() - 1 - start
		end = row.Size() - 1 - end
	}
	return &rssFinderPattern{
		value:    value,
		startEnd: [2]int{firstElementStart, startEnd[1]},
		resultPoints: [2]barcodecore.ResultPoint{
			{X: float64(start), Y: float64(rowNumber)},
			{X: float64(end), Y: float64(rowNumber)},
		},
	}, nil
}

// adjustOddEvenCounts nudges the rounded odd/even module counts so their
// combined total and parity match what RSS-14 requires for the character
// kind being decoded, correcting the single module most often mis-rounded
// by sampleCountsToOddEven.
func (r *RSS14Reader) adjustOddEvenCounts(outsideChar bool, numModules int) error {
	oddSum := sumInts(r.oddCounts[:])
	evenSum := sumInts(r.evenCounts[:])

	var incrementOdd, decrementOdd, incrementEven, decrementEven bool
	if outsideChar {
		incrementOdd, decrementOdd = oddSum < 4, oddSum > 12
		incrementEven, decrementEven = evenSum < 4, evenSum > 12
	} else {
		incrementOdd, decrementOdd = oddSum < 5, oddSum > 11
		incrementEven, decrementEven = evenSum < 4, evenSum > 10
	}

	mismatch := oddSum + evenSum - numModules
	oddParityBad := (oddSum&1 == 1) == outsideChar
	evenParityBad := evenSum&1 == 1

	switch mismatch {
	case 1:
		if oddParityBad {
			if evenParityBad {
				return barcodecore.ErrNotFound
			}
			decrementOdd = true
		} else {
			if !evenParityBad {
				return barcodecore.ErrNotFound
			}
			decrementEven = true
		}
	case -1:
		if oddParityBad {
			if evenParityBad {
				return barcodecore.ErrNotFound
			}
			incrementOdd = true
		} else {
			if !evenParityBad {
				return barcodecore.ErrNotFound
			}
			incrementEven = true
		}
	case 0:
		if oddParityBad {
			if !evenParityBad {
				return barcodecore.ErrNotFound
			}
			if oddSum < evenSum {
				incrementOdd, decrementEven = true, true
			} else {
				decrementOdd, incrementEven = true, true
			}
		} else if evenParityBad {
			return barcodecore.ErrNotFound
		}
	default:
		return barcodecore.ErrNotFound
	}

	if incrementOdd && decrementOdd {
		return barcodecore.ErrNotFound
	}
	if incrementEven && decrementEven {
		return barcodecore.ErrNotFound
	}
	switch {
	case incrementOdd:
		rssIncrement(r.oddCounts[:], r.oddError[:])
	case decrementOdd:
		rssDecrement(r.oddCounts[:], r.oddError[:])
	}
	switch {
	case incrementEven:
		rssIncrement(r.evenCounts[:], r.oddError[:])
	case decrementEven:
		rssDecrement(r.evenCounts[:], r.evenError[:])
	}
	return nil
}

func reverseIntSlice(values []int) {
	for i, j := 0, len(values)-1; i < j; i, j = i+1, j-1 {
		values[i], values[j] = values[j], values[i]
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
