package oned

import (
	"strings"

	barcodecore "github.com/barcodekit/core"
	"github.com/barcodekit/core/bitutil"
)

const (
	upceanMaxAvgVariance        = 0.48
	upceanMaxIndividualVariance = 0.7
)

// Guard patterns shared by every UPC/EAN variant: three bars framing the
// barcode, five in the center, and (for UPC-E) six closing it.
var (
	UPCEANStartEndPattern = []int{1, 1, 1}
	UPCEANMiddlePattern   = []int{1, 1, 1, 1, 1}
	UPCEANEndPattern      = []int{1, 1, 1, 1, 1, 1}
)

// LPatterns holds the "odd"/"L" bar-width encodings for digits 0-9.
var LPatterns = [10][]int{
	{3, 2, 1, 1},
	{2, 2, 2, 1},
	{2, 1, 2, 2},
	{1, 4, 1, 1},
	{1, 1, 3, 2},
	{1, 2, 3, 1},
	{1, 1, 1, 4},
	{1, 3, 1, 2},
	{1, 2, 1, 3},
	{3, 1, 1, 2},
}

// LAndGPatterns is LPatterns followed by its digit-reversed "even"/"G"
// counterpart, built once at init so digit lookup is a single table scan.
var LAndGPatterns = buildLAndGPatterns()

func buildLAndGPatterns() [20][]int {
	var table [20][]int
	for i, widths := range LPatterns {
		table[i] = widths
		table[i+10] = reversedWidths(widths)
	}
	return table
}

func reversedWidths(widths []int) []int {
	reversed := make([]int, len(widths))
	for j, w := range widths {
		reversed[len(widths)-j-1] = w
	}
	return reversed
}

// UPCEANMiddleDecoder decodes the symbology-specific middle section that
// sits between a UPC/EAN symbol's guard patterns.
type UPCEANMiddleDecoder interface {
	DecodeMiddle(row *bitutil.BitArray, startRange [2]int, result *strings.Builder) (int, error)
	BarcodeFormat() barcodecore.Format
}

// DecodeUPCEAN locates the start guard, delegates the middle section to
// decoder, confirms the end guard and trailing quiet zone, and validates
// the checksum before building a Result.
func DecodeUPCEAN(rowNumber int, row *bitutil.BitArray, decoder UPCEANMiddleDecoder, opts *barcodecore.DecodeOptions) (*barcodecore.Result, error) {
	startRange, err := findUPCEANStartGuardPattern(row)
	if err != nil {
		return nil, err
	}

	var digits strings.Builder
	endStart, err := decoder.DecodeMiddle(row, startRange, &digits)
	if err != nil {
		return nil, err
	}

	format := decoder.BarcodeFormat()
	endRange, err := findUPCEANEndGuardPattern(row, endStart, format)
	if err != nil {
		return nil, err
	}
	if !trailingQuietZoneOK(row, endRange) {
		return nil, barcodecore.ErrNotFound
	}

	text := digits.String()
	if len(text) < 8 {
		return nil, barcodecore.ErrFormat
	}
	if !upceanChecksumOK(text, format) {
		return nil, barcodecore.ErrChecksum
	}

	return upceanBuildResult(text, format, rowNumber, startRange, endRange), nil
}

func trailingQuietZoneOK(row *bitutil.BitArray, endRange [2]int) bool {
	end := endRange[1]
	quietEnd := end + (end - endRange[0])
	return quietEnd < row.Size() && row.IsRange(end, quietEnd, false)
}

func upceanChecksumOK(text string, format barcodecore.Format) bool {
	checksumText := text
	if format == barcodecore.FormatUPCE {
		checksumText = ConvertUPCEtoUPCA(text)
	}
	return CheckStandardUPCEANChecksum(checksumText)
}

func upceanBuildResult(text string, format barcodecore.Format, rowNumber int, startRange, endRange [2]int) *barcodecore.Result {
	left := float64(startRange[1]+startRange[0]) / 2.0
	right := float64(endRange[1]+endRange[0]) / 2.0
	result := barcodecore.NewResult(
		text, nil,
		[]barcodecore.ResultPoint{
			{X: left, Y: float64(rowNumber)},
			{X: right, Y: float64(rowNumber)},
		},
		format,
	)

	symbologyID := "0"
	if format == barcodecore.FormatEAN8 {
		symbologyID = "4"
	}
	result.PutMetadata(barcodecore.MetadataSymbologyIdentifier, "]E"+symbologyID)
	return result
}

// CheckStandardUPCEANChecksum reports whether the last digit of s is the
// correct UPC/EAN check digit for the digits preceding it.
func CheckStandardUPCEANChecksum(s string) bool {
	if len(s) == 0 {
		return false
	}
	want := int(s[len(s)-1] - '0')
	return GetStandardUPCEANChecksum(s[:len(s)-1]) == want
}

// GetStandardUPCEANChecksum computes the UPC/EAN check digit for s, a
// string of digits not including the check digit itself.
func GetStandardUPCEANChecksum(s string) int {
	oddSum, err := upceanDigitSum(s, len(s)-1)
	if err != nil {
		return -1
	}
	evenSum, err := upceanDigitSum(s, len(s)-2)
	if err != nil {
		return -1
	}
	return (1000 - (3*oddSum + evenSum)) % 10
}

// upceanDigitSum sums every other digit of s starting at index start and
// walking toward the front, failing if any visited byte isn't a digit.
func upceanDigitSum(s string, start int) (int, error) {
	sum := 0
	for i := start; i >= 0; i -= 2 {
		d := int(s[i] - '0')
		if d < 0 || d > 9 {
			return 0, barcodecore.ErrFormat
		}
		sum += d
	}
	return sum, nil
}

func findUPCEANStartGuardPattern(row *bitutil.BitArray) ([2]int, error) {
	counters := make([]int, len(UPCEANStartEndPattern))
	nextStart := 0
	for {
		for i := range counters {
			counters[i] = 0
		}
		startRange, err := findUPCEANGuardPattern(row, nextStart, false, UPCEANStartEndPattern, counters)
		if err != nil {
			return [2]int{}, err
		}
		start := startRange[0]
		nextStart = startRange[1]
		quietStart := start - (nextStart - start)
		if quietStart >= 0 && row.IsRange(quietStart, start, false) {
			return startRange, nil
		}
	}
}

func findUPCEANEndGuardPattern(row *bitutil.BitArray, endStart int, format barcodecore.Format) ([2]int, error) {
	if format == barcodecore.FormatUPCE {
		return findUPCEANGuardPattern(row, endStart, true, UPCEANEndPattern, make([]int, len(UPCEANEndPattern)))
	}
	return findUPCEANGuardPattern(row, endStart, false, UPCEANStartEndPattern, make([]int, len(UPCEANStartEndPattern)))
}

// findUPCEANGuardPattern slides a run-length window across row looking for
// one whose bar widths match pattern within tolerance, advancing by
// dropping the oldest run pair on a mismatch rather than rescanning.
func findUPCEANGuardPattern(row *bitutil.BitArray, rowOffset int, whiteFirst bool, pattern, counters []int) ([2]int, error) {
	if whiteFirst {
		rowOffset = row.GetNextUnset(rowOffset)
	} else {
		rowOffset = row.GetNextSet(rowOffset)
	}

	width := row.Size()
	patternLength := len(pattern)
	counterPosition := 0
	patternStart := rowOffset
	isWhite := whiteFirst

	for x := rowOffset; x < width; x++ {
		if row.Get(x) != isWhite {
			counters[counterPosition]++
			continue
		}
		if counterPosition == patternLength-1 {
			if PatternMatchVariance(counters, pattern, upceanMaxIndividualVariance) < upceanMaxAvgVariance {
				return [2]int{patternStart, x}, nil
			}
			patternStart += counters[0] + counters[1]
			copy(counters, counters[2:counterPosition+1])
			counters[counterPosition-1] = 0
			counters[counterPosition] = 0
			counterPosition--
		} else {
			counterPosition++
		}
		counters[counterPosition] = 1
		isWhite = !isWhite
	}
	return [2]int{}, barcodecore.ErrNotFound
}

// FindUPCEANMiddleGuardPattern locates the five-element center guard that
// separates a UPC-A/EAN-13 symbol's two digit groups.
func FindUPCEANMiddleGuardPattern(row *bitutil.BitArray, rowOffset int) ([2]int, error) {
	return findUPCEANGuardPattern(row, rowOffset, true, UPCEANMiddlePattern, make([]int, len(UPCEANMiddlePattern)))
}

// DecodeUPCEANDigit reads one digit's worth of bar/space runs starting at
// rowOffset and returns the index into patterns with the closest match.
func DecodeUPCEANDigit(row *bitutil.BitArray, counters []int, rowOffset int, patterns [][]int) (int, error) {
	if err := RecordPattern(row, rowOffset, counters); err != nil {
		return 0, err
	}
	bestVariance := upceanMaxAvgVariance
	bestMatch := -1
	for i, pattern := range patterns {
		if variance := PatternMatchVariance(counters, pattern, upceanMaxIndividualVariance); variance < bestVariance {
			bestVariance = variance
			bestMatch = i
		}
	}
	if bestMatch >= 0 {
		return bestMatch, nil
	}
	return 0, barcodecore.ErrNotFound
}
