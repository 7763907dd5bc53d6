package decoder

import (
	"math"
	"strconv"

	barcodecore "github.com/barcodekit/core"
	"github.com/barcodekit/core/bitutil"
	"github.com/barcodekit/core/internal"
)

const (
	codewordSkewSize = 2
	maxErrors        = 3
	maxECCodewords   = 512
)

var scanErrorCorrection = NewErrorCorrection()

// Decode walks a PDF417 symbol from its four corner points, recovering one
// row-indicator column from each side and then every interior barcode
// column row by row, before assembling and Reed-Solomon correcting the
// resulting codeword matrix.
func Decode(image *bitutil.BitMatrix,
	imageTopLeft, imageBottomLeft, imageTopRight, imageBottomRight *barcodecore.ResultPoint,
	minCodewordWidth, maxCodewordWidth int) (*internal.DecoderResult, error) {

	box, err := NewBoundingBox(image, imageTopLeft, imageBottomLeft, imageTopRight, imageBottomRight)
	if err != nil {
		return nil, err
	}

	session := &decodeSession{image: image, minCodewordWidth: minCodewordWidth, maxCodewordWidth: maxCodewordWidth}
	result, err := session.locateIndicatorColumns(box, imageTopLeft, imageTopRight)
	if err != nil {
		return nil, err
	}

	session.fillInteriorColumns(result)
	return createDecoderResult(result)
}

// decodeSession carries the mutable state threaded through one symbol's
// column-by-column decode: the source image and the codeword-width bounds
// that narrow as wider or narrower codewords are actually observed.
type decodeSession struct {
	image                          *bitutil.BitMatrix
	minCodewordWidth, maxCodewordWidth int
}

// locateIndicatorColumns reads the left and right row-indicator columns and
// merges their barcode metadata, re-reading against a taller bounding box if
// the first pass discovers the symbol extends beyond it.
func (s *decodeSession) locateIndicatorColumns(box *BoundingBox, topLeft, topRight *barcodecore.ResultPoint) (*DetectionResult, error) {
	var left, right *DetectionResultRowIndicatorColumn

	for firstPass := true; ; firstPass = false {
		if topLeft != nil {
			left = s.readRowIndicatorColumn(box, *topLeft, true)
		}
		if topRight != nil {
			right = s.readRowIndicatorColumn(box, *topRight, false)
		}
		merged, err := mergeIndicatorColumns(left, right)
		if err != nil {
			return nil, err
		}
		if merged == nil {
			return nil, barcodecore.ErrNotFound
		}

		resultBox := merged.GetBoundingBox()
		if firstPass && resultBox != nil && (resultBox.MinY() < box.MinY() || resultBox.MaxY() > box.MaxY()) {
			box = resultBox
			continue
		}

		merged.SetBoundingBox(box)
		lastColumn := merged.BarcodeColumnCount() + 1
		if left != nil {
			merged.SetDetectionResultColumn(0, left)
		}
		if right != nil {
			merged.SetDetectionResultColumn(lastColumn, right)
		}
		return merged, nil
	}
}

func (s *decodeSession) readRowIndicatorColumn(box *BoundingBox, startPoint barcodecore.ResultPoint, leftToRight bool) *DetectionResultRowIndicatorColumn {
	column := NewDetectionResultRowIndicatorColumn(box, leftToRight)
	for direction := 0; direction < 2; direction++ {
		increment := 1
		if direction != 0 {
			increment = -1
		}
		startColumn := int(startPoint.X)
		for row := int(startPoint.Y); row <= box.MaxY() && row >= box.MinY(); row += increment {
			codeword := s.detectCodeword(0, s.image.Width(), leftToRight, startColumn, row)
			if codeword == nil {
				continue
			}
			column.SetCodeword(row, codeword)
			if leftToRight {
				startColumn = codeword.StartX()
			} else {
				startColumn = codeword.EndX()
			}
		}
	}
	return column
}

// fillInteriorColumns reads every barcode column not already covered by a
// row-indicator column, scanning outward from whichever side has one.
func (s *decodeSession) fillInteriorColumns(result *DetectionResult) {
	box := result.GetBoundingBox()
	lastColumn := result.BarcodeColumnCount() + 1
	leftToRight := result.GetDetectionResultColumn(0) != nil

	for pass := 1; pass <= lastColumn; pass++ {
		column := pass
		if !leftToRight {
			column = lastColumn - pass
		}
		if result.GetDetectionResultColumn(column) != nil {
			continue
		}
		s.scanColumn(result, box, column)
	}
}

func (s *decodeSession) scanColumn(result *DetectionResult, box *BoundingBox, column int) {
	lastColumn := result.BarcodeColumnCount() + 1
	var detCol DetectionResultColumnI
	if column == 0 || column == lastColumn {
		detCol = NewDetectionResultRowIndicatorColumn(box, column == 0)
	} else {
		detCol = NewDetectionResultColumn(box)
	}
	result.SetDetectionResultColumn(column, detCol)

	leftToRight := result.GetDetectionResultColumn(0) != nil
	startColumn, previousStartColumn := -1, -1
	for row := box.MinY(); row <= box.MaxY(); row++ {
		startColumn = nextStartColumn(result, column, row, leftToRight)
		if startColumn < 0 || startColumn > box.MaxX() {
			if previousStartColumn == -1 {
				continue
			}
			startColumn = previousStartColumn
		}
		codeword := s.detectCodewordBounded(box.MinX(), box.MaxX(), leftToRight, startColumn, row)
		if codeword == nil {
			continue
		}
		detCol.SetCodeword(row, codeword)
		previousStartColumn = startColumn
		if codeword.Width() < s.minCodewordWidth {
			s.minCodewordWidth = codeword.Width()
		}
		if codeword.Width() > s.maxCodewordWidth {
			s.maxCodewordWidth = codeword.Width()
		}
	}
}

func mergeIndicatorColumns(left, right *DetectionResultRowIndicatorColumn) (*DetectionResult, error) {
	if left == nil && right == nil {
		return nil, nil
	}
	metadata := mergeBarcodeMetadata(left, right)
	if metadata == nil {
		return nil, nil
	}
	leftBox, err := adjustBoundingBox(left)
	if err != nil {
		return nil, err
	}
	rightBox, err := adjustBoundingBox(right)
	if err != nil {
		return nil, err
	}
	box, err := MergeBoundingBoxes(leftBox, rightBox)
	if err != nil {
		return nil, err
	}
	return NewDetectionResult(metadata, box), nil
}

func adjustBoundingBox(column *DetectionResultRowIndicatorColumn) (*BoundingBox, error) {
	if column == nil {
		return nil, nil
	}
	rowHeights := column.RowHeights()
	if rowHeights == nil {
		return nil, nil
	}
	tallest := maxOf(rowHeights)

	missingStart := 0
	for _, h := range rowHeights {
		missingStart += tallest - h
		if h > 0 {
			break
		}
	}
	codewords := column.Codewords()
	for row := 0; missingStart > 0 && codewords[row] == nil; row++ {
		missingStart--
	}

	missingEnd := 0
	for row := len(rowHeights) - 1; row >= 0; row-- {
		missingEnd += tallest - rowHeights[row]
		if rowHeights[row] > 0 {
			break
		}
	}
	for row := len(codewords) - 1; missingEnd > 0 && codewords[row] == nil; row-- {
		missingEnd--
	}
	return column.GetBoundingBox().AddMissingRows(missingStart, missingEnd, column.IsLeft())
}

func maxOf(values []int) int {
	best := -1
	for _, v := range values {
		if v > best {
			best = v
		}
	}
	return best
}

// mergeBarcodeMetadata reconciles the metadata read from each side, falling
// back to whichever side actually decoded one, and rejecting a read where
// both sides decoded but disagree on every field.
func mergeBarcodeMetadata(left, right *DetectionResultRowIndicatorColumn) *BarcodeMetadata {
	if left == nil {
		if right == nil {
			return nil
		}
		return right.GetBarcodeMetadata()
	}
	leftMeta := left.GetBarcodeMetadata()
	if leftMeta == nil {
		if right == nil {
			return nil
		}
		return right.GetBarcodeMetadata()
	}
	if right == nil {
		return leftMeta
	}
	rightMeta := right.GetBarcodeMetadata()
	if rightMeta == nil {
		return leftMeta
	}
	if leftMeta.ColumnCount() != rightMeta.ColumnCount() &&
		leftMeta.ErrorCorrectionLevel() != rightMeta.ErrorCorrectionLevel() &&
		leftMeta.RowCount() != rightMeta.RowCount() {
		return nil
	}
	return leftMeta
}

func columnInRange(result *DetectionResult, column int) bool {
	return column >= 0 && column <= result.BarcodeColumnCount()+1
}

// nextStartColumn predicts where the next codeword in this row should
// begin by, in order: the neighboring column's codeword on this row, the
// same column's nearest codeword on another row, the neighbor's nearest
// codeword, or extrapolating from the nearest previously decoded row in an
// outward column. Falls back to the bounding box edge.
func nextStartColumn(result *DetectionResult, column, row int, leftToRight bool) int {
	offset := 1
	if !leftToRight {
		offset = -1
	}

	var codeword *Codeword
	if columnInRange(result, column-offset) {
		codeword = result.GetDetectionResultColumn(column - offset).Codeword(row)
	}
	if codeword != nil {
		if leftToRight {
			return codeword.EndX()
		}
		return codeword.StartX()
	}

	codeword = result.GetDetectionResultColumn(column).CodewordNearby(row)
	if codeword != nil {
		if leftToRight {
			return codeword.StartX()
		}
		return codeword.EndX()
	}

	if columnInRange(result, column-offset) {
		codeword = result.GetDetectionResultColumn(column - offset).CodewordNearby(row)
	}
	if codeword != nil {
		if leftToRight {
			return codeword.EndX()
		}
		return codeword.StartX()
	}

	skipped := 0
	for columnInRange(result, column-offset) {
		column -= offset
		for _, prior := range result.GetDetectionResultColumn(column).Codewords() {
			if prior == nil {
				continue
			}
			width := prior.EndX() - prior.StartX()
			if leftToRight {
				return prior.EndX() + offset*skipped*width
			}
			return prior.StartX() + offset*skipped*width
		}
		skipped++
	}

	if leftToRight {
		return result.GetBoundingBox().MinX()
	}
	return result.GetBoundingBox().MaxX()
}

func (s *decodeSession) detectCodeword(minColumn, maxColumn int, leftToRight bool, startColumn, row int) *Codeword {
	return s.detectCodewordBounded(minColumn, maxColumn, leftToRight, startColumn, row)
}

func (s *decodeSession) detectCodewordBounded(minColumn, maxColumn int, leftToRight bool, startColumn, row int) *Codeword {
	startColumn = s.realignStartColumn(minColumn, maxColumn, leftToRight, startColumn, row)
	moduleBitCount := s.sampleModules(minColumn, maxColumn, leftToRight, startColumn, row)
	if moduleBitCount == nil {
		return nil
	}

	codewordBitCount := sumInts(moduleBitCount)
	var endColumn int
	if leftToRight {
		endColumn = startColumn + codewordBitCount
	} else {
		reverseInts(moduleBitCount)
		endColumn = startColumn
		startColumn = endColumn - codewordBitCount
	}

	if !withinSkewTolerance(codewordBitCount, s.minCodewordWidth, s.maxCodewordWidth) {
		return nil
	}

	decodedValue := GetDecodedValue(moduleBitCount)
	codeword := getCodeword(decodedValue)
	if codeword == -1 {
		return nil
	}
	return NewCodeword(startColumn, endColumn, bucketNumber(decodedValue), codeword)
}

func reverseInts(values []int) {
	for i, j := 0, len(values)-1; i < j; i, j = i+1, j-1 {
		values[i], values[j] = values[j], values[i]
	}
}

// sampleModules walks pixels from startColumn counting run lengths of eight
// alternating black/white modules, the shape of one PDF417 codeword.
func (s *decodeSession) sampleModules(minColumn, maxColumn int, leftToRight bool, startColumn, row int) []int {
	column := startColumn
	counts := make([]int, 8)
	module := 0
	increment := 1
	if !leftToRight {
		increment = -1
	}
	lastPixel := leftToRight
	for ((leftToRight && column < maxColumn) || (!leftToRight && column >= minColumn)) && module < len(counts) {
		if s.image.Get(column, row) == lastPixel {
			counts[module]++
			column += increment
		} else {
			module++
			lastPixel = !lastPixel
		}
	}
	atEdge := (column == maxColumn && leftToRight) || (column == minColumn && !leftToRight)
	if module == len(counts) || (atEdge && module == len(counts)-1) {
		return counts
	}
	return nil
}

func getNumberOfECCodeWords(barcodeECLevel int) int {
	return 2 << uint(barcodeECLevel)
}

// realignStartColumn nudges a predicted start column onto the actual
// black/white transition it should sit on, within codewordSkewSize pixels.
func (s *decodeSession) realignStartColumn(minColumn, maxColumn int, leftToRight bool, startColumn, row int) int {
	corrected := startColumn
	increment := -1
	if !leftToRight {
		increment = 1
	}
	for pass := 0; pass < 2; pass++ {
		for (leftToRight && corrected >= minColumn || !leftToRight && corrected < maxColumn) &&
			leftToRight == s.image.Get(corrected, row) {
			if abs(startColumn-corrected) > codewordSkewSize {
				return startColumn
			}
			corrected += increment
		}
		increment = -increment
		leftToRight = !leftToRight
	}
	return corrected
}

func withinSkewTolerance(codewordSize, minWidth, maxWidth int) bool {
	return minWidth-codewordSkewSize <= codewordSize && codewordSize <= maxWidth+codewordSkewSize
}

// --- codeword matrix assembly ---

func adjustCodewordCount(result *DetectionResult, matrix [][]*BarcodeValue) error {
	metadataCell := matrix[0][1]
	observed := metadataCell.Value()
	calculated := result.BarcodeColumnCount()*result.BarcodeRowCount() - getNumberOfECCodeWords(result.BarcodeECLevel())

	if len(observed) == 0 {
		if calculated < 1 || calculated > maxCodewordsInBarcode {
			return barcodecore.ErrNotFound
		}
		metadataCell.SetValue(calculated)
	} else if observed[0] != calculated && calculated >= 1 && calculated <= maxCodewordsInBarcode {
		metadataCell.SetValue(calculated)
	}
	return nil
}

func createDecoderResult(result *DetectionResult) (*internal.DecoderResult, error) {
	matrix := buildBarcodeMatrix(result)
	if err := adjustCodewordCount(result, matrix); err != nil {
		return nil, err
	}

	codewords := make([]int, result.BarcodeRowCount()*result.BarcodeColumnCount())
	var erasures []int
	var ambiguousIndexes []int
	var ambiguousValues [][]int

	for row := 0; row < result.BarcodeRowCount(); row++ {
		for column := 0; column < result.BarcodeColumnCount(); column++ {
			values := matrix[row][column+1].Value()
			index := row*result.BarcodeColumnCount() + column
			switch len(values) {
			case 0:
				erasures = append(erasures, index)
			case 1:
				codewords[index] = values[0]
			default:
				ambiguousIndexes = append(ambiguousIndexes, index)
				ambiguousValues = append(ambiguousValues, values)
			}
		}
	}
	return resolveAmbiguousCodewords(result.BarcodeECLevel(), codewords, erasures, ambiguousIndexes, ambiguousValues)
}

// resolveAmbiguousCodewords brute-forces every combination of ambiguous
// codeword readings (bounded at 100 tries) until one RS-corrects cleanly.
func resolveAmbiguousCodewords(ecLevel int, codewords, erasures, ambiguousIndexes []int, ambiguousValues [][]int) (*internal.DecoderResult, error) {
	choice := make([]int, len(ambiguousIndexes))

	for tries := 100; tries > 0; tries-- {
		for i := range choice {
			codewords[ambiguousIndexes[i]] = ambiguousValues[i][choice[i]]
		}
		result, err := decodeCodewords(codewords, ecLevel, erasures)
		if err == nil {
			return result, nil
		}
		if err != barcodecore.ErrChecksum {
			return nil, err
		}
		if len(choice) == 0 {
			return nil, barcodecore.ErrChecksum
		}
		if !advanceChoice(choice, ambiguousValues) {
			return nil, barcodecore.ErrChecksum
		}
	}
	return nil, barcodecore.ErrChecksum
}

// advanceChoice increments choice like an odometer over ambiguousValues'
// per-slot option counts; returns false once every combination is spent.
func advanceChoice(choice []int, ambiguousValues [][]int) bool {
	for i := range choice {
		if choice[i] < len(ambiguousValues[i])-1 {
			choice[i]++
			return true
		}
		choice[i] = 0
	}
	return false
}

func buildBarcodeMatrix(result *DetectionResult) [][]*BarcodeValue {
	matrix := make([][]*BarcodeValue, result.BarcodeRowCount())
	for row := range matrix {
		matrix[row] = make([]*BarcodeValue, result.BarcodeColumnCount()+2)
		for column := range matrix[row] {
			matrix[row][column] = NewBarcodeValue()
		}
	}

	column := 0
	for _, detCol := range result.GetDetectionResultColumns() {
		if detCol != nil {
			for _, codeword := range detCol.Codewords() {
				if codeword == nil {
					continue
				}
				rowNumber := codeword.RowNumber()
				if rowNumber >= 0 && rowNumber < len(matrix) {
					matrix[rowNumber][column].SetValue(codeword.Value())
				}
			}
		}
		column++
	}
	return matrix
}

func bucketNumber(codeword int) int {
	return bucketNumberFromRunLengths(runLengthsOf(codeword))
}

// runLengthsOf decomposes a codeword's 8-module bar/space pattern into its
// eight run lengths, scanning from the least-significant bit.
func runLengthsOf(codeword int) []int {
	runs := make([]int, 8)
	previous := 0
	i := len(runs) - 1
	for {
		if codeword&0x1 != previous {
			previous = codeword & 0x1
			i--
			if i < 0 {
				break
			}
		}
		runs[i]++
		codeword >>= 1
	}
	return runs
}

func bucketNumberFromRunLengths(runs []int) int {
	return (runs[0] - runs[2] + runs[4] - runs[6] + 9) % 9
}

func decodeCodewords(codewords []int, ecLevel int, erasures []int) (*internal.DecoderResult, error) {
	if len(codewords) == 0 {
		return nil, barcodecore.ErrFormat
	}

	numECCodewords := 1 << uint(ecLevel+1)
	correctedErrorsCount, err := correctErrors(codewords, erasures, numECCodewords)
	if err != nil {
		return nil, err
	}
	if err := verifyCodewordCount(codewords, numECCodewords); err != nil {
		return nil, err
	}

	decoderResult, err := decodeBitStream(codewords, strconv.Itoa(ecLevel))
	if err != nil {
		return nil, err
	}
	decoderResult.ErrorsCorrected = correctedErrorsCount
	decoderResult.Erasures = len(erasures)
	return decoderResult, nil
}

func correctErrors(codewords, erasures []int, numECCodewords int) (int, error) {
	if erasures != nil && len(erasures) > numECCodewords/2+maxErrors ||
		numECCodewords < 0 || numECCodewords > maxECCodewords {
		return 0, barcodecore.ErrChecksum
	}
	return scanErrorCorrection.Decode(codewords, numECCodewords, erasures)
}

func verifyCodewordCount(codewords []int, numECCodewords int) error {
	if len(codewords) < 4 {
		return barcodecore.ErrFormat
	}
	numberOfCodewords := codewords[0]
	if numberOfCodewords > len(codewords) {
		return barcodecore.ErrFormat
	}
	if numberOfCodewords == 0 {
		if numECCodewords >= len(codewords) {
			return barcodecore.ErrFormat
		}
		codewords[0] = len(codewords) - numECCodewords
	}
	return nil
}

func abs(x int) int {
	return int(math.Abs(float64(x)))
}
