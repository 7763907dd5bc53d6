package encoder

import (
	"fmt"

	"github.com/barcodekit/core/bitutil"
	"github.com/barcodekit/core/reedsolomon"
)

// AztecCode holds the result of encoding data into an Aztec barcode.
type AztecCode struct {
	Matrix    *bitutil.BitMatrix
	Compact   bool
	Size      int
	Layers    int
	CodeWords int
}

// codewordBits maps a layer count to its data-codeword bit width. Index 0 is
// the mode message's own 4-bit codeword; indices 1-32 cover data layers.
var codewordBits = [33]int{
	4, 6, 6, 8, 8, 8, 8, 8, 8, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10,
	12, 12, 12, 12, 12, 12, 12, 12, 12, 12,
}

func galoisFieldFor(bits int) *reedsolomon.GenericGF {
	switch bits {
	case 4:
		return reedsolomon.AztecParam
	case 6:
		return reedsolomon.AztecData6
	case 8:
		return reedsolomon.AztecData8
	case 10:
		return reedsolomon.AztecData10
	case 12:
		return reedsolomon.AztecData12
	default:
		panic(fmt.Sprintf("aztec: unsupported word size %d", bits))
	}
}

// layoutChoice pins down everything the symbol geometry depends on: whether
// the symbol is compact, how many data layers it has, and the codeword width
// and bit stream those layers settled on.
type layoutChoice struct {
	compact       bool
	layers        int
	wordSize      int
	totalBitsRing int
	stuffed       *bitutil.BitArray
}

func ringCapacity(layers int, compact bool) int {
	base := 112
	if compact {
		base = 88
	}
	return (base + 16*layers) * layers
}

// chooseLayout picks the smallest symbol (or validates a caller-forced one)
// that fits the given bit stream plus its Reed-Solomon check bits.
func chooseLayout(bits *bitutil.BitArray, eccBits, forcedLayers int) (layoutChoice, error) {
	if forcedLayers != 0 {
		return chooseForcedLayout(bits, eccBits, forcedLayers)
	}
	return chooseSmallestLayout(bits, eccBits)
}

func chooseForcedLayout(bits *bitutil.BitArray, eccBits, forcedLayers int) (layoutChoice, error) {
	compact := forcedLayers < 0
	layers := forcedLayers
	if compact {
		layers = -layers
	}
	maxLayers := 32
	if compact {
		maxLayers = 4
	}
	if layers < 1 || layers > maxLayers {
		return layoutChoice{}, fmt.Errorf("aztec: illegal layer value %d", forcedLayers)
	}

	ringBits := ringCapacity(layers, compact)
	wordSize := codewordBits[layers]
	usableBits := ringBits - (ringBits % wordSize)
	stuffed := stuffBits(bits, wordSize)

	if stuffed.Size()+eccBits > usableBits {
		return layoutChoice{}, fmt.Errorf("aztec: data too large for user specified layer")
	}
	if compact && stuffed.Size() > wordSize*64 {
		return layoutChoice{}, fmt.Errorf("aztec: data too large for user specified layer")
	}
	return layoutChoice{compact, layers, wordSize, ringBits, stuffed}, nil
}

// chooseSmallestLayout walks Compact1-4 then Normal4-32 in size order;
// Normal1-3 are skipped since Compact(i+1) is the same footprint with more
// payload capacity.
func chooseSmallestLayout(bits *bitutil.BitArray, eccBits int) (layoutChoice, error) {
	totalSizeBits := bits.Size() + eccBits
	var wordSize int
	var stuffed *bitutil.BitArray

	for i := 0; i <= 32; i++ {
		compact := i <= 3
		layers := i
		if compact {
			layers = i + 1
		}
		ringBits := ringCapacity(layers, compact)
		if totalSizeBits > ringBits {
			continue
		}
		if stuffed == nil || wordSize != codewordBits[layers] {
			wordSize = codewordBits[layers]
			stuffed = stuffBits(bits, wordSize)
		}
		if compact && stuffed.Size() > wordSize*64 {
			continue
		}
		usableBits := ringBits - (ringBits % wordSize)
		if stuffed.Size()+eccBits <= usableBits {
			return layoutChoice{compact, layers, wordSize, ringBits, stuffed}, nil
		}
	}
	return layoutChoice{}, fmt.Errorf("aztec: data too large for any Aztec symbol")
}

// Encode encodes the given data into an Aztec barcode symbol.
func Encode(data []byte, minECCPercent int, userSpecifiedLayers int) (*AztecCode, error) {
	bits, err := highLevelEncode(data)
	if err != nil {
		return nil, err
	}

	eccBits := bits.Size()*minECCPercent/100 + 11
	layout, err := chooseLayout(bits, eccBits, userSpecifiedLayers)
	if err != nil {
		return nil, err
	}

	messageBits := generateCheckWords(layout.stuffed, layout.totalBitsRing, layout.wordSize)
	messageSizeInWords := layout.stuffed.Size() / layout.wordSize
	modeMessage := generateModeMessage(layout.compact, layout.layers, messageSizeInWords)

	canvas := newSymbolCanvas(layout.compact, layout.layers)
	canvas.drawData(messageBits)
	canvas.drawModeMessage(modeMessage)
	canvas.drawFinder()

	return &AztecCode{
		Matrix:    canvas.matrix,
		Compact:   layout.compact,
		Size:      canvas.matrixSize,
		Layers:    layout.layers,
		CodeWords: messageSizeInWords,
	}, nil
}

// stuffBits inserts a padding bit into any word whose non-LSB bits would
// otherwise come out all-0 or all-1, per the Aztec bit-stuffing rule.
func stuffBits(bits *bitutil.BitArray, wordSize int) *bitutil.BitArray {
	out := bitutil.NewBitArray(0)
	n := bits.Size()
	highMask := (1 << uint(wordSize)) - 2

	for i := 0; i < n; i += wordSize {
		word := 0
		for j := 0; j < wordSize; j++ {
			if i+j >= n || bits.Get(i+j) {
				word |= 1 << uint(wordSize-1-j)
			}
		}
		switch word & highMask {
		case highMask:
			out.AppendBits(uint32(word&highMask), wordSize)
			i--
		case 0:
			out.AppendBits(uint32(word|1), wordSize)
			i--
		default:
			out.AppendBits(uint32(word), wordSize)
		}
	}
	return out
}

// generateCheckWords Reed-Solomon encodes the stuffed bits into a codeword
// stream exactly totalBits wide, left-padded to a whole number of words.
func generateCheckWords(stuffedBits *bitutil.BitArray, totalBits, wordSize int) *bitutil.BitArray {
	dataWords := stuffedBits.Size() / wordSize
	totalWords := totalBits / wordSize

	words := packWords(stuffedBits, wordSize, totalWords)
	reedsolomon.NewEncoder(galoisFieldFor(wordSize)).Encode(words, totalWords-dataWords)

	out := bitutil.NewBitArray(0)
	out.AppendBits(0, totalBits%wordSize)
	for _, w := range words {
		out.AppendBits(uint32(w), wordSize)
	}
	return out
}

func packWords(stuffedBits *bitutil.BitArray, wordSize, totalWords int) []int {
	words := make([]int, totalWords)
	count := stuffedBits.Size() / wordSize
	for i := 0; i < count; i++ {
		value := 0
		for j := 0; j < wordSize; j++ {
			if stuffedBits.Get(i*wordSize + j) {
				value |= 1 << uint(wordSize-1-j)
			}
		}
		words[i] = value
	}
	return words
}

func generateModeMessage(compact bool, layers, messageSizeInWords int) *bitutil.BitArray {
	mode := bitutil.NewBitArray(0)
	if compact {
		mode.AppendBits(uint32(layers-1), 2)
		mode.AppendBits(uint32(messageSizeInWords-1), 6)
		return generateCheckWords(mode, 28, 4)
	}
	mode.AppendBits(uint32(layers-1), 5)
	mode.AppendBits(uint32(messageSizeInWords-1), 11)
	return generateCheckWords(mode, 40, 4)
}

// symbolCanvas owns the module matrix for one Aztec symbol plus the
// concentric-ring alignment map that translates (layer, column) addresses
// into matrix coordinates.
type symbolCanvas struct {
	matrix       *bitutil.BitMatrix
	matrixSize   int
	baseSize     int
	alignmentMap []int
	compact      bool
	layers       int
}

func newSymbolCanvas(compact bool, layers int) *symbolCanvas {
	baseSize := layers*4 + 11
	if !compact {
		baseSize = layers*4 + 14
	}
	alignmentMap := make([]int, baseSize)

	matrixSize := baseSize
	if compact {
		for i := range alignmentMap {
			alignmentMap[i] = i
		}
	} else {
		matrixSize = baseSize + 1 + 2*((baseSize/2-1)/15)
		origCenter := baseSize / 2
		center := matrixSize / 2
		for i := 0; i < origCenter; i++ {
			newOffset := i + i/15
			alignmentMap[origCenter-i-1] = center - newOffset - 1
			alignmentMap[origCenter+i] = center + newOffset + 1
		}
	}

	return &symbolCanvas{
		matrix:       bitutil.NewBitMatrix(matrixSize),
		matrixSize:   matrixSize,
		baseSize:     baseSize,
		alignmentMap: alignmentMap,
		compact:      compact,
		layers:       layers,
	}
}

// drawData walks each concentric ring from the outside in, placing the two
// bits per cell along all four edges of that ring.
func (c *symbolCanvas) drawData(messageBits *bitutil.BitArray) {
	rowOffset := 0
	for layer := 0; layer < c.layers; layer++ {
		rowSize := (c.layers-layer)*4 + 9
		if !c.compact {
			rowSize = (c.layers-layer)*4 + 12
		}
		c.drawRing(messageBits, layer, rowSize, rowOffset)
		rowOffset += rowSize * 8
	}
}

func (c *symbolCanvas) drawRing(messageBits *bitutil.BitArray, layer, rowSize, rowOffset int) {
	m := c.alignmentMap
	last := c.baseSize - 1
	for col := 0; col < rowSize; col++ {
		bitCol := col * 2
		for k := 0; k < 2; k++ {
			if messageBits.Get(rowOffset + bitCol + k) {
				c.matrix.Set(m[layer*2+k], m[layer*2+col])
			}
			if messageBits.Get(rowOffset + rowSize*2 + bitCol + k) {
				c.matrix.Set(m[layer*2+col], m[last-layer*2-k])
			}
			if messageBits.Get(rowOffset + rowSize*4 + bitCol + k) {
				c.matrix.Set(m[last-layer*2-k], m[last-layer*2-col])
			}
			if messageBits.Get(rowOffset + rowSize*6 + bitCol + k) {
				c.matrix.Set(m[last-layer*2-col], m[layer*2+k])
			}
		}
	}
}

func (c *symbolCanvas) drawModeMessage(modeMessage *bitutil.BitArray) {
	center := c.matrixSize / 2
	if c.compact {
		for i := 0; i < 7; i++ {
			offset := center - 3 + i
			if modeMessage.Get(i) {
				c.matrix.Set(offset, center-5)
			}
			if modeMessage.Get(i + 7) {
				c.matrix.Set(center+5, offset)
			}
			if modeMessage.Get(20 - i) {
				c.matrix.Set(offset, center+5)
			}
			if modeMessage.Get(27 - i) {
				c.matrix.Set(center-5, offset)
			}
		}
		return
	}
	for i := 0; i < 10; i++ {
		offset := center - 5 + i + i/5
		if modeMessage.Get(i) {
			c.matrix.Set(offset, center-7)
		}
		if modeMessage.Get(i + 10) {
			c.matrix.Set(center+7, offset)
		}
		if modeMessage.Get(29 - i) {
			c.matrix.Set(offset, center+7)
		}
		if modeMessage.Get(39 - i) {
			c.matrix.Set(center-7, offset)
		}
	}
}

// drawFinder draws the bullseye rings and, for full-size symbols, the
// reference-grid alignment ticks every 16th column/row.
func (c *symbolCanvas) drawFinder() {
	center := c.matrixSize / 2
	if c.compact {
		drawBullsEyeRings(c.matrix, center, 5)
		return
	}
	drawBullsEyeRings(c.matrix, center, 7)
	for i, j := 0, 0; i < c.baseSize/2-1; i, j = i+15, j+16 {
		for k := center & 1; k < c.matrixSize; k += 2 {
			c.matrix.Set(center-j, k)
			c.matrix.Set(center+j, k)
			c.matrix.Set(k, center-j)
			c.matrix.Set(k, center+j)
		}
	}
}

func drawBullsEyeRings(matrix *bitutil.BitMatrix, center, size int) {
	for i := 0; i < size; i += 2 {
		for j := center - i; j <= center+i; j++ {
			matrix.Set(j, center-i)
			matrix.Set(j, center+i)
			matrix.Set(center-i, j)
			matrix.Set(center+i, j)
		}
	}
	matrix.Set(center-size, center-size)
	matrix.Set(center-size+1, center-size)
	matrix.Set(center-size, center-size+1)
	matrix.Set(center+size, center-size)
	matrix.Set(center+size, center-size+1)
	matrix.Set(center+size, center+size-1)
}
