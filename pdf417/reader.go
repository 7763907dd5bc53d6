package pdf417

import (
	"fmt"
	"math"

	barcodecore "github.com/barcodekit/core"
	"github.com/barcodekit/core/bitutil"
	"github.com/barcodekit/core/pdf417/decoder"
)

// Symbol describes a PDF417 module matrix already aligned to module
// coordinates, plus the four row-indicator corner points an external
// locator found (PDF417 rows may be individually skewed, so the scanning
// decoder still walks from these corners rather than assuming a rectangle).
type Symbol struct {
	Bits                                               *bitutil.BitMatrix
	TopLeft, BottomLeft, TopRight, BottomRight         barcodecore.ResultPoint
	MinCodewordWidth, MaxCodewordWidth                 int
}

// PDF417Reader decodes a PDF417 symbol.
type PDF417Reader struct{}

// NewPDF417Reader creates a new PDF417 reader.
func NewPDF417Reader() *PDF417Reader {
	return &PDF417Reader{}
}

// Decode reads the PDF417 codewords via the scanning decoder, de-interleaves
// error-correction blocks, RS-corrects them, and decodes the resulting
// codeword stream through the multi-mode bitstream parser.
func (r *PDF417Reader) Decode(sym *Symbol) (*barcodecore.Result, error) {
	dr, err := decoder.Decode(
		sym.Bits,
		&sym.TopLeft, &sym.BottomLeft, &sym.TopRight, &sym.BottomRight,
		sym.MinCodewordWidth, sym.MaxCodewordWidth,
	)
	if err != nil {
		return nil, err
	}

	result := barcodecore.NewResult(dr.Text, dr.RawBytes, nil, barcodecore.FormatPDF417)
	result.PutMetadata(barcodecore.MetadataErrorCorrectionLevel, dr.ECLevel)
	result.PutMetadata(barcodecore.MetadataErrorsCorrected, dr.ErrorsCorrected)
	result.PutMetadata(barcodecore.MetadataErasuresCorrected, dr.Erasures)
	if dr.Other != nil {
		result.PutMetadata(barcodecore.MetadataPDF417ExtraMetadata, dr.Other)
	}
	result.PutMetadata(barcodecore.MetadataSymbologyIdentifier, fmt.Sprintf("]L%d", dr.SymbologyModifier))
	return result, nil
}

// Reset resets internal state.
func (r *PDF417Reader) Reset() {}

// MinCodewordWidth estimates the narrowest codeword span between two
// vertically corresponding row-indicator corners, used to bound the
// scanning decoder's search.
func MinCodewordWidth(a, b barcodecore.ResultPoint) int {
	return int(math.Abs(a.X - b.X))
}

// MaxCodewordWidth estimates the widest codeword span as the horizontal
// distance between the two corners, rounded up to an odd value.
func MaxCodewordWidth(a, b barcodecore.ResultPoint) int {
	return int(math.Abs(a.X-b.X)) | 1
}
