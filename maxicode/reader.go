// Package maxicode provides MaxiCode barcode reading.
package maxicode

import (
	barcodecore "github.com/barcodekit/core"
	"github.com/barcodekit/core/bitutil"
	"github.com/barcodekit/core/maxicode/decoder"
)

// Reader decodes MaxiCode symbols.
type Reader struct{}

// NewReader creates a new MaxiCode Reader.
func NewReader() *Reader {
	return &Reader{}
}

// Decode reads the fixed 30x33 module grid: the codeword arrangement is
// applied, the primary and interleaved even/odd secondary RS blocks are
// corrected, and the resulting codewords are decoded per the symbol's mode.
func (r *Reader) Decode(bits *bitutil.BitMatrix) (*barcodecore.Result, error) {
	dr, err := decoder.Decode(bits)
	if err != nil {
		return nil, err
	}

	result := barcodecore.NewResult(dr.Text, dr.RawBytes, nil, barcodecore.FormatMaxiCode)
	result.PutMetadata(barcodecore.MetadataErrorsCorrected, dr.ErrorsCorrected)
	if dr.ECLevel != "" {
		result.PutMetadata(barcodecore.MetadataErrorCorrectionLevel, dr.ECLevel)
	}
	result.PutMetadata(barcodecore.MetadataSymbologyIdentifier, "]U0")
	return result, nil
}

// Reset resets internal state.
func (r *Reader) Reset() {}
