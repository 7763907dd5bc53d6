// Package aztec provides Aztec barcode reading and writing.
package aztec

import (
	barcodecore "github.com/barcodekit/core"
	"github.com/barcodekit/core/aztec/decoder"
	"github.com/barcodekit/core/bitutil"
)

// Symbol describes an Aztec module matrix already aligned to module
// coordinates, together with the structural parameters (compact mode,
// layer count, data-block count) recovered from the mode message ring by
// the external locator. The core trusts these dimensions per the BitMatrix
// contract.
type Symbol struct {
	Bits         *bitutil.BitMatrix
	Compact      bool
	NbLayers     int
	NbDataBlocks int
}

// Reader decodes Aztec barcodes from a Symbol.
type Reader struct{}

// NewReader creates a new Aztec Reader.
func NewReader() *Reader {
	return &Reader{}
}

// Decode reads the Aztec symbol: extracts bits along the concentric data
// layers, Reed-Solomon corrects each codeword block, and decodes the
// resulting bitstream through the 5-mode high level table.
func (r *Reader) Decode(sym *Symbol) (*barcodecore.Result, error) {
	ddata := &decoder.AztecDetectorResult{
		Bits:         sym.Bits,
		Compact:      sym.Compact,
		NbDataBlocks: sym.NbDataBlocks,
		NbLayers:     sym.NbLayers,
	}

	dr, err := decoder.Decode(ddata)
	if err != nil {
		return nil, err
	}

	result := barcodecore.NewResult(dr.Text, dr.RawBytes, nil, barcodecore.FormatAztec)
	result.PutMetadata(barcodecore.MetadataSymbologyIdentifier, "]z0")
	return result, nil
}

// Reset resets internal state.
func (r *Reader) Reset() {}
