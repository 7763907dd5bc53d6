// Package qrcode provides QR code reading and writing.
package qrcode

import (
	"fmt"

	barcodecore "github.com/barcodekit/core"
	"github.com/barcodekit/core/bitutil"
	"github.com/barcodekit/core/qrcode/decoder"
)

// Reader decodes QR codes from a module matrix already aligned to module
// coordinates by an external locator/detector.
type Reader struct {
	dec *decoder.Decoder
}

// NewReader creates a new QR code Reader.
func NewReader() *Reader {
	return &Reader{
		dec: decoder.NewDecoder(),
	}
}

// Decode reads the QR symbol encoded in bits. It is the SymbolDisassembler
// entry point: format/version recovery, unmasking, de-interleaving,
// Reed-Solomon correction, and bitstream decoding all happen inside dec.
func (r *Reader) Decode(bits *bitutil.BitMatrix, opts *barcodecore.DecodeOptions) (*barcodecore.Result, error) {
	if opts == nil {
		opts = &barcodecore.DecodeOptions{}
	}

	dr, err := r.dec.Decode(bits, opts.CharacterSet)
	if err != nil {
		return nil, err
	}

	result := barcodecore.NewResult(dr.Text, dr.RawBytes, nil, barcodecore.FormatQRCode)
	populateMetadata(result, dr.ByteSegments, dr.ECLevel,
		dr.HasStructuredAppend(), dr.StructuredAppendSequenceNumber,
		dr.StructuredAppendParity, dr.ErrorsCorrected, dr.SymbologyModifier)
	return result, nil
}

// Reset resets internal state.
func (r *Reader) Reset() {
	// nothing to reset
}

func populateMetadata(result *barcodecore.Result, byteSegments [][]byte, ecLevel string,
	hasStructuredAppend bool, saSequence, saParity, errorsCorrected, symbologyModifier int) {
	if byteSegments != nil {
		result.PutMetadata(barcodecore.MetadataByteSegments, byteSegments)
	}
	if ecLevel != "" {
		result.PutMetadata(barcodecore.MetadataErrorCorrectionLevel, ecLevel)
	}
	if hasStructuredAppend {
		result.PutMetadata(barcodecore.MetadataStructuredAppendSequence, saSequence)
		result.PutMetadata(barcodecore.MetadataStructuredAppendParity, saParity)
	}
	result.PutMetadata(barcodecore.MetadataErrorsCorrected, errorsCorrected)
	result.PutMetadata(barcodecore.MetadataSymbologyIdentifier, fmt.Sprintf("]Q%d", symbologyModifier))
}
