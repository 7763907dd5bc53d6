package oned

import (
	barcodecore "github.com/barcodekit/core"
	"github.com/barcodekit/core/bitutil"
)

// MultiFormatOneDReader tries each configured format-specific row decoder in
// turn against a single already-detected row.
type MultiFormatOneDReader struct {
	readers         []RowDecoder
	possibleFormats map[barcodecore.Format]bool
}

// NewMultiFormatOneDReader creates a new multi-format reader configured by opts.
func NewMultiFormatOneDReader(opts *barcodecore.DecodeOptions) *MultiFormatOneDReader {
	var readers []RowDecoder
	var possibleFormats map[barcodecore.Format]bool

	if opts != nil && len(opts.PossibleFormats) > 0 {
		possibleFormats = make(map[barcodecore.Format]bool)
		for _, f := range opts.PossibleFormats {
			possibleFormats[f] = true
		}
		// EAN-13 covers UPC-A, so only add UPCAReader if EAN-13 is not requested.
		if possibleFormats[barcodecore.FormatEAN13] {
			readers = append(readers, NewEAN13Reader())
		} else if possibleFormats[barcodecore.FormatUPCA] {
			readers = append(readers, NewUPCAReader())
		}
		if possibleFormats[barcodecore.FormatEAN8] {
			readers = append(readers, NewEAN8Reader())
		}
		if possibleFormats[barcodecore.FormatUPCE] {
			readers = append(readers, NewUPCEReader())
		}
		if possibleFormats[barcodecore.FormatRSS14] {
			readers = append(readers, NewRSS14Reader())
		}
		if possibleFormats[barcodecore.FormatRSSExpanded] {
			readers = append(readers, NewRSSExpandedReader())
		}
	}

	if len(readers) == 0 {
		// Default: EAN-13 covers UPC-A, so no separate UPCAReader needed.
		readers = []RowDecoder{
			NewEAN13Reader(),
			NewEAN8Reader(),
			NewUPCEReader(),
			NewRSS14Reader(),
			NewRSSExpandedReader(),
		}
	}

	return &MultiFormatOneDReader{readers: readers, possibleFormats: possibleFormats}
}

// DecodeRow tries each reader in sequence until one succeeds, converting an
// EAN-13 match starting with '0' to UPC-A when UPC-A was requested.
func (r *MultiFormatOneDReader) DecodeRow(rowNumber int, row *bitutil.BitArray, opts *barcodecore.DecodeOptions) (*barcodecore.Result, error) {
	for _, reader := range r.readers {
		result, err := reader.DecodeRow(rowNumber, row, opts)
		if err == nil {
			return r.maybeConvertEAN13ToUPCA(result), nil
		}
	}
	return nil, barcodecore.ErrNotFound
}

func (r *MultiFormatOneDReader) maybeConvertEAN13ToUPCA(result *barcodecore.Result) *barcodecore.Result {
	if result.Format != barcodecore.FormatEAN13 || len(result.Text) == 0 || result.Text[0] != '0' {
		return result
	}
	if r.possibleFormats == nil || r.possibleFormats[barcodecore.FormatUPCA] {
		upcaResult := barcodecore.NewResult(result.Text[1:], nil, result.Points, barcodecore.FormatUPCA)
		for k, v := range result.Metadata {
			upcaResult.PutMetadata(k, v)
		}
		return upcaResult
	}
	return result
}

// Reset is a no-op for 1D row readers; they carry no state across rows.
func (r *MultiFormatOneDReader) Reset() {}
