// Package barcodecore is the encode/decode core of a multi-format 2D/1D
// barcode library. It consumes a rectangular monochrome module grid
// (bitutil.BitMatrix) already aligned to module coordinates for decoding,
// and produces one for encoding. Image binarization, locator/detector
// geometry, and rendering are external collaborators and are not part of
// this package.
package barcodecore

import "time"

// Format represents a barcode symbology.
type Format int

const (
	FormatQRCode Format = iota
	FormatMicroQRCode
	FormatRMQRCode
	FormatPDF417
	FormatAztec
	FormatMaxiCode
	FormatEAN13
	FormatEAN8
	FormatUPCA
	FormatUPCE
	FormatRSS14
	FormatRSSExpanded
)

// String returns the name of the barcode format.
func (f Format) String() string {
	switch f {
	case FormatQRCode:
		return "QR_CODE"
	case FormatMicroQRCode:
		return "MICRO_QR_CODE"
	case FormatRMQRCode:
		return "RMQR_CODE"
	case FormatPDF417:
		return "PDF_417"
	case FormatAztec:
		return "AZTEC"
	case FormatMaxiCode:
		return "MAXICODE"
	case FormatEAN13:
		return "EAN_13"
	case FormatEAN8:
		return "EAN_8"
	case FormatUPCA:
		return "UPC_A"
	case FormatUPCE:
		return "UPC_E"
	case FormatRSS14:
		return "RSS_14"
	case FormatRSSExpanded:
		return "RSS_EXPANDED"
	default:
		return "UNKNOWN"
	}
}

// ResultMetadataKey identifies a type of metadata about a barcode result.
type ResultMetadataKey int

const (
	MetadataOther ResultMetadataKey = iota
	MetadataByteSegments
	MetadataErrorCorrectionLevel
	MetadataErrorsCorrected
	MetadataErasuresCorrected
	MetadataIssueNumber
	MetadataSuggestedPrice
	MetadataPossibleCountry
	MetadataUPCEANExtension
	MetadataPDF417ExtraMetadata
	MetadataStructuredAppendSequence
	MetadataStructuredAppendParity
	MetadataSymbologyIdentifier
	MetadataAIFlag
	MetadataIsMirrored
)

// ResultPoint marks where along a decoded row or symbol a pattern (a finder
// pattern, a guard pattern) was located. For 1D formats this is a row offset
// reported by the row decoder itself, not image pixel geometry.
type ResultPoint struct {
	X, Y float64
}

// Result encapsulates the result of decoding a barcode. It is the rendered
// form of a Content: UTF-8 text plus the raw decoded bytes and metadata
// recovered along the way (error correction level, structured-append
// segmentation, symbology identifier, and so on).
type Result struct {
	Text      string
	RawBytes  []byte
	NumBits   int
	Points    []ResultPoint
	Format    Format
	Metadata  map[ResultMetadataKey]interface{}
	Timestamp time.Time
}

// NewResult creates a new Result with the given text, format, and points.
func NewResult(text string, rawBytes []byte, points []ResultPoint, format Format) *Result {
	numBits := 0
	if rawBytes != nil {
		numBits = 8 * len(rawBytes)
	}
	return &Result{
		Text:      text,
		RawBytes:  rawBytes,
		NumBits:   numBits,
		Points:    points,
		Format:    format,
		Metadata:  make(map[ResultMetadataKey]interface{}),
		Timestamp: time.Now(),
	}
}

// PutMetadata adds a metadata key/value pair.
func (r *Result) PutMetadata(key ResultMetadataKey, value interface{}) {
	r.Metadata[key] = value
}
