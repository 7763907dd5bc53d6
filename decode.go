package barcodecore

// DecodeOptions configures barcode decoding behavior.
type DecodeOptions struct {
	// PossibleFormats limits which formats to look for.
	PossibleFormats []Format

	// CharacterSet specifies the character set to assume for BYTE-mode
	// segments that are not preceded by an ECI designator.
	CharacterSet string

	// AllowedLengths restricts the set of valid barcode lengths for 1D formats.
	AllowedLengths []int

	// AssumeGS1 assumes data is GS1 formatted.
	AssumeGS1 bool

	// AllowedEANExtensions restricts the allowed EAN extension lengths.
	AllowedEANExtensions []int
}
