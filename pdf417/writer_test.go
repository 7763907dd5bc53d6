package pdf417

import (
	"testing"

	barcodecore "github.com/barcodekit/core"
)

func TestPDF417WriterBasic(t *testing.T) {
	writer := NewPDF417Writer()
	matrix, err := writer.Encode("Hello, World!", barcodecore.FormatPDF417, 400, 200, nil)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	if matrix.Width() == 0 || matrix.Height() == 0 {
		t.Fatal("expected non-empty matrix")
	}
	t.Logf("matrix size: %dx%d", matrix.Width(), matrix.Height())
}

func TestPDF417WriterNumeric(t *testing.T) {
	writer := NewPDF417Writer()
	matrix, err := writer.Encode("1234567890123456", barcodecore.FormatPDF417, 400, 200, nil)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	if matrix.Width() == 0 || matrix.Height() == 0 {
		t.Fatal("expected non-empty matrix")
	}
}

func TestPDF417WriterWrongFormat(t *testing.T) {
	writer := NewPDF417Writer()
	_, err := writer.Encode("test", barcodecore.FormatQRCode, 400, 200, nil)
	if err == nil {
		t.Error("expected error for wrong format")
	}
}

func TestPDF417WriterWithOptions(t *testing.T) {
	writer := NewPDF417Writer()
	margin := 10
	opts := &barcodecore.EncodeOptions{
		Margin:          &margin,
		ErrorCorrection: "4",
	}
	matrix, err := writer.Encode("Test with options", barcodecore.FormatPDF417, 400, 200, opts)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	if matrix.Width() == 0 || matrix.Height() == 0 {
		t.Fatal("expected non-empty matrix")
	}
}
