package decoder

import (
	barcodecore "github.com/barcodekit/core"
	"github.com/barcodekit/core/bitutil"
	"github.com/barcodekit/core/internal"
	"github.com/barcodekit/core/reedsolomon"
)

// Decoder turns a module-aligned BitMatrix into a QR SymbolDisassembler
// result: read format/version, de-interleave and Reed-Solomon correct the
// codeword blocks, then hand the recovered bytes to the bitstream parser.
type Decoder struct {
	rs *reedsolomon.Decoder
}

// NewDecoder builds a Decoder with the QR Galois field.
func NewDecoder() *Decoder {
	return &Decoder{rs: reedsolomon.NewDecoder(reedsolomon.QRCodeField256)}
}

// Decode reads bits as a QR symbol, first right-side-up and, if that fails,
// mirrored. Per spec, a mirrored read is only attempted when its version and
// format information both parse cleanly, so a genuinely unreadable symbol
// surfaces the original (non-mirrored) error rather than a mirrored one.
func (d *Decoder) Decode(bits *bitutil.BitMatrix, characterSet string) (*internal.DecoderResult, error) {
	parser, err := NewBitMatrixParser(bits)
	if err != nil {
		return nil, err
	}

	if result, err := d.decodeParser(parser, characterSet); err == nil {
		return result, nil
	} else if mirrored, mirrErr := d.tryMirrored(parser, characterSet); mirrErr == nil {
		return mirrored, nil
	} else {
		return nil, err
	}
}

func (d *Decoder) tryMirrored(parser *BitMatrixParser, characterSet string) (*internal.DecoderResult, error) {
	parser.Remask()
	parser.SetMirror(true)
	if _, err := parser.ReadVersion(); err != nil {
		return nil, err
	}
	if _, err := parser.ReadFormatInformation(); err != nil {
		return nil, err
	}
	parser.Mirror()
	return d.decodeParser(parser, characterSet)
}

func (d *Decoder) decodeParser(parser *BitMatrixParser, characterSet string) (*internal.DecoderResult, error) {
	version, err := parser.ReadVersion()
	if err != nil {
		return nil, err
	}
	format, err := parser.ReadFormatInformation()
	if err != nil {
		return nil, err
	}
	codewords, err := parser.ReadCodewords()
	if err != nil {
		return nil, err
	}

	payload, errorsCorrected, err := d.reconstructPayload(GetDataBlocks(codewords, version, format.ECLevel))
	if err != nil {
		return nil, err
	}

	result, err := DecodeBitStream(payload, version, format.ECLevel, characterSet)
	if err != nil {
		return nil, err
	}
	result.ErrorsCorrected = errorsCorrected
	return result, nil
}

// reconstructPayload Reed-Solomon-corrects every block independently and
// concatenates the recovered data codewords in block order.
func (d *Decoder) reconstructPayload(blocks []DataBlock) ([]byte, int, error) {
	size := 0
	for _, b := range blocks {
		size += b.NumDataCodewords
	}
	payload := make([]byte, size)

	offset, errorsCorrected := 0, 0
	for _, b := range blocks {
		corrected, err := d.correctBlock(b.Codewords, b.NumDataCodewords)
		if err != nil {
			return nil, 0, err
		}
		errorsCorrected += corrected
		offset += copy(payload[offset:], b.Codewords[:b.NumDataCodewords])
	}
	return payload, errorsCorrected, nil
}

func (d *Decoder) correctBlock(codewords []byte, numDataCodewords int) (int, error) {
	ints := make([]int, len(codewords))
	for i, c := range codewords {
		ints[i] = int(c)
	}
	corrected, err := d.rs.Decode(ints, len(ints)-numDataCodewords)
	if err != nil {
		return 0, barcodecore.ErrChecksum
	}
	for i := 0; i < numDataCodewords; i++ {
		codewords[i] = byte(ints[i])
	}
	return corrected, nil
}
