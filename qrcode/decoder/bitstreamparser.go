package decoder

import (
	"fmt"
	"strings"

	barcodecore "github.com/barcodekit/core"
	"github.com/barcodekit/core/bitutil"
	"github.com/barcodekit/core/charset"
	"github.com/barcodekit/core/internal"
)

const alphanumericAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ $%*+-./:"

// gb2312Subset is the only HANZI subset value this decoder recognizes;
// other subset values are silently skipped per the QR spec.
const gb2312Subset = 1

// bitStreamState accumulates a QR LowLevelDecoder run: the text built so far,
// any raw byte segments, structured-append bookkeeping, and which ECI (if
// any) governs the BYTE segments seen after it.
type bitStreamState struct {
	src              *bitutil.BitSource
	version          *Version
	text             strings.Builder
	byteSegments     [][]byte
	eci              *charset.ECI
	gs1InEffect      bool
	sawFNC1First     bool
	sawFNC1Second    bool
	symbolSequence   int
	structAppendParity int
}

// DecodeBitStream runs the QR LowLevelDecoder over the error-corrected data
// codewords, dispatching each mode segment in turn until a TERMINATOR (or an
// implicit end-of-stream) is reached.
func DecodeBitStream(bytes []byte, version *Version, ecLevel ErrorCorrectionLevel, characterSet string) (*internal.DecoderResult, error) {
	st := &bitStreamState{
		src:                bitutil.NewBitSource(bytes),
		version:            version,
		symbolSequence:     -1,
		structAppendParity: -1,
	}
	st.text.Grow(50)

	for {
		mode, err := st.nextMode()
		if err != nil {
			return nil, err
		}
		if mode == ModeTerminator {
			break
		}
		if err := st.decodeSegment(mode, characterSet); err != nil {
			return nil, err
		}
	}

	result := internal.NewDecoderResultFull(bytes, st.text.String(), st.byteSegments, ecLevel.String(),
		st.symbolSequence, st.structAppendParity, st.symbologyModifier())
	return result, nil
}

func (st *bitStreamState) nextMode() (Mode, error) {
	if st.src.Available() < 4 {
		return ModeTerminator, nil
	}
	bits, err := st.src.ReadBits(4)
	if err != nil {
		return 0, barcodecore.ErrFormat
	}
	mode, err := ModeForBits(bits)
	if err != nil {
		return 0, barcodecore.ErrFormat
	}
	return mode, nil
}

// decodeSegment handles every mode except TERMINATOR, which the caller
// already stops on.
func (st *bitStreamState) decodeSegment(mode Mode, characterSet string) error {
	switch mode {
	case ModeFNC1FirstPosition:
		st.sawFNC1First = true
		st.gs1InEffect = true
		return nil
	case ModeFNC1SecondPosition:
		st.sawFNC1Second = true
		st.gs1InEffect = true
		return nil
	case ModeStructuredAppend:
		return st.readStructuredAppend()
	case ModeECI:
		return st.readECI()
	case ModeHanzi:
		return st.readHanzi()
	case ModeNumeric, ModeAlphanumeric, ModeByte, ModeKanji:
		count, err := st.src.ReadBits(mode.CharacterCountBits(st.version))
		if err != nil {
			return barcodecore.ErrFormat
		}
		return st.readCharacterSegment(mode, count, characterSet)
	default:
		return barcodecore.ErrFormat
	}
}

func (st *bitStreamState) readCharacterSegment(mode Mode, count int, characterSet string) error {
	switch mode {
	case ModeNumeric:
		return decodeNumericSegment(st.src, &st.text, count)
	case ModeAlphanumeric:
		return decodeAlphanumericSegment(st.src, &st.text, count, st.gs1InEffect)
	case ModeByte:
		seg, err := decodeByteSegment(st.src, &st.text, count, st.eci, characterSet)
		if err != nil {
			return err
		}
		st.byteSegments = append(st.byteSegments, seg)
		return nil
	case ModeKanji:
		return decodeKanjiSegment(st.src, &st.text, count)
	default:
		return barcodecore.ErrFormat
	}
}

func (st *bitStreamState) readStructuredAppend() error {
	if st.src.Available() < 16 {
		return barcodecore.ErrFormat
	}
	seq, _ := st.src.ReadBits(8)
	parity, _ := st.src.ReadBits(8)
	st.symbolSequence = seq
	st.structAppendParity = parity
	return nil
}

func (st *bitStreamState) readECI() error {
	value, err := parseECIValue(st.src)
	if err != nil {
		return err
	}
	eci, err := charset.GetECIByValue(value)
	if err != nil {
		return barcodecore.ErrFormat
	}
	st.eci = eci
	return nil
}

func (st *bitStreamState) readHanzi() error {
	subset, _ := st.src.ReadBits(4)
	count, _ := st.src.ReadBits(ModeHanzi.CharacterCountBits(st.version))
	if subset != gb2312Subset {
		return nil
	}
	return decodeHanziSegment(st.src, &st.text, count)
}

// symbologyModifier follows the AIM symbology-identifier convention: the
// presence of an ECI and which FNC1 position (if any) was seen together
// select one of six modifier digits.
func (st *bitStreamState) symbologyModifier() int {
	switch {
	case st.eci != nil && st.sawFNC1First:
		return 4
	case st.eci != nil && st.sawFNC1Second:
		return 6
	case st.eci != nil:
		return 2
	case st.sawFNC1First:
		return 3
	case st.sawFNC1Second:
		return 5
	default:
		return 1
	}
}

func decodeHanziSegment(bs *bitutil.BitSource, result *strings.Builder, count int) error {
	if count*13 > bs.Available() {
		return barcodecore.ErrFormat
	}
	buf := make([]byte, 0, 2*count)
	for ; count > 0; count-- {
		packed, _ := bs.ReadBits(13)
		assembled := ((packed / 0x060) << 8) | (packed % 0x060)
		if assembled < 0x00A00 {
			assembled += 0x0A1A1
		} else {
			assembled += 0x0A6A1
		}
		buf = append(buf, byte(assembled>>8), byte(assembled))
	}
	result.WriteString(charset.DecodeBytes(buf, "GB18030"))
	return nil
}

func decodeKanjiSegment(bs *bitutil.BitSource, result *strings.Builder, count int) error {
	if count*13 > bs.Available() {
		return barcodecore.ErrFormat
	}
	buf := make([]byte, 0, 2*count)
	for ; count > 0; count-- {
		packed, _ := bs.ReadBits(13)
		assembled := ((packed / 0x0C0) << 8) | (packed % 0x0C0)
		if assembled < 0x01F00 {
			assembled += 0x08140
		} else {
			assembled += 0x0C140
		}
		buf = append(buf, byte(assembled>>8), byte(assembled))
	}
	result.WriteString(charset.DecodeBytes(buf, "Shift_JIS"))
	return nil
}

func decodeByteSegment(bs *bitutil.BitSource, result *strings.Builder, count int,
	eci *charset.ECI, characterSet string) ([]byte, error) {
	if 8*count > bs.Available() {
		return nil, barcodecore.ErrFormat
	}
	raw := make([]byte, count)
	for i := range raw {
		val, _ := bs.ReadBits(8)
		raw[i] = byte(val)
	}

	encoding := characterSet
	if eci != nil {
		encoding = eci.GoName
	} else {
		encoding = charset.GuessEncoding(raw, characterSet)
	}
	result.WriteString(charset.DecodeBytes(raw, encoding))
	return raw, nil
}

func alphanumericChar(value int) (byte, error) {
	if value < 0 || value >= len(alphanumericAlphabet) {
		return 0, barcodecore.ErrFormat
	}
	return alphanumericAlphabet[value], nil
}

func decodeAlphanumericSegment(bs *bitutil.BitSource, result *strings.Builder, count int, gs1InEffect bool) error {
	start := result.Len()
	for ; count > 1; count -= 2 {
		if bs.Available() < 11 {
			return barcodecore.ErrFormat
		}
		pair, _ := bs.ReadBits(11)
		c1, err := alphanumericChar(pair / 45)
		if err != nil {
			return err
		}
		c2, err := alphanumericChar(pair % 45)
		if err != nil {
			return err
		}
		result.WriteByte(c1)
		result.WriteByte(c2)
	}
	if count == 1 {
		if bs.Available() < 6 {
			return barcodecore.ErrFormat
		}
		val, _ := bs.ReadBits(6)
		c, err := alphanumericChar(val)
		if err != nil {
			return err
		}
		result.WriteByte(c)
	}
	if gs1InEffect {
		applyGS1Escapes(result, start)
	}
	return nil
}

// applyGS1Escapes rewrites "%%" to "%" and a lone "%" to GS (0x1D) within the
// segment that starts at byteOffset, per the AI-flag GS1 convention.
func applyGS1Escapes(result *strings.Builder, byteOffset int) {
	s := result.String()
	var rewritten strings.Builder
	rewritten.WriteString(s[:byteOffset])
	for i := byteOffset; i < len(s); i++ {
		if s[i] != '%' {
			rewritten.WriteByte(s[i])
			continue
		}
		if i < len(s)-1 && s[i+1] == '%' {
			rewritten.WriteByte('%')
			i++
		} else {
			rewritten.WriteByte(0x1D)
		}
	}
	result.Reset()
	result.WriteString(rewritten.String())
}

func decodeNumericSegment(bs *bitutil.BitSource, result *strings.Builder, count int) error {
	for ; count >= 3; count -= 3 {
		if bs.Available() < 10 {
			return barcodecore.ErrFormat
		}
		digits, _ := bs.ReadBits(10)
		if digits >= 1000 {
			return barcodecore.ErrFormat
		}
		fmt.Fprintf(result, "%03d", digits)
	}
	switch count {
	case 2:
		if bs.Available() < 7 {
			return barcodecore.ErrFormat
		}
		digits, _ := bs.ReadBits(7)
		if digits >= 100 {
			return barcodecore.ErrFormat
		}
		fmt.Fprintf(result, "%02d", digits)
	case 1:
		if bs.Available() < 4 {
			return barcodecore.ErrFormat
		}
		digit, _ := bs.ReadBits(4)
		if digit >= 10 {
			return barcodecore.ErrFormat
		}
		fmt.Fprintf(result, "%d", digit)
	}
	return nil
}

// parseECIValue reads the variable-length ECI designator: 1, 2, or 3 bytes
// depending on how many leading high bits of the first byte are set.
func parseECIValue(bs *bitutil.BitSource) (int, error) {
	first, err := bs.ReadBits(8)
	if err != nil {
		return 0, barcodecore.ErrFormat
	}
	switch {
	case first&0x80 == 0:
		return first & 0x7F, nil
	case first&0xC0 == 0x80:
		second, _ := bs.ReadBits(8)
		return (first&0x3F)<<8 | second, nil
	case first&0xE0 == 0xC0:
		rest, _ := bs.ReadBits(16)
		return (first&0x1F)<<16 | rest, nil
	default:
		return 0, barcodecore.ErrFormat
	}
}
