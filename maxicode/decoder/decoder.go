// Package decoder implements MaxiCode decoding: bit matrix parsing, Reed-Solomon
// error correction, and character set decoding.
package decoder

import (
	"fmt"
	"strings"

	"github.com/barcodekit/core/bitutil"
	"github.com/barcodekit/core/reedsolomon"
)

// DecoderResult holds the decoded text and metadata.
type DecoderResult struct {
	Text            string
	RawBytes        []byte
	ECLevel         string
	ErrorsCorrected int
}

// interleave selects which codewords a Reed-Solomon block covers: every
// codeword in the block, or only the even/odd-indexed half of it.
type interleave int

const (
	interleaveAll interleave = iota
	interleaveEven
	interleaveOdd
)

// Decode decodes a MaxiCode from a 30x33 BitMatrix.
func Decode(bits *bitutil.BitMatrix) (*DecoderResult, error) {
	codewords := readCodewords(bits)
	corrector := &blockCorrector{rs: reedsolomon.NewDecoder(reedsolomon.MaxiCodeField64), codewords: codewords}

	if err := corrector.fix(0, 10, 10, interleaveAll); err != nil {
		return nil, err
	}
	mode := int(codewords[0] & 0x0F)

	datawords, err := corrector.fixSecondary(mode)
	if err != nil {
		return nil, err
	}

	text, err := decodeBitStream(datawords, mode)
	if err != nil {
		return nil, err
	}

	return &DecoderResult{
		Text:            text,
		RawBytes:        codewords,
		ECLevel:         fmt.Sprintf("%d", mode),
		ErrorsCorrected: corrector.errorsCorrected,
	}, nil
}

// blockCorrector runs Reed-Solomon correction over successive codeword
// blocks of a MaxiCode symbol, tallying the total number of symbols fixed.
type blockCorrector struct {
	rs              *reedsolomon.Decoder
	codewords       []byte
	errorsCorrected int
}

func (c *blockCorrector) fixSecondary(mode int) ([]byte, error) {
	switch mode {
	case 2, 3, 4, 6:
		if err := c.fixEvenOdd(20, 84, 40); err != nil {
			return nil, err
		}
		return c.assemblePrimary(94), nil
	case 5:
		if err := c.fixEvenOdd(20, 68, 56); err != nil {
			return nil, err
		}
		return c.assemblePrimary(78), nil
	default:
		return nil, fmt.Errorf("maxicode: unsupported mode %d", mode)
	}
}

func (c *blockCorrector) fixEvenOdd(start, dataCodewords, ecCodewords int) error {
	if err := c.fix(start, dataCodewords, ecCodewords, interleaveEven); err != nil {
		return err
	}
	return c.fix(start, dataCodewords, ecCodewords, interleaveOdd)
}

func (c *blockCorrector) assemblePrimary(size int) []byte {
	datawords := make([]byte, size)
	copy(datawords[:10], c.codewords[:10])
	copy(datawords[10:], c.codewords[20:20+size-10])
	return datawords
}

// fix corrects a single block, dataCodewords+ecCodewords long starting at
// start within c.codewords, deinterleaving by mode first where required.
func (c *blockCorrector) fix(start, dataCodewords, ecCodewords int, mode interleave) error {
	stride := 1
	if mode != interleaveAll {
		stride = 2
	}
	parity := int(mode) - 1

	block := make([]int, (dataCodewords+ecCodewords)/stride)
	for i := 0; i < dataCodewords+ecCodewords; i++ {
		if mode == interleaveAll || i%2 == parity {
			block[i/stride] = int(c.codewords[i+start]) & 0xFF
		}
	}

	corrected, err := c.rs.Decode(block, ecCodewords/stride)
	if err != nil {
		return fmt.Errorf("maxicode: checksum error: %w", err)
	}

	for i := 0; i < dataCodewords; i++ {
		if mode == interleaveAll || i%2 == parity {
			c.codewords[i+start] = byte(block[i/stride])
		}
	}
	c.errorsCorrected += corrected
	return nil
}

// --- module grid ---

// cellBitNumber maps (y, x) coordinates in the 33x30 MaxiCode grid to bit
// numbers. Values >= 0 are bit positions (bit/6 = codeword index, bit%6 =
// bit within codeword, MSB first). Negative values mark fixed/unused cells.
var cellBitNumber = [33][30]int{
	{121, 120, 127, 126, 133, 132, 139, 138, 145, 144, 151, 150, 157, 156, 163, 162, 169, 168, 175, 174, 181, 180, 187, 186, 193, 192, 199, 198, -2, -2},
	{123, 122, 129, 128, 135, 134, 141, 140, 147, 146, 153, 152, 159, 158, 165, 164, 171, 170, 177, 176, 183, 182, 189, 188, 195, 194, 201, 200, 816, -3},
	{125, 124, 131, 130, 137, 136, 143, 142, 149, 148, 155, 154, 161, 160, 167, 166, 173, 172, 179, 178, 185, 184, 191, 190, 197, 196, 203, 202, 818, 817},
	{283, 282, 277, 276, 271, 270, 265, 264, 259, 258, 253, 252, 247, 246, 241, 240, 235, 234, 229, 228, 223, 222, 217, 216, 211, 210, 205, 204, 819, -3},
	{285, 284, 279, 278, 273, 272, 267, 266, 261, 260, 255, 254, 249, 248, 243, 242, 237, 236, 231, 230, 225, 224, 219, 218, 213, 212, 207, 206, 821, 820},
	{287, 286, 281, 280, 275, 274, 269, 268, 263, 262, 257, 256, 251, 250, 245, 244, 239, 238, 233, 232, 227, 226, 221, 220, 215, 214, 209, 208, 822, -3},
	{289, 288, 295, 294, 301, 300, 307, 306, 313, 312, 319, 318, 325, 324, 331, 330, 337, 336, 343, 342, 349, 348, 355, 354, 361, 360, 367, 366, 824, 823},
	{291, 290, 297, 296, 303, 302, 309, 308, 315, 314, 321, 320, 327, 326, 333, 332, 339, 338, 345, 344, 351, 350, 357, 356, 363, 362, 369, 368, 825, -3},
	{293, 292, 299, 298, 305, 304, 311, 310, 317, 316, 323, 322, 329, 328, 335, 334, 341, 340, 347, 346, 353, 352, 359, 358, 365, 364, 371, 370, 827, 826},
	{409, 408, 403, 402, 397, 396, 391, 390, 79, 78, -2, -2, 13, 12, 37, 36, 2, -1, 44, 43, 109, 108, 385, 384, 379, 378, 373, 372, 828, -3},
	{411, 410, 405, 404, 399, 398, 393, 392, 81, 80, 40, -2, 15, 14, 39, 38, 3, -1, -1, 45, 111, 110, 387, 386, 381, 380, 375, 374, 830, 829},
	{413, 412, 407, 406, 401, 400, 395, 394, 83, 82, 41, -3, -3, -3, -3, -3, 5, 4, 47, 46, 113, 112, 389, 388, 383, 382, 377, 376, 831, -3},
	{415, 414, 421, 420, 427, 426, 103, 102, 55, 54, 16, -3, -3, -3, -3, -3, -3, -3, 20, 19, 85, 84, 433, 432, 439, 438, 445, 444, 833, 832},
	{417, 416, 423, 422, 429, 428, 105, 104, 57, 56, -3, -3, -3, -3, -3, -3, -3, -3, 22, 21, 87, 86, 435, 434, 441, 440, 447, 446, 834, -3},
	{419, 418, 425, 424, 431, 430, 107, 106, 59, 58, -3, -3, -3, -3, -3, -3, -3, -3, -3, 23, 89, 88, 437, 436, 443, 442, 449, 448, 836, 835},
	{481, 480, 475, 474, 469, 468, 48, -2, 30, -3, -3, -3, -3, -3, -3, -3, -3, -3, -3, 0, 53, 52, 463, 462, 457, 456, 451, 450, 837, -3},
	{483, 482, 477, 476, 471, 470, 49, -1, -2, -3, -3, -3, -3, -3, -3, -3, -3, -3, -3, -3, -2, -1, 465, 464, 459, 458, 453, 452, 839, 838},
	{485, 484, 479, 478, 473, 472, 51, 50, 31, -3, -3, -3, -3, -3, -3, -3, -3, -3, -3, 1, -2, 42, 467, 466, 461, 460, 455, 454, 840, -3},
	{487, 486, 493, 492, 499, 498, 97, 96, 61, 60, -3, -3, -3, -3, -3, -3, -3, -3, -3, 26, 91, 90, 505, 504, 511, 510, 517, 516, 842, 841},
	{489, 488, 495, 494, 501, 500, 99, 98, 63, 62, -3, -3, -3, -3, -3, -3, -3, -3, 28, 27, 93, 92, 507, 506, 513, 512, 519, 518, 843, -3},
	{491, 490, 497, 496, 503, 502, 101, 100, 65, 64, 17, -3, -3, -3, -3, -3, -3, -3, 18, 29, 95, 94, 509, 508, 515, 514, 521, 520, 845, 844},
	{559, 558, 553, 552, 547, 546, 541, 540, 73, 72, 32, -3, -3, -3, -3, -3, -3, 10, 67, 66, 115, 114, 535, 534, 529, 528, 523, 522, 846, -3},
	{561, 560, 555, 554, 549, 548, 543, 542, 75, 74, -2, -1, 7, 6, 35, 34, 11, -2, 69, 68, 117, 116, 537, 536, 531, 530, 525, 524, 848, 847},
	{563, 562, 557, 556, 551, 550, 545, 544, 77, 76, -2, 33, 9, 8, 25, 24, -1, -2, 71, 70, 119, 118, 539, 538, 533, 532, 527, 526, 849, -3},
	{565, 564, 571, 570, 577, 576, 583, 582, 589, 588, 595, 594, 601, 600, 607, 606, 613, 612, 619, 618, 625, 624, 631, 630, 637, 636, 643, 642, 851, 850},
	{567, 566, 573, 572, 579, 578, 585, 584, 591, 590, 597, 596, 603, 602, 609, 608, 615, 614, 621, 620, 627, 626, 633, 632, 639, 638, 645, 644, 852, -3},
	{569, 568, 575, 574, 581, 580, 587, 586, 593, 592, 599, 598, 605, 604, 611, 610, 617, 616, 623, 622, 629, 628, 635, 634, 641, 640, 647, 646, 854, 853},
	{727, 726, 721, 720, 715, 714, 709, 708, 703, 702, 697, 696, 691, 690, 685, 684, 679, 678, 673, 672, 667, 666, 661, 660, 655, 654, 649, 648, 855, -3},
	{729, 728, 723, 722, 717, 716, 711, 710, 705, 704, 699, 698, 693, 692, 687, 686, 681, 680, 675, 674, 669, 668, 663, 662, 657, 656, 651, 650, 857, 856},
	{731, 730, 725, 724, 719, 718, 713, 712, 707, 706, 701, 700, 695, 694, 689, 688, 683, 682, 677, 676, 671, 670, 665, 664, 659, 658, 653, 652, 858, -3},
	{733, 732, 739, 738, 745, 744, 751, 750, 757, 756, 763, 762, 769, 768, 775, 774, 781, 780, 787, 786, 793, 792, 799, 798, 805, 804, 811, 810, 860, 859},
	{735, 734, 741, 740, 747, 746, 753, 752, 759, 758, 765, 764, 771, 770, 777, 776, 783, 782, 789, 788, 795, 794, 801, 800, 807, 806, 813, 812, 861, -3},
	{737, 736, 743, 742, 749, 748, 755, 754, 761, 760, 767, 766, 773, 772, 779, 778, 785, 784, 791, 790, 797, 796, 803, 802, 809, 808, 815, 814, 863, 862},
}

// readCodewords reads 144 codewords (6 bits each) from a 30x33 MaxiCode BitMatrix.
func readCodewords(matrix *bitutil.BitMatrix) []byte {
	result := make([]byte, 144)
	for y := 0; y < matrix.Height(); y++ {
		row := cellBitNumber[y]
		for x := 0; x < matrix.Width(); x++ {
			bit := row[x]
			if bit >= 0 && matrix.Get(x, y) {
				result[bit/6] |= byte(1 << uint(5-bit%6))
			}
		}
	}
	return result
}

// --- character set decode ---

// Special control characters used in MaxiCode character sets.
const (
	shiftA      = '\uFFF0'
	shiftB      = '\uFFF1'
	shiftC      = '\uFFF2'
	shiftD      = '\uFFF3'
	shiftE      = '\uFFF4'
	twoShiftA   = '\uFFF5'
	threeShiftA = '\uFFF6'
	latchA      = '\uFFF7'
	latchB      = '\uFFF8'
	lockChar    = '\uFFF9'
	eciChar     = '\uFFFA'
	nsChar      = '\uFFFB'
	padChar     = '\uFFFC'
	fsChar      = '\u001C'
	gsChar      = '\u001D'
	rsChar      = '\u001E'
)

// Byte indices for structured data extraction (modes 2 & 3).
var countryBytes = []byte{53, 54, 43, 44, 45, 46, 47, 48, 37, 38}
var serviceClassBytes = []byte{55, 56, 57, 58, 59, 60, 49, 50, 51, 52}
var postcode2LengthBytes = []byte{39, 40, 41, 42, 31, 32}
var postcode2Bytes = []byte{33, 34, 35, 36, 25, 26, 27, 28, 29, 30, 19,
	20, 21, 22, 23, 24, 13, 14, 15, 16, 17, 18, 7, 8, 9, 10, 11, 12, 1, 2}
var postcode3Bytes = [][]byte{
	{39, 40, 41, 42, 31, 32},
	{33, 34, 35, 36, 25, 26},
	{27, 28, 29, 30, 19, 20},
	{21, 22, 23, 24, 13, 14},
	{15, 16, 17, 18, 7, 8},
	{9, 10, 11, 12, 1, 2},
}

// The 5 MaxiCode character sets. Each string has 64 entries indexed by 6-bit codeword value.
var characterSets = [5]string{
	// Set A
	"\rABCDEFGHIJKLMNOPQRSTUVWXYZ" + string(eciChar) + string(fsChar) + string(gsChar) + string(rsChar) + string(nsChar) + " " + string(padChar) +
		"\"#$%&'()*+,-./0123456789:" + string(shiftB) + string(shiftC) + string(shiftD) + string(shiftE) + string(latchB),
	// Set B
	"`abcdefghijklmnopqrstuvwxyz" + string(eciChar) + string(fsChar) + string(gsChar) + string(rsChar) + string(nsChar) + "{" + string(padChar) +
		"}~\u007F;<=>?[\\]^_ ,./:@!|" + string(padChar) + string(twoShiftA) + string(threeShiftA) + string(padChar) +
		string(shiftA) + string(shiftC) + string(shiftD) + string(shiftE) + string(latchA),
	// Set C
	"\u00C0\u00C1\u00C2\u00C3\u00C4\u00C5\u00C6\u00C7\u00C8\u00C9\u00CA\u00CB\u00CC\u00CD\u00CE\u00CF\u00D0\u00D1\u00D2\u00D3\u00D4\u00D5\u00D6\u00D7\u00D8\u00D9\u00DA" +
		string(eciChar) + string(fsChar) + string(gsChar) + string(rsChar) + string(nsChar) +
		"\u00DB\u00DC\u00DD\u00DE\u00DF\u00AA\u00AC\u00B1\u00B2\u00B3\u00B5\u00B9\u00BA\u00BC\u00BD\u00BE\u0080\u0081\u0082\u0083\u0084\u0085\u0086\u0087\u0088\u0089" +
		string(latchA) + " " + string(lockChar) + string(shiftD) + string(shiftE) + string(latchB),
	// Set D
	"\u00E0\u00E1\u00E2\u00E3\u00E4\u00E5\u00E6\u00E7\u00E8\u00E9\u00EA\u00EB\u00EC\u00ED\u00EE\u00EF\u00F0\u00F1\u00F2\u00F3\u00F4\u00F5\u00F6\u00F7\u00F8\u00F9\u00FA" +
		string(eciChar) + string(fsChar) + string(gsChar) + string(rsChar) + string(nsChar) +
		"\u00FB\u00FC\u00FD\u00FE\u00FF\u00A1\u00A8\u00AB\u00AF\u00B0\u00B4\u00B7\u00B8\u00BB\u00BF\u008A\u008B\u008C\u008D\u008E\u008F\u0090\u0091\u0092\u0093\u0094" +
		string(latchA) + " " + string(shiftC) + string(lockChar) + string(shiftE) + string(latchB),
	// Set E
	"\u0000\u0001\u0002\u0003\u0004\u0005\u0006\u0007\u0008\u0009\u000A\u000B\u000C\u000D\u000E\u000F\u0010\u0011\u0012\u0013\u0014\u0015\u0016\u0017\u0018\u0019\u001A" +
		string(eciChar) + string(padChar) + string(padChar) + "\u001B" + string(nsChar) + string(fsChar) + string(gsChar) + string(rsChar) +
		"\u001F\u009F\u00A0\u00A2\u00A3\u00A4\u00A5\u00A6\u00A7\u00A9\u00AD\u00AE\u00B6\u0095\u0096\u0097\u0098\u0099\u009A\u009B\u009C\u009D\u009E" +
		string(latchA) + " " + string(shiftC) + string(shiftD) + string(lockChar) + string(latchB),
}

// decodeBitStream decodes the data bytes into text according to the mode.
func decodeBitStream(bytes []byte, mode int) (string, error) {
	switch mode {
	case 2, 3:
		return decodeStructuredCarrier(bytes, mode)
	case 4, 6:
		return decodeMessageSet(bytes, 1, 93), nil
	case 5:
		return decodeMessageSet(bytes, 1, 77), nil
	default:
		return "", fmt.Errorf("maxicode: unsupported mode %d", mode)
	}
}

func decodeStructuredCarrier(bytes []byte, mode int) (string, error) {
	var postcode string
	if mode == 2 {
		pc := fieldValue(bytes, postcode2Bytes)
		length := fieldValue(bytes, postcode2LengthBytes)
		if length > 10 {
			return "", fmt.Errorf("maxicode: invalid postcode length %d", length)
		}
		postcode = fmt.Sprintf("%0*d", length, pc)
	} else {
		postcode = decodePostcode3(bytes)
	}
	country := fmt.Sprintf("%03d", fieldValue(bytes, countryBytes))
	service := fmt.Sprintf("%03d", fieldValue(bytes, serviceClassBytes))
	msg := decodeMessageSet(bytes, 10, 84)

	var out strings.Builder
	out.Grow(len(msg) + len(postcode) + len(country) + len(service) + 3)
	header := string(rsChar) + "01" + string(gsChar)
	if strings.HasPrefix(msg, "[)>"+header) && len(msg) >= 9 {
		out.WriteString(msg[:9])
		out.WriteString(postcode + string(gsChar) + country + string(gsChar) + service + string(gsChar))
		out.WriteString(msg[9:])
	} else {
		out.WriteString(postcode + string(gsChar) + country + string(gsChar) + service + string(gsChar))
		out.WriteString(msg)
	}
	return out.String(), nil
}

// bitAt returns the bit (0 or 1) at the given 1-based bit position in bytes.
func bitAt(pos int, bytes []byte) int {
	pos--
	if bytes[pos/6]&(1<<uint(5-pos%6)) == 0 {
		return 0
	}
	return 1
}

// fieldValue reassembles a multi-bit integer field from its component bit
// positions, most-significant position first.
func fieldValue(bytes []byte, positions []byte) int {
	val := 0
	for i, p := range positions {
		val += bitAt(int(p), bytes) << uint(len(positions)-i-1)
	}
	return val
}

func decodePostcode3(bytes []byte) string {
	setA := []rune(characterSets[0])
	var sb strings.Builder
	sb.Grow(len(postcode3Bytes))
	for _, group := range postcode3Bytes {
		if idx := fieldValue(bytes, group); idx < len(setA) {
			sb.WriteRune(setA[idx])
		}
	}
	return sb.String()
}

// setMachine tracks the active/locked character set and any pending
// single-use shift while walking a MaxiCode message codeword run.
type setMachine struct {
	runes     [5][]rune
	set       int
	shift     int
	shiftFrom int
}

func newSetMachine() *setMachine {
	m := &setMachine{shift: -1}
	for i, s := range characterSets {
		m.runes[i] = []rune(s)
	}
	return m
}

// apply consumes one control-code rune and returns the literal rune to emit
// for it, or 0 if the rune only changed decoder state.
func (m *setMachine) apply(c rune) rune {
	switch c {
	case latchA:
		m.set, m.shift = 0, -1
	case latchB:
		m.set, m.shift = 1, -1
	case shiftA, shiftB, shiftC, shiftD, shiftE:
		m.shiftFrom = m.set
		m.set = int(c - shiftA)
		m.shift = 1
	case twoShiftA:
		m.shiftFrom = m.set
		m.set, m.shift = 0, 2
	case threeShiftA:
		m.shiftFrom = m.set
		m.set, m.shift = 0, 3
	case lockChar:
		m.shift = -1
	default:
		return c
	}
	return 0
}

// afterEmit reverts a pending single-character shift once its budget is
// spent. The decrement-after-compare order matches the MaxiCode state
// machine's own "consume one character, then check" sequencing.
func (m *setMachine) afterEmit() {
	if m.shift == 0 {
		m.set = m.shiftFrom
	}
	m.shift--
}

func decodeMessageSet(bytes []byte, start, length int) string {
	machine := newSetMachine()
	var sb strings.Builder

	for i := start; i < start+length; i++ {
		idx := int(bytes[i])
		if idx >= len(machine.runes[machine.set]) {
			continue
		}
		c := machine.runes[machine.set][idx]

		if c == nsChar {
			if i+5 < start+length {
				value := (int(bytes[i+1]) << 24) + (int(bytes[i+2]) << 18) +
					(int(bytes[i+3]) << 12) + (int(bytes[i+4]) << 6) + int(bytes[i+5])
				fmt.Fprintf(&sb, "%09d", value)
				i += 5
			}
			continue
		}

		if literal := machine.apply(c); literal != 0 {
			sb.WriteRune(literal)
		}
		machine.afterEmit()
	}

	return strings.TrimRight(sb.String(), string(padChar))
}
