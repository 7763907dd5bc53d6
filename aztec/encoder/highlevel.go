// Package encoder implements Aztec barcode encoding.
package encoder

import (
	"fmt"

	"github.com/barcodekit/core/bitutil"
)

// Aztec high-level encoding modes. Bit widths are fixed by the symbology:
// every mode uses 5 bits per code except DIGIT, which uses 4.
type azMode int

const (
	modeUpper azMode = iota
	modeLower
	modeDigit
	modeMixed
	modePunct
	modeCount
)

func (m azMode) bitWidth() int {
	if m == modeDigit {
		return 4
	}
	return 5
}

// charMap[mode][byte] gives the code for that byte in that mode, or -1 if
// the byte cannot be encoded in that mode.
var charMap [modeCount][256]int

func init() {
	for m := range charMap {
		for c := range charMap[m] {
			charMap[m][c] = -1
		}
	}

	charMap[modeUpper][' '] = 1
	for c := byte('A'); c <= 'Z'; c++ {
		charMap[modeUpper][c] = int(c-'A') + 2
	}

	charMap[modeLower][' '] = 1
	for c := byte('a'); c <= 'z'; c++ {
		charMap[modeLower][c] = int(c-'a') + 2
	}

	charMap[modeDigit][' '] = 1
	for c := byte('0'); c <= '9'; c++ {
		charMap[modeDigit][c] = int(c-'0') + 2
	}
	charMap[modeDigit][','] = 12
	charMap[modeDigit]['.'] = 13

	mixedTable := []byte{
		0x00, 0x20, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c,
		0x0d, 0x1b, 0x1c, 0x1d, 0x1e, 0x1f, 0x40, 0x5c, 0x5e, 0x5f, 0x60, 0x7c, 0x7e, 0x7f,
	}
	for i, c := range mixedTable {
		if i > 0 {
			charMap[modeMixed][c] = i
		}
	}

	punctTable := []byte{
		0, '\r', 0, 0, 0, 0, '!', '"', '#', '$', '%', '&', '\'', '(', ')', '*',
		'+', ',', '-', '.', '/', ':', ';', '<', '=', '>', '?', '[', ']', '{', '}',
	}
	for i, c := range punctTable {
		if c != 0 {
			charMap[modePunct][c] = i
		}
	}
}

// punctPairCode maps the four two-character sequences Aztec PUNCT mode can
// emit as a single code, keyed by the first character and what must follow.
func punctPairCode(a, b byte) int {
	switch {
	case a == '\r' && b == '\n':
		return 2
	case a == '.' && b == ' ':
		return 3
	case a == ',' && b == ' ':
		return 4
	case a == ':' && b == ' ':
		return 5
	default:
		return 0
	}
}

// latchStep is one code emitted, in the bit width of the mode it is emitted
// in, while latching from one mode toward another.
type latchStep struct {
	fromMode azMode
	code     int
}

// latchPath gives the cheapest known sequence of latch codes from one mode
// to another. Built once; see AZHighLevelEncoder.cpp's LATCH_TABLE for the
// reference costs this must match.
var latchPath = [modeCount][modeCount][]latchStep{
	modeUpper: {
		modeLower: {{modeUpper, 28}},
		modeDigit: {{modeUpper, 30}},
		modeMixed: {{modeUpper, 29}},
		modePunct: {{modeUpper, 29}, {modeMixed, 30}},
	},
	modeLower: {
		modeUpper: {{modeLower, 30}, {modeDigit, 14}},
		modeDigit: {{modeLower, 30}},
		modeMixed: {{modeLower, 29}},
		modePunct: {{modeLower, 29}, {modeMixed, 30}},
	},
	modeDigit: {
		modeUpper: {{modeDigit, 14}},
		modeLower: {{modeDigit, 14}, {modeUpper, 28}},
		modeMixed: {{modeDigit, 14}, {modeUpper, 29}},
		modePunct: {{modeDigit, 14}, {modeUpper, 29}, {modeMixed, 30}},
	},
	modeMixed: {
		modeUpper: {{modeMixed, 29}},
		modeLower: {{modeMixed, 28}},
		modeDigit: {{modeMixed, 29}, {modeUpper, 30}},
		modePunct: {{modeMixed, 30}},
	},
	modePunct: {
		modeUpper: {{modePunct, 31}},
		modeLower: {{modePunct, 31}, {modeUpper, 28}},
		modeDigit: {{modePunct, 31}, {modeUpper, 30}},
		modeMixed: {{modePunct, 31}, {modeUpper, 29}},
	},
}

func latchCost(from, to azMode) int {
	if from == to {
		return 0
	}
	cost := 0
	for _, step := range latchPath[from][to] {
		cost += step.fromMode.bitWidth()
	}
	return cost
}

// shiftCode gives the single-character shift code from one mode to another,
// or -1 if no shift exists. Shifts exist only into UPPER (from LOWER/DIGIT)
// and into PUNCT (from every other mode), and do not change the active mode.
func shiftCode(from, to azMode) int {
	switch {
	case to == modePunct && from != modePunct:
		return 0
	case to == modeUpper && from == modeLower:
		return 28
	case to == modeUpper && from == modeDigit:
		return 15
	default:
		return -1
	}
}

// token is one emitted unit: either a fixed-width code, or a pending run of
// raw bytes to be binary-shift encoded.
type token struct {
	code, bits          int
	binaryStart, binary int
}

func simpleToken(code, bits int) token { return token{code: code, bits: bits} }
func binaryToken(start, count int) token {
	return token{binary: count, binaryStart: start}
}

func (t token) appendTo(bits *bitutil.BitArray, data []byte) {
	if t.binary == 0 {
		bits.AppendBits(uint32(t.code), t.bits)
		return
	}
	for i := 0; i < t.binary; i++ {
		if i == 0 || (i == 31 && t.binary <= 62) {
			bits.AppendBits(31, 5)
			switch {
			case t.binary > 62:
				bits.AppendBits(uint32(t.binary-31), 16)
			case i == 0:
				n := t.binary
				if n > 31 {
					n = 31
				}
				bits.AppendBits(uint32(n), 5)
			default:
				bits.AppendBits(uint32(t.binary-31), 5)
			}
		}
		bits.AppendBits(uint32(data[t.binaryStart+i]), 8)
	}
}

// encodingState is one candidate partial encoding in the dynamic-programming
// search: the tokens emitted so far, the active mode, how many trailing raw
// bytes are queued for binary shift, and the total bit cost.
type encodingState struct {
	tokens          []token
	mode            azMode
	binaryShiftRun  int
	bitCount        int
}

func (s encodingState) latchAndAppend(mode azMode, value int) encodingState {
	tokens := append(append([]token(nil), s.tokens...))
	bitCount := s.bitCount
	if mode != s.mode {
		for _, step := range latchPath[s.mode][mode] {
			tokens = append(tokens, simpleToken(step.code, step.fromMode.bitWidth()))
			bitCount += step.fromMode.bitWidth()
		}
	}
	tokens = append(tokens, simpleToken(value, mode.bitWidth()))
	return encodingState{tokens: tokens, mode: mode, bitCount: bitCount + mode.bitWidth()}
}

func (s encodingState) shiftAndAppend(mode azMode, value int) encodingState {
	tokens := append([]token(nil), s.tokens...)
	tokens = append(tokens, simpleToken(shiftCode(s.mode, mode), s.mode.bitWidth()))
	tokens = append(tokens, simpleToken(value, 5))
	return encodingState{tokens: tokens, mode: s.mode, bitCount: s.bitCount + s.mode.bitWidth() + 5}
}

func (s encodingState) endBinaryShift(index int) encodingState {
	if s.binaryShiftRun == 0 {
		return s
	}
	tokens := append([]token(nil), s.tokens...)
	tokens = append(tokens, binaryToken(index-s.binaryShiftRun, s.binaryShiftRun))
	return encodingState{tokens: tokens, mode: s.mode, bitCount: s.bitCount}
}

func binaryShiftCost(run int) int {
	switch {
	case run > 62:
		return 21
	case run > 31:
		return 20
	case run > 0:
		return 10
	default:
		return 0
	}
}

func (s encodingState) addBinaryShiftChar(index int) encodingState {
	tokens := append([]token(nil), s.tokens...)
	mode := s.mode
	bitCount := s.bitCount
	if mode == modePunct || mode == modeDigit {
		for _, step := range latchPath[mode][modeUpper] {
			tokens = append(tokens, simpleToken(step.code, step.fromMode.bitWidth()))
			bitCount += step.fromMode.bitWidth()
		}
		mode = modeUpper
	}
	var delta int
	switch {
	case s.binaryShiftRun == 0 || s.binaryShiftRun == 31:
		delta = 18
	case s.binaryShiftRun == 62:
		delta = 9
	default:
		delta = 8
	}
	result := encodingState{tokens: tokens, mode: mode, binaryShiftRun: s.binaryShiftRun + 1, bitCount: bitCount + delta}
	if result.binaryShiftRun == 2047+31 {
		result = result.endBinaryShift(index + 1)
	}
	return result
}

// dominates reports whether s is at least as good as other under every
// possible continuation: same or fewer bits once both are normalized onto
// a common mode, accounting for the cost of finishing any open binary shift.
func (s encodingState) dominates(other encodingState) bool {
	cost := s.bitCount + latchCost(s.mode, other.mode)
	switch {
	case s.binaryShiftRun < other.binaryShiftRun:
		cost += binaryShiftCost(other.binaryShiftRun) - binaryShiftCost(s.binaryShiftRun)
	case s.binaryShiftRun > other.binaryShiftRun && other.binaryShiftRun > 0:
		cost += 10
	}
	return cost <= other.bitCount
}

// pruneDominated drops every state that is no better than another under all
// futures, per the small-vector approach spec's design notes call for
// (O(k^2) in active states, k stays small on realistic inputs).
func pruneDominated(states []encodingState) []encodingState {
	var kept []encodingState
	for _, candidate := range states {
		add := true
		for i := 0; i < len(kept); {
			if kept[i].dominates(candidate) {
				add = false
				break
			}
			if candidate.dominates(kept[i]) {
				kept = append(kept[:i], kept[i+1:]...)
				continue
			}
			i++
		}
		if add {
			kept = append(kept, candidate)
		}
	}
	return kept
}

func expandForChar(s encodingState, data []byte, index int) []encodingState {
	ch := data[index]
	inCurrentMode := charMap[s.mode][ch] >= 0
	var expanded []encodingState
	noBinary := s.endBinaryShift(index)
	for m := azMode(0); m < modeCount; m++ {
		code := charMap[m][ch]
		if code < 0 {
			continue
		}
		if !inCurrentMode || m == s.mode || m == modeDigit {
			expanded = append(expanded, noBinary.latchAndAppend(m, code))
		}
		if !inCurrentMode && shiftCode(s.mode, m) >= 0 {
			expanded = append(expanded, noBinary.shiftAndAppend(m, code))
		}
	}
	if s.binaryShiftRun > 0 || !inCurrentMode {
		expanded = append(expanded, s.addBinaryShiftChar(index))
	}
	return expanded
}

func expandForPair(s encodingState, index, pairCode int) []encodingState {
	noBinary := s.endBinaryShift(index)
	expanded := []encodingState{noBinary.latchAndAppend(modePunct, pairCode)}
	if s.mode != modePunct {
		expanded = append(expanded, noBinary.shiftAndAppend(modePunct, pairCode))
	}
	if pairCode == 3 || pairCode == 4 {
		digitState := noBinary.latchAndAppend(modeDigit, 16-pairCode)
		expanded = append(expanded, digitState.latchAndAppend(modeDigit, 1))
	}
	if s.binaryShiftRun > 0 {
		expanded = append(expanded, s.addBinaryShiftChar(index).addBinaryShiftChar(index+1))
	}
	return expanded
}

// highLevelEncode runs the Aztec dynamic-programming search: at each byte,
// every live candidate state is expanded into every viable latch/shift/
// binary-shift continuation, then dominated candidates are pruned, so the
// surviving set always contains the eventual minimum-bit-count encoding.
func highLevelEncode(data []byte) (*bitutil.BitArray, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("aztec: empty input")
	}

	states := []encodingState{{mode: modeUpper}}
	for i := 0; i < len(data); i++ {
		var next byte
		if i+1 < len(data) {
			next = data[i+1]
		}
		pairCode := punctPairCode(data[i], next)

		var expanded []encodingState
		if pairCode > 0 {
			for _, s := range states {
				expanded = append(expanded, expandForPair(s, i, pairCode)...)
			}
			i++
		} else {
			for _, s := range states {
				expanded = append(expanded, expandForChar(s, data, i)...)
			}
		}
		if len(expanded) > 1 {
			expanded = pruneDominated(expanded)
		}
		states = expanded
	}

	best := states[0]
	for _, s := range states[1:] {
		if s.bitCount < best.bitCount {
			best = s
		}
	}
	best = best.endBinaryShift(len(data))

	result := bitutil.NewBitArray(0)
	for _, t := range best.tokens {
		t.appendTo(result, data)
	}
	return result, nil
}
