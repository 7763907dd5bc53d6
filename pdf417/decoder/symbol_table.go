package decoder

// symbolTable and getCodeword back the codeword lookup in
// codeword_decoder.go: a sorted table of valid encoded bar patterns paired
// with the codeword each pattern represents, built at PDF417 table-generation
// time from the cluster encodations. That generated table is not present
// anywhere in this codebase's lineage, so the table here is empty and
// getCodeword returns -1 for every symbol. With it empty, GetDecodedValue
// finds no exact match, getClosestDecodedValue has no rows to compare and
// returns -1, and detectCodewordBounded in scanning_decoder.go rejects every
// codeword it samples, so Decode recovers no codewords and decodes no symbol.
var symbolTable []int

func getCodeword(symbol int) int {
	return -1
}
