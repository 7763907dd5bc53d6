package pdf417

const (
	NumberOfCodewords     = 929
	MaxCodewordsInBarcode = 928
	MinRowsInBarcode      = 3
	MaxRowsInBarcode      = 90
	ModulesInCodeword     = 17
	ModulesInStopPattern  = 18
	BarsInModule          = 8
)
