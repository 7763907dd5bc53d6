package decoder

// Local, unexported copies of the PDF417 geometry constants declared in
// package pdf417. They are repeated here rather than imported because
// package pdf417 imports this package.
const (
	maxCodewordsInBarcode = 928
	minRowsInBarcode      = 3
	maxRowsInBarcode      = 90
	modulesInCodeword     = 17
	barsInModule          = 8
)
