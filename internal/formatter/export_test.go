package formatter

var (
	TagColor     = tagColor
	ColumnWidths = columnWidths
)
