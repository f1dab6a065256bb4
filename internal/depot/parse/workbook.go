package parse

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/openteller/depot/internal/depot/schema"
)

// readWorkbook reads the first sheet of a spreadsheet workbook. The dataset
// descriptor declares where the header sits and where data begins, since
// export tools routinely put a title row above the header and an empty
// spacer row above the data.
func readWorkbook(raw []byte, ds *schema.Dataset) ([]string, int, []physicalRow, error) {
	file, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, 0, nil, structural(1, "", fmt.Sprintf("cannot read workbook payload: %v", err))
	}
	defer func() {
		_ = file.Close()
	}()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, 0, nil, structural(1, "", "workbook contains no sheets")
	}

	cells, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, 0, nil, structural(1, "", fmt.Sprintf("cannot read sheet %q: %v", sheets[0], err))
	}

	headerAt := ds.Source.HeaderRow + 1
	if ds.Source.HeaderRow >= len(cells) {
		return nil, 0, nil, structural(headerAt, "", fmt.Sprintf(
			"expected header on row %d but sheet has only %d rows", headerAt, len(cells)))
	}
	header := cells[ds.Source.HeaderRow]

	var physical []physicalRow
	for i := ds.Source.DataRow; i < len(cells); i++ {
		physical = append(physical, physicalRow{num: i + 1, values: cells[i]})
	}
	return header, headerAt, physical, nil
}
