// Package exporter writes a ranking out as a spreadsheet.
//
// BuildSheet flattens ranked funds into a header and typed rows. Three
// writers consume it:
//
// XLSXWriter: fundos_imobiliarios_YYYY-MM-DD.xlsx in the output directory.
//
// CSVWriter: the same layout as UTF-8 CSV with a byte order mark, so Excel
// detects the encoding.
//
// SheetsWriter: replaces the content of one tab of a Google spreadsheet.
//
// Example usage:
//
//	sheet := exporter.BuildSheet(result.Ranked, result.ExtraColumns)
//	path, err := exporter.NewXLSXWriter("data/reports", logger).Write(ctx, sheet, time.Now())
package exporter
