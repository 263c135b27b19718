// Package report reads the markdown table produced by the structuring stage.
package report

import (
	"errors"
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// ErrNoTable is returned when the input holds no pipe table.
var ErrNoTable = errors.New("no markdown table found")

// Row is one measurement of a lab report.
type Row struct {
	Measurement string `json:"measurement"`
	Value       string `json:"value"`
	Low         string `json:"low"`
	High        string `json:"high"`
}

type column int

const (
	colMeasurement column = iota
	colValue
	colLow
	colHigh
	colUnknown
)

var headerAliases = []struct {
	col   column
	names []string
}{
	{colValue, []string{"value", "result"}},
	{colLow, []string{"low", "min"}},
	{colHigh, []string{"high", "max"}},
	{colMeasurement, []string{"measurement", "test", "label", "analyte", "parameter", "name"}},
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// ParseTable returns the rows of the first pipe table in src. Columns are matched by
// header name and fall back to the order measurement, value, low, high.
func ParseTable(src string) ([]Row, error) {
	source := []byte(src)
	doc := markdown.Parser().Parse(text.NewReader(source))

	var table *extast.Table
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := n.(*extast.Table); ok && entering {
			table = t
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	if table == nil {
		return nil, ErrNoTable
	}

	var (
		columns []column
		rows    []Row
	)
	for child := table.FirstChild(); child != nil; child = child.NextSibling() {
		cells := rowCells(child, source)
		switch child.(type) {
		case *extast.TableHeader:
			columns = mapColumns(cells)
		case *extast.TableRow:
			row, ok := buildRow(columns, cells)
			if ok {
				rows = append(rows, row)
			}
		}
	}
	return rows, nil
}

func rowCells(row ast.Node, source []byte) []string {
	var cells []string
	for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
		if _, ok := cell.(*extast.TableCell); ok {
			cells = append(cells, cellText(cell, source))
		}
	}
	return cells
}

func cellText(cell ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(cell, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

// mapColumns assigns each header cell a column. Without any recognised header the
// first four cells are taken positionally.
func mapColumns(headers []string) []column {
	columns := make([]column, len(headers))
	seen := make(map[column]bool)
	for i, h := range headers {
		columns[i] = matchHeader(h)
		if columns[i] != colUnknown {
			if seen[columns[i]] {
				columns[i] = colUnknown
				continue
			}
			seen[columns[i]] = true
		}
	}
	if len(seen) > 0 {
		return columns
	}
	for i := range columns {
		if i < int(colUnknown) {
			columns[i] = column(i)
		}
	}
	return columns
}

func matchHeader(h string) column {
	key := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, h)
	for _, alias := range headerAliases {
		for _, name := range alias.names {
			if strings.Contains(key, name) {
				return alias.col
			}
		}
	}
	return colUnknown
}

func buildRow(columns []column, cells []string) (Row, bool) {
	var (
		row   Row
		empty = true
	)
	for i, cell := range cells {
		if cell != "" {
			empty = false
		}
		col := column(i)
		if i < len(columns) {
			col = columns[i]
		} else if columns != nil {
			col = colUnknown
		}
		switch col {
		case colMeasurement:
			row.Measurement = cell
		case colValue:
			row.Value = cell
		case colLow:
			row.Low = cell
		case colHigh:
			row.High = cell
		}
	}
	return row, !empty
}
