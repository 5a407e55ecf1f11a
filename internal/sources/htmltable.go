package sources

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"fiirank/internal/table"
)

// ErrNoTable is returned when the document has no matching table.
var ErrNoTable = errors.New("no matching html table")

// Selector picks the element holding a table. The first element whose id
// equals ID, or whose class list contains Class, is used; the zero Selector
// matches the whole document. If the match is not itself a <table>, its
// first descendant table is parsed.
type Selector struct {
	ID    string
	Class string
}

func (s Selector) String() string {
	switch {
	case s.ID != "":
		return "#" + s.ID
	case s.Class != "":
		return "." + s.Class
	default:
		return "table"
	}
}

func (s Selector) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if s.ID == "" && s.Class == "" {
		return true
	}
	for _, a := range n.Attr {
		switch {
		case s.ID != "" && a.Key == "id" && a.Val == s.ID:
			return true
		case s.Class != "" && a.Key == "class" && containsField(a.Val, s.Class):
			return true
		}
	}
	return false
}

// ParseHTMLTable reads an HTML document and returns the selected table.
// Header cells come from <thead>, or from the first row when it only holds
// <th> cells. Cell text is whitespace-collapsed. A cell spanning several
// columns or rows is repeated in each position it covers.
func ParseHTMLTable(r io.Reader, sel Selector) (table.Table, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return table.Table{}, fmt.Errorf("parse html: %w", err)
	}

	root := find(doc, sel.matches)
	if root == nil {
		return table.Table{}, fmt.Errorf("%w: %s", ErrNoTable, sel)
	}
	tbl := root
	if tbl.DataAtom != atom.Table {
		tbl = find(root, func(n *html.Node) bool { return n.Type == html.ElementNode && n.DataAtom == atom.Table })
	}
	if tbl == nil {
		return table.Table{}, fmt.Errorf("%w: %s", ErrNoTable, sel)
	}

	var header []string
	var rows [][]string
	spans := map[int]*carried{}
	for _, tr := range rowsOf(tbl) {
		cells, allHeader := cellsOf(tr, spans)
		if len(cells) == 0 {
			continue
		}
		inHead := tr.Parent != nil && tr.Parent.DataAtom == atom.Thead
		if header == nil && (inHead || allHeader) {
			header = cells
			continue
		}
		if inHead {
			// extra header rows are ignored
			continue
		}
		rows = append(rows, cells)
	}

	if header == nil {
		if len(rows) == 0 {
			return table.Table{}, fmt.Errorf("%w: %s is empty", ErrNoTable, sel)
		}
		header, rows = rows[0], rows[1:]
	}
	return table.New(header, rows), nil
}

// find returns the first node in document order accepted by match.
func find(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, match); found != nil {
			return found
		}
	}
	return nil
}

// rowsOf collects the <tr> elements of tbl, skipping nested tables.
func rowsOf(tbl *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Table:
			case atom.Tr:
				out = append(out, c)
			default:
				walk(c)
			}
		}
	}
	walk(tbl)
	return out
}

// maxSpan bounds colspan and rowspan values.
const maxSpan = 1000

// carried is a rowspan cell still owed to the rows below.
type carried struct {
	text string
	left int
}

// cellsOf returns the cells of tr with colspan expanded, filling the
// positions that rowspans from earlier rows still cover. spans is updated
// for the rows that follow.
func cellsOf(tr *html.Node, spans map[int]*carried) ([]string, bool) {
	var cells []string
	allHeader := true

	fill := func() {
		for {
			c, ok := spans[len(cells)]
			if !ok {
				return
			}
			cells = append(cells, c.text)
			if c.left--; c.left == 0 {
				delete(spans, len(cells)-1)
			}
		}
	}

	found := false
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || (c.DataAtom != atom.Td && c.DataAtom != atom.Th) {
			continue
		}
		found = true
		if c.DataAtom == atom.Td {
			allHeader = false
		}
		fill()
		text := textOf(c)
		rowspan := spanOf(c, "rowspan")
		for i := spanOf(c, "colspan"); i > 0; i-- {
			if rowspan > 1 {
				spans[len(cells)] = &carried{text: text, left: rowspan - 1}
			}
			cells = append(cells, text)
		}
	}
	if !found {
		return nil, allHeader
	}

	// trailing columns still covered from above
	last := -1
	for col := range spans {
		if col >= len(cells) && col > last {
			last = col
		}
	}
	for len(cells) <= last {
		fill()
		if len(cells) <= last {
			cells = append(cells, "")
		}
	}
	return cells, allHeader
}

// spanOf reads a colspan or rowspan attribute, defaulting to 1.
func spanOf(n *html.Node, key string) int {
	for _, a := range n.Attr {
		if a.Key != key {
			continue
		}
		v, err := strconv.Atoi(strings.TrimSpace(a.Val))
		if err != nil || v < 1 {
			return 1
		}
		return min(v, maxSpan)
	}
	return 1
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func containsField(list, want string) bool {
	for _, f := range strings.Fields(list) {
		if f == want {
			return true
		}
	}
	return false
}
