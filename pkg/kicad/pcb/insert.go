package pcb

import (
	"os"
	"strings"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/errors"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/kicad/sexp/kicadsexp"
)

// InsertRoutes appends records to a board document just before the closing
// parenthesis of its (kicad_pcb ...) root, one record per line. The rest
// of the document is left byte for byte.
func InsertRoutes(board string, items []*kicadsexp.List) (string, error) {
	end := strings.LastIndexByte(board, ')')
	if end < 0 || !strings.Contains(board[:end], "(kicad_pcb") {
		return "", errors.New(errors.ErrCodeParse, "not a KiCad PCB document")
	}
	if len(items) == 0 {
		return board, nil
	}

	head := strings.TrimRight(board[:end], " \t\r\n")
	var b strings.Builder
	b.Grow(len(board) + 96*len(items))
	b.WriteString(head)
	for _, item := range items {
		b.WriteString("\n  ")
		b.WriteString(item.String())
	}
	b.WriteString("\n")
	b.WriteString(board[end:])
	return b.String(), nil
}

// InsertRoutesFile reads the board at src, inserts items and writes the
// result to dst. src and dst may be the same file.
func InsertRoutesFile(src, dst string, items []*kicadsexp.List) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return errors.Wrap(errors.ErrCodeNotFound, err, "failed to read board")
	}
	out, err := InsertRoutes(string(data), items)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, []byte(out), 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "failed to write board")
	}
	return nil
}

// ParseFragment reads back the records of a routed fragment, as produced
// by Autorouter.ToSexp, so that a stored fragment can be inserted later.
func ParseFragment(fragment string) ([]*kicadsexp.List, error) {
	nodes, err := kicadsexp.ParseString(fragment)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "failed to parse route fragment")
	}
	items := make([]*kicadsexp.List, 0, len(nodes))
	for _, n := range nodes {
		l, ok := n.(*kicadsexp.List)
		if !ok {
			return nil, errors.New(errors.ErrCodeParse, "route fragment holds a bare atom %s", n)
		}
		items = append(items, l)
	}
	return items, nil
}
