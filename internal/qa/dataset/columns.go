package dataset

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// headerScanRows is how many leading rows are inspected looking for the header.
const headerScanRows = 10

// Column identifies a recognized field of the tracking sheet.
type Column string

const (
	ColumnDate      Column = "Data"
	ColumnSprint    Column = "Sprint"
	ColumnTeam      Column = "Time"
	ColumnTaskName  Column = "Nome da Task"
	ColumnTaskLink  Column = "Link da Task"
	ColumnStatus    Column = "Status"
	ColumnTester    Column = "Responsável pelo teste"
	ColumnDeveloper Column = "Desenvolvedor"
	ColumnErrors    Column = "Erros"
	ColumnID        Column = "ID"
)

// ReasonColumn returns the column of the reason slot n (1..MaxReasonSlots).
func ReasonColumn(n int) Column {
	if n <= 1 {
		return Column("Motivo")
	}
	return Column(fmt.Sprintf("Motivo%d", n))
}

var columnAliases = map[Column][]string{
	ColumnDate:      {"data", "date", "data do teste"},
	ColumnSprint:    {"sprint"},
	ColumnTeam:      {"time", "team", "equipe", "squad"},
	ColumnTaskName:  {"nome da task", "task", "task name", "tarefa"},
	ColumnTaskLink:  {"link da task", "link", "task link", "url"},
	ColumnStatus:    {"status", "situacao"},
	ColumnTester:    {"responsavel pelo teste", "responsavel", "tester", "qa"},
	ColumnDeveloper: {"desenvolvedor", "developer", "dev"},
	ColumnErrors:    {"erros", "errors", "error", "erro"},
	ColumnID:        {"id", "task id", "id da task"},
}

// aliasIndex maps a folded header to its column.
var aliasIndex = buildAliasIndex()

func buildAliasIndex() map[string]Column {
	idx := make(map[string]Column)
	for c, aliases := range columnAliases {
		for _, a := range aliases {
			idx[a] = c
		}
	}
	for i := 1; i <= MaxReasonSlots; i++ {
		c := ReasonColumn(i)
		idx[FoldKey(string(c))] = c
		if i > 1 {
			idx[fmt.Sprintf("motivo %d", i)] = c
		}
	}
	idx["motivo 1"] = ReasonColumn(1)
	idx["motivo1"] = ReasonColumn(1)
	return idx
}

// RecognizeColumn returns the column matching a header cell.
func RecognizeColumn(header string) (Column, bool) {
	c, ok := aliasIndex[FoldKey(header)]
	return c, ok
}

// FoldKey lowercases, strips accents and collapses whitespace, so "Responsável
// pelo  Teste" and "responsavel pelo teste" compare equal.
func FoldKey(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.Join(strings.Fields(folded), " "))
}

// findHeader returns the index of the header row and the column mapping.
// The first occurrence of a duplicated column wins.
func findHeader(rows [][]string) (int, map[Column]int) {
	limit := headerScanRows
	if len(rows) < limit {
		limit = len(rows)
	}
	for idx := 0; idx < limit; idx++ {
		mapping := make(map[Column]int)
		for pos, cell := range rows[idx] {
			c, ok := RecognizeColumn(cell)
			if !ok {
				continue
			}
			if _, dup := mapping[c]; dup {
				continue
			}
			mapping[c] = pos
		}
		if len(mapping) >= 2 {
			return idx, mapping
		}
	}
	return -1, nil
}

// orderedColumns returns the mapped columns sorted by their position.
func orderedColumns(mapping map[Column]int) []Column {
	cols := make([]Column, 0, len(mapping))
	for c := range mapping {
		cols = append(cols, c)
	}
	sort.Slice(cols, func(i, j int) bool { return mapping[cols[i]] < mapping[cols[j]] })
	return cols
}
