package production

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/facelessdevhack/plati-rail-admin/internal/models"
)

// FinishOption is a valid target finish for a source alloy.
type FinishOption struct {
	ConvertID int64
	Label     string
	InStock   int
}

// TargetFinishes resolves the finishes source can be converted into from the stock
// snapshot: rows of the same model, size, pcd, holes and width with a different finish,
// minus finishes already selected for that alloy, deduplicated by finish name and sorted
// alphabetically by label.
func TargetFinishes(stock []models.StockRow, source models.StockRow, selected Selections) []FinishOption {
	taken := selected.FinishesFor(source.ID)
	seen := make(map[string]struct{})
	for _, sel := range selected {
		if sel.AlloyID == source.ID {
			seen[sel.ConvertName] = struct{}{}
		}
	}
	var out []FinishOption
	for _, row := range stock {
		if row.ID == source.ID || row.FinishID == source.FinishID || !row.SameShape(source) {
			continue
		}
		if _, ok := taken[row.ID]; ok {
			continue
		}
		name := row.FinishName
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, FinishOption{ConvertID: row.ID, Label: name, InStock: row.InHouseStock})
	}
	sortByLabel(out)
	return out
}

func sortByLabel(opts []FinishOption) {
	c := collate.New(language.English, collate.IgnoreCase)
	sort.SliceStable(opts, func(i, j int) bool {
		return c.CompareString(opts[i].Label, opts[j].Label) < 0
	})
}

// FindStock looks up a stock row by id.
func FindStock(stock []models.StockRow, id int64) (models.StockRow, bool) {
	for _, row := range stock {
		if row.ID == id {
			return row, true
		}
	}
	return models.StockRow{}, false
}
