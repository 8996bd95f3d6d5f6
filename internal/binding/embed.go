package binding

import (
	"github.com/roach88/omnistate/internal/collection"
	"github.com/roach88/omnistate/internal/ir"
)

// ForeignKey returns the field holding a reference to relation.
func ForeignKey(relation string) string {
	return relation + "_id"
}

// Embed sets row[relation] to the related row whose pk equals
// row[relation_id], or IRNull when there is none. Rows are modified in
// place. Keys match as collection.RowKey does.
func Embed(rows ir.IRArray, relation string, related ir.IRArray, pk string) {
	index := make(map[string]ir.IRObject, len(related))
	for _, r := range related {
		obj, ok := r.(ir.IRObject)
		if !ok {
			continue
		}
		if k, ok := collection.RowKey(obj[pk]); ok {
			index[k] = obj
		}
	}

	fk := ForeignKey(relation)
	for _, r := range rows {
		row, ok := r.(ir.IRObject)
		if !ok {
			continue
		}
		var embedded ir.IRValue = ir.IRNull{}
		if k, ok := collection.RowKey(row[fk]); ok {
			if match, ok := index[k]; ok {
				embedded = match.Clone()
			}
		}
		row[relation] = embedded
	}
}

// ForeignKeys returns the distinct values of row[relation_id], in first
// seen order.
func ForeignKeys(rows ir.IRArray, relation string) []ir.IRValue {
	fk := ForeignKey(relation)
	seen := make(map[string]bool)
	var out []ir.IRValue
	for _, r := range rows {
		row, ok := r.(ir.IRObject)
		if !ok {
			continue
		}
		k, ok := collection.RowKey(row[fk])
		if !ok || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, row[fk])
	}
	return out
}
