// Package catalog turns extraction output into export rows and manages the
// export files themselves.
package catalog

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"catalogprj/internal/model"
)

// Normalize maps raw model output onto the fixed schema. Fields the model
// did not return, or returned blank, become NA. Master-data fields from the
// input record are then applied on top and always win, except category,
// which only fills other_information when the model left it empty.
// A nil raw produces the all-NA row for rec.
func Normalize(raw model.Extraction, rec model.InputRecord) model.SchemaRow {
	row := model.NewRow()
	for i, name := range model.Headers {
		v, ok := raw[name]
		if !ok {
			continue
		}
		row.Set(model.Field(i), render(v))
	}

	row.Set(model.FieldSKU, rec.SKU)
	row.Set(model.FieldBaseCode, rec.SKU)
	row.Set(model.FieldLuluEAN, rec.EAN)
	row.Set(model.FieldShippingWeight, rec.ShippingWeight)
	row.Set(model.FieldColor, rec.Color)
	row.Set(model.FieldLuluProductType, rec.ProductType)
	row.Set(model.FieldVersion, rec.MM43)
	if row.IsNA(model.FieldOtherInformation) {
		row.Set(model.FieldOtherInformation, rec.Category)
	}
	return row
}

// NARow is the row written when a record could not be extracted.
func NARow(rec model.InputRecord) model.SchemaRow {
	return Normalize(nil, rec)
}

// render flattens a JSON value into a single CSV cell.
func render(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s := strings.TrimSpace(render(e)); s != "" && s != model.NA {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}
