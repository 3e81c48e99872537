package model

// InputRecord is one row of the input sheet. The six override fields come
// from master data and are copied verbatim into the export.
type InputRecord struct {
	SKU            string `json:"sku"`
	EAN            string `json:"ean"`
	ShippingWeight string `json:"shipping_weight"`
	Color          string `json:"color"`
	ProductType    string `json:"product_type"`
	URL            string `json:"url"`
	MM43           string `json:"mm43"`
	Category       string `json:"category"`
}

// Missing reports whether the record lacks the fields needed to fetch it.
func (r InputRecord) Missing() bool {
	return r.SKU == "" || r.URL == ""
}

// Extraction is the raw attribute object returned by the model, before
// normalization. Keys are expected to be a subset of Headers.
type Extraction map[string]any
