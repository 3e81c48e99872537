package model

import "strings"

// NA is written for every unknown or blank field.
const NA = "#NA"

// Field identifies one export column. The iota order is the column order.
type Field int

const (
	FieldSKU Field = iota
	FieldBaseCode
	FieldLuluEAN
	FieldKeywords
	FieldShippingWeight
	FieldBrand
	FieldProductTitle
	FieldBulletPoint1
	FieldBulletPoint2
	FieldBulletPoint3
	FieldBulletPoint4
	FieldBulletPoint5
	FieldBulletPoint6
	FieldProductDescription
	FieldLuluProductType
	FieldModel
	FieldWeight
	FieldInTheBox
	FieldProductDimensions
	FieldDisplayType
	FieldDisplayResolution
	FieldRAM
	FieldProcessor
	FieldWifi
	FieldBluetooth
	FieldBatteryCapacity
	FieldBatteryType
	FieldAudio
	FieldPartNumber
	FieldWebCamera
	FieldRefreshRate
	FieldStorage
	FieldVersion
	FieldGraphicsCard
	FieldHDMI
	FieldUSB
	FieldKeyboardTouchpad
	FieldAccessories
	FieldPower
	FieldModelYear
	FieldNoOfChannels
	FieldCountryOfOrigin
	FieldColor
	FieldOtherInformation
	FieldGraphicMemory
	FieldEthernet

	FieldCount int = iota
)

var fieldNames = [FieldCount]string{
	"sku", "base_code", "attributes__lulu_ean", "attributes__keywords", "attributes__shipping_weight",
	"attributes__brand", "attributes__product_title", "attributes__bullet_point_1", "attributes__bullet_point_2",
	"attributes__bullet_point_3", "attributes__bullet_point_4", "attributes__bullet_point_5", "attributes__bullet_point_6",
	"attributes__product_description", "attributes__lulu_product_type", "attributes__model", "attributes__weight",
	"attributes__in_the_box", "attributes__product_dimensions", "attributes__display_type", "attributes__display_resolution",
	"attributes__ram", "attributes__processor", "attributes__wifi", "attributes__bluetooth", "attributes__battery_capacity",
	"attributes__battery_type", "attributes__audio", "attributes__part_number", "attributes__web_camera", "attributes__refresh_rate",
	"attributes__storage", "attributes__version", "attributes__graphics_card", "attributes__hdmi", "attributes__usb",
	"attributes__keyboard_touchpad", "attributes__accessories", "attributes__power", "attributes__model_year",
	"attributes__no_of_channels", "attributes__country_of_origin", "attributes__color", "attributes__other_information",
	"attributes__graphic_memory", "attributes__ethernet",
}

// Headers is the published column order of the export.
var Headers = fieldNames[:]

func (f Field) String() string {
	if f < 0 || int(f) >= FieldCount {
		return "field(?)"
	}
	return fieldNames[f]
}

// FieldByName maps a column name back to its Field.
func FieldByName(name string) (Field, bool) {
	f, ok := fieldIndex[name]
	return f, ok
}

var fieldIndex = func() map[string]Field {
	m := make(map[string]Field, FieldCount)
	for i, name := range fieldNames {
		m[name] = Field(i)
	}
	return m
}()

// SchemaRow holds one export row. The zero value is not valid; use NewRow.
type SchemaRow struct {
	values [FieldCount]string
}

// NewRow returns a row with every field set to NA.
func NewRow() SchemaRow {
	var r SchemaRow
	for i := range r.values {
		r.values[i] = NA
	}
	return r
}

func (r SchemaRow) Get(f Field) string {
	return r.values[f]
}

// Set stores v, replacing blank values with NA.
func (r *SchemaRow) Set(f Field, v string) {
	if isBlank(v) {
		v = NA
	}
	r.values[f] = v
}

// IsNA reports whether f still holds the sentinel.
func (r SchemaRow) IsNA(f Field) bool {
	return r.values[f] == NA
}

// Record returns the values in column order, ready for a CSV writer.
func (r SchemaRow) Record() []string {
	out := make([]string, FieldCount)
	copy(out, r.values[:])
	return out
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
