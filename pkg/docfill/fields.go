package docfill

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// FieldMap maps placeholder names to substitution values. Names are case
// sensitive; missing names render as empty strings.
type FieldMap map[string]string

// WithAliases returns a copy of m in which each canonical name that is
// absent or empty is filled from its lower-camel spelling ("City" from
// "city").
func (m FieldMap) WithAliases(canonical ...string) FieldMap {
	out := make(FieldMap, len(m)+len(canonical))
	for k, v := range m {
		out[k] = v
	}
	for _, name := range canonical {
		if out[name] != "" {
			continue
		}
		if v, ok := m[lowerFirst(name)]; ok {
			out[name] = v
		}
	}
	return out
}

func lowerFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[n:]
}

// UnmarshalJSON accepts any flat JSON object. Numbers and booleans are kept
// in their JSON spelling; null becomes an empty string.
func (m *FieldMap) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(FieldMap, len(raw))
	for k, v := range raw {
		s, err := scalarString(v)
		if err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = s
	}
	*m = out
	return nil
}

func scalarString(v json.RawMessage) (string, error) {
	trimmed := strings.TrimSpace(string(v))
	switch {
	case trimmed == "null":
		return "", nil
	case strings.HasPrefix(trimmed, `"`):
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return "", err
		}
		return s, nil
	case strings.HasPrefix(trimmed, "{"), strings.HasPrefix(trimmed, "["):
		return "", fmt.Errorf("nested values are not supported")
	default:
		return trimmed, nil
	}
}

// Cents is a decimal amount with two fraction digits, stored as hundredths.
type Cents int64

// ParseCents parses "12", "12.5", "12.50" or "12,50". More than two
// fraction digits are rounded half away from zero.
func ParseCents(s string) (Cents, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimLeft(s, "+-")

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	for _, r := range frac {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
	}

	frac += "000"
	f, _ := strconv.ParseInt(frac[:2], 10, 64)
	c := w*100 + f
	if frac[2] >= '5' {
		c++
	}
	if neg {
		c = -c
	}
	return Cents(c), nil
}

// Mul returns c multiplied by a whole quantity.
func (c Cents) Mul(quantity int) Cents {
	return c * Cents(quantity)
}

// String formats the amount with exactly two fraction digits.
func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON writes the amount as a JSON number.
func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalJSON accepts a JSON number or string.
func (c *Cents) UnmarshalJSON(data []byte) error {
	s, err := scalarString(data)
	if err != nil {
		return err
	}
	v, err := ParseCents(s)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// TableRow is one line item of the repeating table.
type TableRow struct {
	Name      string `json:"product"`
	Date      string `json:"date"`
	Quantity  int    `json:"quantity"`
	UnitPrice Cents  `json:"price"`
	Total     Cents  `json:"total"`
}

// UnmarshalJSON accepts both the form field names (product, price) and the
// model names (name, unitPrice). Quantity and amounts may be strings.
func (r *TableRow) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	pick := func(keys ...string) (string, error) {
		for _, k := range keys {
			if v, ok := raw[k]; ok {
				return scalarString(v)
			}
		}
		return "", nil
	}

	var row TableRow
	var err error
	if row.Name, err = pick("product", "name"); err != nil {
		return err
	}
	if row.Date, err = pick("date"); err != nil {
		return err
	}

	qty, err := pick("quantity")
	if err != nil {
		return err
	}
	if qty = strings.TrimSpace(qty); qty != "" {
		if row.Quantity, err = strconv.Atoi(qty); err != nil || row.Quantity < 0 {
			return fmt.Errorf("invalid quantity %q", qty)
		}
	}

	for _, amount := range []struct {
		dst  *Cents
		keys []string
	}{
		{&row.UnitPrice, []string{"price", "unitPrice"}},
		{&row.Total, []string{"total"}},
	} {
		s, err := pick(amount.keys...)
		if err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			continue
		}
		if *amount.dst, err = ParseCents(s); err != nil {
			return err
		}
	}

	*r = row
	return nil
}

// Values returns the row-scoped placeholder values.
func (r TableRow) Values() map[string]string {
	return map[string]string{
		"product":  r.Name,
		"name":     r.Name,
		"date":     r.Date,
		"quantity": strconv.Itoa(r.Quantity),
		"price":    r.UnitPrice.String(),
		"total":    r.Total.String(),
	}
}

// ParseRows decodes a JSON array of rows. Empty input yields no rows.
func ParseRows(data []byte) ([]TableRow, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	var rows []TableRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, &InputError{Field: "rows", Message: err.Error()}
	}
	return rows, nil
}

// ParseFields decodes a flat JSON object. Empty input yields an empty map.
func ParseFields(data []byte) (FieldMap, error) {
	if strings.TrimSpace(string(data)) == "" {
		return FieldMap{}, nil
	}
	var fields FieldMap
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, &InputError{Field: "fields", Message: err.Error()}
	}
	return fields, nil
}
