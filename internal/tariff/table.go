package tariff

// Rate is the number of kilowatt-hours credited per naira for a disco, after
// service charge and VAT have been taken off.
type Rate float64

// DefaultRate is applied when a disco short code is missing from the table.
// An unmapped disco must not block settlement.
const DefaultRate Rate = 0.0650

// Table is an immutable disco rate lookup, loaded once at process start and
// passed by reference into the calculator.
type Table struct {
	rates map[string]Rate
}

// DefaultTable returns the published per-disco tariff rates.
func DefaultTable() *Table {
	return NewTable(map[string]Rate{
		"IKEDC":  0.0851, // Ikeja Electric
		"EKEDC":  0.0789, // Eko Electric
		"AEDC":   0.0623, // Abuja Electric
		"PHED":   0.0734, // Port Harcourt Electric
		"KEDCO":  0.0456, // Kano Electric
		"KAEDCO": 0.0567, // Kaduna Electric
		"JEDC":   0.0612, // Jos Electric
		"YEDC":   0.0534, // Yola Electric
		"BEDC":   0.0645, // Benin Electric
		"EEDC":   0.0678, // Enugu Electric
	})
}

// NewTable copies the given rates into an immutable table.
func NewTable(rates map[string]Rate) *Table {
	copied := make(map[string]Rate, len(rates))
	for code, rate := range rates {
		copied[normalize(code)] = rate
	}
	return &Table{rates: copied}
}

// Rate returns the rate for a disco short code, falling back to DefaultRate
// when the disco is unknown.
func (t *Table) Rate(disco string) Rate {
	if t == nil {
		return DefaultRate
	}
	if rate, ok := t.rates[normalize(disco)]; ok {
		return rate
	}
	return DefaultRate
}

// Known reports whether the disco short code is present in the table.
func (t *Table) Known(disco string) bool {
	if t == nil {
		return false
	}
	_, ok := t.rates[normalize(disco)]
	return ok
}

func normalize(code string) string {
	out := make([]byte, 0, len(code))
	for i := 0; i < len(code); i++ {
		c := code[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c == ' ' {
			continue
		}
		out = append(out, c)
	}
	return string(out)
}
