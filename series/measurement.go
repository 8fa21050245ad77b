package series

// Measurement is a line-protocol family: one logical record carrying a
// shared tag set and several numeric fields, each field stored as its own
// TimeSeries under a synthesized "measurement.field" sub-identity.
type Measurement struct {
	Name   string
	Tags   []Tag
	Fields []string
	Series []*TimeSeries // parallel to Fields
}

// FieldSeries returns the TimeSeries for field, or nil if this Measurement
// does not carry that field.
func (m *Measurement) FieldSeries(field string) *TimeSeries {
	for i, f := range m.Fields {
		if f == field {
			return m.Series[i]
		}
	}

	return nil
}

// AddField appends a new field/series pair, used the first time a field
// is observed for this measurement's tag set.
func (m *Measurement) AddField(field string, ts *TimeSeries) {
	m.Fields = append(m.Fields, field)
	m.Series = append(m.Series, ts)
}
