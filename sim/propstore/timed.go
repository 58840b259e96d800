package propstore

// Timed pairs a column with the simulation time of each id's last write.
type Timed struct {
	Column
	times *NumericColumn[float64]
}

// NewTimed wraps col. Ids never written report initial as their time.
func NewTimed(col Column, initial float64) *Timed {
	return &Timed{Column: col, times: NewNumericColumn(initial)}
}

// SetAt stores v for id and records t as its assignment time.
func (c *Timed) SetAt(id int, v any, t float64) {
	c.Column.Set(id, v)
	c.times.SetValue(id, t)
}

// TimeOf returns the time of the last write to id.
func (c *Timed) TimeOf(id int) float64 {
	return c.times.GetValue(id)
}

// Expand grows the value and time columns together.
func (c *Timed) Expand(n int) {
	c.Column.Expand(n)
	c.times.Expand(n)
}
