package people

// ConstructionData carries the values a new person is created with. Entries
// are owned by the data managers that understand them; the people data
// manager only transports them.
type ConstructionData struct {
	entries []any
}

// Entries returns the construction entries in the order they were added.
func (d ConstructionData) Entries() []any {
	return append([]any(nil), d.entries...)
}

// ConstructionBuilder accumulates ConstructionData.
type ConstructionBuilder struct {
	entries []any
}

// NewConstructionBuilder returns an empty builder.
func NewConstructionBuilder() *ConstructionBuilder {
	return &ConstructionBuilder{}
}

// Add appends an entry.
func (b *ConstructionBuilder) Add(entry any) *ConstructionBuilder {
	b.entries = append(b.entries, entry)
	return b
}

// Build returns the accumulated data and resets the builder.
func (b *ConstructionBuilder) Build() ConstructionData {
	d := ConstructionData{entries: b.entries}
	b.entries = nil
	return d
}
