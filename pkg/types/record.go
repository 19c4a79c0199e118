package types

// RawRecord maps header-derived field names to raw string values.
// It is the ephemeral output of the CSV codec, alive only between
// extraction and validation. No type coercion happens at this layer.
type RawRecord map[string]string

// Clone returns a copy of the record.
func (r RawRecord) Clone() RawRecord {
	cp := make(RawRecord, len(r))
	for k, v := range r {
		cp[k] = v
	}
	return cp
}
