package layout

// FieldLayout places one record field.
type FieldLayout struct {
	Name   string
	Offset uint32
}

// Info is the memory layout of one type.
type Info struct {
	FieldOffs map[string]uint32
	Fields    []FieldLayout
	Size      uint32
	Align     uint32
	// PayloadOffset is where an option/result payload starts, past the discriminant.
	PayloadOffset uint32
	// DiscSize is the width the discriminant is written with. It fills the
	// whole gap before the payload so no padding byte is left uninitialized.
	DiscSize uint32
}
