package domain

// Structure selects the shape of a compiled result.
type Structure string

const (
	// StructureFlat returns the compiled table as a flat row-oriented Frame.
	StructureFlat Structure = "flat"
	// StructureMulti returns a labeled multi-dimensional Dataset indexed by
	// run time, forecasted time, and categorical key columns.
	StructureMulti Structure = "multidimensional"
)

// ParseStructure validates an output-structure string.
func ParseStructure(s string) (Structure, error) {
	switch Structure(s) {
	case StructureFlat, StructureMulti:
		return Structure(s), nil
	default:
		return "", Validationf("output_structure", "invalid output structure %q, must be %q or %q",
			s, StructureFlat, StructureMulti)
	}
}
