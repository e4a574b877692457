package colorscale

// Set is a set of zone codes. The zero value is an empty set.
type Set map[string]struct{}

// NewSet builds a set from zone codes.
func NewSet(zones ...string) Set {
	s := make(Set, len(zones))
	for _, z := range zones {
		s[z] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s Set) Has(zone string) bool {
	_, ok := s[zone]
	return ok
}
