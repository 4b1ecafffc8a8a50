package compare

// ComputeSimilarity returns the links present in every set and the share of
// the first set they represent, as a percentage.
//
// The denominator is always the first set's size, so the result depends on
// which query comes first even though the common links do not. A nil or empty
// first set yields 0.
func ComputeSimilarity(sets []ResultSet) (float64, LinkSet) {
	if len(sets) == 0 {
		return 0, LinkSet{}
	}

	common := sets[0].Links()
	for _, rs := range sets[1:] {
		if common.Len() == 0 {
			break
		}
		common = common.Intersect(rs.Links())
	}

	reference := sets[0].Links().Len()
	if reference == 0 {
		return 0, common
	}
	return float64(common.Len()) / float64(reference) * 100, common
}
