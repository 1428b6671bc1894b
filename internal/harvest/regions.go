package harvest

// RegionGroup names one coverage region and the origin countries the breadth
// strategy enumerates for it.
type RegionGroup struct {
	Code      string
	Countries []string
}

// DefaultRegions returns the coverage regions, ordered by catalog priority.
// The breadth strategy walks every country in every group.
func DefaultRegions() []RegionGroup {
	return []RegionGroup{
		{Code: "KR", Countries: []string{"KR"}},
		{Code: "CN", Countries: []string{"CN", "TW", "HK"}},
		{Code: "TH", Countries: []string{"TH"}},
		{Code: "TR", Countries: []string{"TR"}},
		{Code: "JP", Countries: []string{"JP"}},
		{Code: "IN", Countries: []string{"IN"}},
		{Code: "WESTERN", Countries: []string{"US", "GB", "FR", "DE", "ES", "IT"}},
		{Code: "LATAM", Countries: []string{"BR", "MX", "AR", "CO"}},
		{Code: "SEA", Countries: []string{"PH", "ID", "VN", "MY", "SG"}},
	}
}

// DefaultSortOrders returns the discover sort rotations. Each order surfaces
// a different slice of the listing, so together they reach well past what any
// single ranking exposes.
func DefaultSortOrders() []string {
	return []string{
		"popularity.desc",
		"vote_count.desc",
		"first_air_date.desc",
		"release_date.desc",
		"revenue.desc",
		"title.asc",
		"original_title.asc",
	}
}
