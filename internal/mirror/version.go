package mirror

// LatestVersion picks the version to materialize: the latest CreatedAt,
// ties broken by the highest ID. Versions without a URL cannot be fetched
// and are ignored. ok is false when nothing usable remains.
func LatestVersion(versions []Version) (Version, bool) {
	var (
		best  Version
		found bool
	)

	for _, v := range versions {
		if v.URL == "" {
			continue
		}

		if !found || newer(v, best) {
			best = v
			found = true
		}
	}

	return best, found
}

func newer(a, b Version) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}

	return a.ID > b.ID
}
