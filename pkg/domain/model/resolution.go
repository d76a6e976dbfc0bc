package model

import "time"

// CacheEntry holds the outcome of one resolution of a product.
// Entries are replaced as a whole and never modified in place.
type CacheEntry struct {
	Key       string        // Product key
	Release   *Release      // nil means the selection rule matched nothing
	FetchedAt time.Time     // When the entry was stored
	TTL       time.Duration // Freshness window
}

// Age returns how long ago the entry was fetched
func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}

// IsFresh reports whether the entry can be served without revalidation
func (e *CacheEntry) IsFresh(now time.Time) bool {
	return e.Age(now) < e.TTL
}

// ResolvedProduct pairs a product with its release. Release is nil for an explicit absence.
type ResolvedProduct struct {
	Product *Product
	Release *Release
}

// ResolutionResult is the ordered outcome of resolving the registry
type ResolutionResult struct {
	ResolvedAt time.Time
	Entries    []ResolvedProduct
}

// Get returns the release of the named product. ok is false when the product is not in the result.
func (x *ResolutionResult) Get(name string) (release *Release, ok bool) {
	for _, e := range x.Entries {
		if e.Product.Name == name {
			return e.Release, true
		}
	}
	return nil, false
}

// Map returns display name to release. Absent products map to nil.
func (x *ResolutionResult) Map() map[string]*Release {
	out := make(map[string]*Release, len(x.Entries))
	for _, e := range x.Entries {
		out[e.Product.Name] = e.Release
	}
	return out
}

// Views returns presentable records of resolved products and names of absent ones, in registry order
func (x *ResolutionResult) Views() (views []*ReleaseView, missing []string) {
	views = []*ReleaseView{}
	missing = []string{}
	for _, e := range x.Entries {
		if e.Release == nil {
			missing = append(missing, e.Product.Name)
			continue
		}
		views = append(views, NewReleaseView(e.Product, e.Release))
	}
	return views, missing
}
