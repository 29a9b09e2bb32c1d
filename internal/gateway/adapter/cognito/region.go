package cognito

import (
	"context"

	"bookstore/internal/domain"
)

// RegionResolver determines the region a request originates from.
type RegionResolver interface {
	Resolve(ctx context.Context, sourceAddr, username string) string
}

// StaticRegions resolves regions from a fixed username table. It stands in for
// a real geolocation lookup, which sourceAddr is passed along for.
type StaticRegions struct {
	Overrides map[string]string
	Default   string
}

// DefaultRegions is the demo deployment's region table.
func DefaultRegions() StaticRegions {
	return StaticRegions{
		Overrides: map[string]string{"Toby": "UK"},
		Default:   "US",
	}
}

func (s StaticRegions) Resolve(_ context.Context, _, username string) string {
	if r, ok := s.Overrides[username]; ok && r != "" {
		return r
	}
	if s.Default == "" {
		return domain.Unknown
	}
	return s.Default
}
