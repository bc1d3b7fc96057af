package nerdgraph

import (
	"strings"

	"github.com/samber/oops"
)

type Region string

const (
	RegionUS Region = "US"
	RegionEU Region = "EU"
)

var defaultEndpoints = map[Region]string{
	RegionUS: "https://api.newrelic.com/graphql",
	RegionEU: "https://api.eu.newrelic.com/graphql",
}

// ParseRegion accepts a region name in any case. An empty name selects US.
func ParseRegion(name string) (Region, error) {
	if name == "" {
		return RegionUS, nil
	}
	region := Region(strings.ToUpper(strings.TrimSpace(name)))
	if _, ok := defaultEndpoints[region]; !ok {
		return "", oops.
			In("ParseRegion").
			With("region", name).
			Errorf("unknown region %q, expected one of US, EU", name)
	}
	return region, nil
}
