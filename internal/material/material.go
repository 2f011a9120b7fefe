// Package material holds the deposition material table used to pre-fill
// density and z-ratio for a run.
//
// Densities come from the Kojundo Chemical Laboratory support book (2022);
// z-ratios from the crystal-oscillation deposition controller manual and the
// INFICON STM-2 manual appendix.
package material

import (
	"sort"
	"strings"
)

// Properties are the per-material values the monitor is programmed with.
type Properties struct {
	Density float64 `toml:"density"`
	ZRatio  float64 `toml:"z_ratio"`
}

var table = map[string]Properties{
	"Al":  {Density: 2.699, ZRatio: 1.08},
	"Au":  {Density: 19.320, ZRatio: 0.381},
	"CaO": {Density: 3.350, ZRatio: 1.000},
	"Cr":  {Density: 7.19, ZRatio: 0.305},
	"Cu":  {Density: 8.96, ZRatio: 0.437},
	"Fe":  {Density: 7.874, ZRatio: 0.349},
	"Ge":  {Density: 5.323, ZRatio: 0.516},
	"Mg":  {Density: 1.740, ZRatio: 1.610},
	"Mn":  {Density: 7.44, ZRatio: 0.377},
	"Pb":  {Density: 11.350, ZRatio: 1.13},
	"Sn":  {Density: 7.310, ZRatio: 0.72},
	"Tb":  {Density: 8.229, ZRatio: 0.66},
	"Ti":  {Density: 4.54, ZRatio: 0.628},
}

// Lookup returns the properties for name. Matching ignores surrounding
// whitespace but is case sensitive (Co and CO are different things).
func Lookup(name string) (Properties, bool) {
	p, ok := table[strings.TrimSpace(name)]
	return p, ok
}

// Names returns the known materials in sorted order.
func Names() []string {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
