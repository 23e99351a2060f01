package imagery

import "github.com/paulmach/orb/geojson"

// WithProperties returns a copy of the feature with its properties modified
// by mutate. The input feature and its property map are never touched; the
// geometry is shared (treated as immutable throughout this package).
func WithProperties(f *geojson.Feature, mutate func(geojson.Properties)) *geojson.Feature {
	out := geojson.NewFeature(f.Geometry)
	out.ID = f.ID
	out.BBox = f.BBox
	out.Properties = f.Properties.Clone()
	if out.Properties == nil {
		out.Properties = geojson.Properties{}
	}
	mutate(out.Properties)
	return out
}
