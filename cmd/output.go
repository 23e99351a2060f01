package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/geosnap/georaster/internal/imagery"
	"github.com/geosnap/georaster/pkg/raster"
)

func readStdin() ([]byte, error) {
	return io.ReadAll(os.Stdin)
}

// writeOutputs writes the PNG plus the optional world file and GeoJSON
// footprint sidecars.
func writeOutputs(img *raster.GeoRaster, feature *geojson.Feature, output string, worldFile, footprint bool) error {
	data, err := img.EncodePNG()
	if err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Output PNG: %s (%dx%d)\n", output, img.Width(), img.Height())

	if worldFile {
		name := replaceExt(output, ".pgw")
		if err := os.WriteFile(name, img.WorldFile(), 0o644); err != nil {
			return fmt.Errorf("write world file: %w", err)
		}
		fmt.Fprintf(os.Stderr, "World file written to '%s'.\n", name)
	}

	if footprint {
		out := imagery.WithProperties(feature, func(p geojson.Properties) {
			b := img.Bounds()
			p["mosaic:width"] = img.Width()
			p["mosaic:height"] = img.Height()
			p["mosaic:crs"] = img.CRS()
			p["mosaic:bounds"] = []float64{b.West, b.South, b.East, b.North}
		})
		data, err := json.Marshal(out)
		if err != nil {
			return fmt.Errorf("marshal footprint: %w", err)
		}
		name := replaceExt(output, ".geojson")
		if err := os.WriteFile(name, data, 0o644); err != nil {
			return fmt.Errorf("write footprint: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Footprint written to '%s'.\n", name)
	}
	return nil
}

func replaceExt(name, ext string) string {
	if idx := strings.LastIndex(name, "."); idx != -1 {
		return name[:idx] + ext
	}
	return name + ext
}
