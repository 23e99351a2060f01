package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/geosnap/georaster/internal/fetch"
	"github.com/geosnap/georaster/internal/imagery"
	"github.com/geosnap/georaster/internal/provider"
)

var cfgFile string

// rootCmd fetches the mosaic for a polygon and writes it to disk.
var rootCmd = &cobra.Command{
	Use:   "georaster",
	Short: "Fetch slippy-map imagery for a polygon as one georeferenced raster",
	Long: `georaster downloads the map tiles covering a geographic polygon, stitches
them into a single raster and attaches an affine transform so every pixel maps
to world coordinates. Output is PNG, optionally with an ESRI world file.

Examples:
  # Fetch ESRI World Imagery for a GeoJSON polygon, zoom chosen automatically
  georaster --geojson field.geojson --provider esri -o field.png

  # Explicit zoom over a bounding box from an OSM-style TMS endpoint
  georaster --bbox 37.37,-122.92,38.23,-121.56 --zoom 10 --provider tms \
    --url https://tile.example.org/tiles --ext png -o bay.png

  # Mapbox satellite with a world file and a square output
  georaster --geojson site.geojson --provider mapbox --token $MAPBOX_TOKEN \
    --square -w -o site.png

  # Dynamically rendered COG with band math
  georaster --geojson aoi.geojson --provider geobase --url https://titiler.example.com \
    --cog https://data.example.com/scene.tif --band 4 --band 3 \
    --expression "(b4-b3)/(b4+b3)" -o ndvi.png

  # Start the HTTP server
  georaster serve --port 8080`,
	RunE: runFetch,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.georaster.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")

	// Provider flags, shared with the serve subcommand.
	rootCmd.PersistentFlags().String("provider", "esri", "tile provider (mapbox|geobase|esri|tms)")
	rootCmd.PersistentFlags().String("url", "", "provider base URL (tms template base or titiler endpoint)")
	rootCmd.PersistentFlags().String("cog", "", "imagery COG URL for the geobase provider")
	rootCmd.PersistentFlags().String("token", "", "mapbox access token")
	rootCmd.PersistentFlags().String("api-key", "", "provider API key (geobase apikey / tms key parameter)")
	rootCmd.PersistentFlags().String("ext", "png", "tile extension for tms providers")
	rootCmd.PersistentFlags().String("user-agent", "georaster/1.0", "HTTP User-Agent header")

	// Input options
	rootCmd.Flags().String("geojson", "", "GeoJSON feature file containing the polygon ('-' for stdin)")
	rootCmd.Flags().String("bbox", "", "bounding box as 'min-lat,min-lon,max-lat,max-lon'")

	// Imagery options
	rootCmd.Flags().Int("zoom", 0, "explicit zoom level (default: chosen automatically)")
	rootCmd.Flags().IntSlice("band", nil, "source band selection (repeatable, geobase only)")
	rootCmd.Flags().String("expression", "", "band-math expression (geobase only)")
	rootCmd.Flags().Bool("square", false, "force a square output raster")
	rootCmd.Flags().Int("max-tiles", 0, "tile budget cap (default 100)")

	// Output options
	rootCmd.Flags().StringP("output", "o", "", "output PNG file")
	rootCmd.Flags().BoolP("worldfile", "w", false, "write an ESRI world file next to the output")
	rootCmd.Flags().Bool("footprint", false, "write a GeoJSON footprint of the mosaic next to the output")

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		viper.BindPFlag(f.Name, f)
	})
	rootCmd.Flags().VisitAll(func(f *pflag.Flag) {
		viper.BindPFlag(f.Name, f)
	})
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".georaster")
	}

	viper.SetEnvPrefix("GEORASTER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func newLogger() (*zap.Logger, error) {
	if viper.GetBool("verbose") {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func providerConfig() provider.Config {
	return provider.Config{
		Provider:    provider.Kind(viper.GetString("provider")),
		AccessToken: viper.GetString("token"),
		BaseURL:     viper.GetString("url"),
		ImageryURL:  viper.GetString("cog"),
		APIKey:      viper.GetString("api-key"),
		Extension:   viper.GetString("ext"),
	}
}

func runFetch(cmd *cobra.Command, args []string) error {
	feature, err := loadFeature()
	if err != nil {
		return err
	}
	if feature == nil {
		return cmd.Help()
	}

	output := viper.GetString("output")
	if output == "" {
		return fmt.Errorf("output file is required (use -o)")
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	opts := imagery.Options{
		Bands:         viper.GetIntSlice("band"),
		Expression:    viper.GetString("expression"),
		RequireSquare: viper.GetBool("square"),
		MaxTiles:      viper.GetInt("max-tiles"),
	}
	if cmd.Flags().Changed("zoom") {
		opts.Zoom = viper.GetInt("zoom")
		opts.ZoomSet = true
	}

	fetcher := fetch.New(viper.GetString("user-agent"), logger)
	svc := imagery.NewService(providerConfig(), fetcher, logger)

	img, err := svc.GetImage(context.Background(), feature, opts)
	if err != nil {
		return err
	}

	return writeOutputs(img, feature, output, viper.GetBool("worldfile"), viper.GetBool("footprint"))
}

// loadFeature builds the input feature from --geojson or --bbox. Returns nil
// when neither is given.
func loadFeature() (*geojson.Feature, error) {
	path := viper.GetString("geojson")
	bbox := viper.GetString("bbox")

	switch {
	case path != "" && bbox != "":
		return nil, fmt.Errorf("specify either --geojson or --bbox, not both")
	case path != "":
		var data []byte
		var err error
		if path == "-" {
			data, err = readStdin()
		} else {
			data, err = os.ReadFile(path)
		}
		if err != nil {
			return nil, fmt.Errorf("read geojson: %w", err)
		}
		return parseFeature(data)
	case bbox != "":
		return bboxFeature(bbox)
	default:
		return nil, nil
	}
}

// parseFeature accepts a bare Feature or a FeatureCollection (first feature).
func parseFeature(data []byte) (*geojson.Feature, error) {
	if f, err := geojson.UnmarshalFeature(data); err == nil {
		return f, nil
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("input is neither a GeoJSON feature nor a feature collection: %w", err)
	}
	if len(fc.Features) == 0 {
		return nil, fmt.Errorf("feature collection is empty")
	}
	return fc.Features[0], nil
}

// bboxFeature converts 'min-lat,min-lon,max-lat,max-lon' into a polygon
// feature.
func bboxFeature(s string) (*geojson.Feature, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox must be in format 'min-lat,min-lon,max-lat,max-lon'")
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid bbox component %q: %w", p, err)
		}
		vals[i] = v
	}
	minLat, minLon, maxLat, maxLon := vals[0], vals[1], vals[2], vals[3]
	ring := orb.Ring{
		{minLon, minLat},
		{maxLon, minLat},
		{maxLon, maxLat},
		{minLon, maxLat},
		{minLon, minLat},
	}
	return geojson.NewFeature(orb.Polygon{ring}), nil
}
