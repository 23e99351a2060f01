// Package provider builds per-provider tile fetch URLs. Providers are
// selected through a tagged Config rather than a type hierarchy; the factory
// returns the strategy matching the discriminant.
package provider

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/geosnap/georaster/pkg/tile"
)

// Kind discriminates the supported imagery providers.
type Kind string

const (
	KindMapbox  Kind = "mapbox"
	KindGeobase Kind = "geobase"
	KindEsri    Kind = "esri"
	KindTMS     Kind = "tms"
)

var (
	ErrUnknownProvider    = errors.New("unknown tile provider")
	ErrMissingCredentials = errors.New("missing provider credentials")
	ErrMissingBaseURL     = errors.New("missing provider base URL")
)

const esriWorldImagery = "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile"

// Config carries everything a strategy needs. Fields are credential
// pass-through only; no session handling happens here.
type Config struct {
	Provider Kind

	// Mapbox
	AccessToken string

	// Geobase dynamic COG tiling
	BaseURL    string // also the TMS template base
	ImageryURL string
	APIKey     string
	Bands      []int
	Expression string

	// Generic TMS
	Extension string
	Headers   map[string]string
}

// URLStrategy turns a tile coordinate into a fetch URL. Implementations are
// stateless and safe for concurrent use.
type URLStrategy interface {
	TileURL(c tile.Coord) (string, error)
	// Headers returns static HTTP headers to attach to every tile request.
	Headers() map[string]string
}

// New selects and validates the strategy for cfg.Provider.
func New(cfg Config) (URLStrategy, error) {
	switch cfg.Provider {
	case KindMapbox:
		if cfg.AccessToken == "" {
			return nil, fmt.Errorf("%w: mapbox requires an access token", ErrMissingCredentials)
		}
		return &mapbox{token: cfg.AccessToken}, nil
	case KindGeobase:
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("%w: geobase requires a titiler base URL", ErrMissingBaseURL)
		}
		if cfg.ImageryURL == "" {
			return nil, fmt.Errorf("%w: geobase requires an imagery (COG) URL", ErrMissingBaseURL)
		}
		return &geobase{cfg: cfg}, nil
	case KindEsri:
		return esri{}, nil
	case KindTMS:
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("%w: tms requires a base URL", ErrMissingBaseURL)
		}
		ext := cfg.Extension
		if ext == "" {
			ext = "png"
		}
		return &tms{base: strings.TrimRight(cfg.BaseURL, "/"), ext: ext, key: cfg.APIKey, headers: cfg.Headers}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// mapbox serves satellite raster tiles with a query-string access token.
type mapbox struct {
	token string
}

func (m *mapbox) TileURL(c tile.Coord) (string, error) {
	return fmt.Sprintf("https://api.mapbox.com/v4/mapbox.satellite/%d/%d/%d@2x.jpg90?access_token=%s",
		c.Z, c.X, c.Y, url.QueryEscape(m.token)), nil
}

func (m *mapbox) Headers() map[string]string { return nil }

// geobase renders tiles dynamically from a COG through a titiler-style
// endpoint, parameterized by band selection and band-math expression.
type geobase struct {
	cfg Config
}

func (g *geobase) TileURL(c tile.Coord) (string, error) {
	q := url.Values{}
	q.Set("url", g.cfg.ImageryURL)
	if g.cfg.APIKey != "" {
		q.Set("apikey", g.cfg.APIKey)
	}
	for _, b := range g.cfg.Bands {
		q.Add("bidx", strconv.Itoa(b))
	}
	if g.cfg.Expression != "" {
		q.Set("expression", g.cfg.Expression)
	}
	return fmt.Sprintf("%s/cog/tiles/%d/%d/%d.png?%s",
		strings.TrimRight(g.cfg.BaseURL, "/"), c.Z, c.X, c.Y, q.Encode()), nil
}

func (g *geobase) Headers() map[string]string { return nil }

// esri serves the fixed ArcGIS REST World Imagery endpoint. Note the y/x
// path order.
type esri struct{}

func (esri) TileURL(c tile.Coord) (string, error) {
	return fmt.Sprintf("%s/%d/%d/%d", esriWorldImagery, c.Z, c.Y, c.X), nil
}

func (esri) Headers() map[string]string { return nil }

// tms serves {base}/{z}/{x}/{y}.{ext} endpoints with a bottom-left row
// origin, so the row index is flipped before substitution.
type tms struct {
	base    string
	ext     string
	key     string
	headers map[string]string
}

func (t *tms) TileURL(c tile.Coord) (string, error) {
	u := fmt.Sprintf("%s/%d/%d/%d.%s", t.base, c.Z, c.X, tile.FlipRowOrigin(c.Y, c.Z), t.ext)
	if t.key != "" {
		u += "?key=" + url.QueryEscape(t.key)
	}
	return u, nil
}

func (t *tms) Headers() map[string]string { return t.headers }
