package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spotmap/spotmap/geo"
)

const areaCacheTTL = 24 * time.Hour

// Location is a forward geocoding result.
type Location struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// OpenCage is a client for the OpenCage geocoding API.
type OpenCage struct {
	baseURL string
	apiKey  string
	http    *http.Client
	cache   Cache
}

// NewOpenCage creates a geocoder. A nil cache disables memoization.
func NewOpenCage(baseURL, apiKey string, client *http.Client, cache Cache) *OpenCage {
	if cache == nil {
		cache = NopCache{}
	}
	return &OpenCage{baseURL: baseURL, apiKey: apiKey, http: defaultClient(client, 0), cache: cache}
}

type openCageResponse struct {
	Results []struct {
		Formatted string `json:"formatted"`
		Geometry  struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"geometry"`
		Components map[string]interface{} `json:"components"`
	} `json:"results"`
}

func (o *OpenCage) query(ctx context.Context, q string) (*openCageResponse, error) {
	if o.baseURL == "" || o.apiKey == "" {
		return nil, fmt.Errorf("opencage: %w", ErrNotConfigured)
	}
	u, err := url.Parse(o.baseURL)
	if err != nil {
		return nil, fmt.Errorf("opencage: bad url: %w", err)
	}
	params := u.Query()
	params.Set("key", o.apiKey)
	params.Set("q", q)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("opencage request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, upstreamError("opencage", resp)
	}
	var out openCageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("opencage decode: %w", err)
	}
	return &out, nil
}

// Forward resolves a free-text place to coordinates.
func (o *OpenCage) Forward(ctx context.Context, place string) (Location, error) {
	out, err := o.query(ctx, place)
	if err != nil {
		return Location{}, err
	}
	if len(out.Results) == 0 {
		return Location{}, ErrLocationNotFound
	}
	r := out.Results[0]
	return Location{Name: r.Formatted, Latitude: r.Geometry.Lat, Longitude: r.Geometry.Lng}, nil
}

// AreaName reverse geocodes a point to its most specific named area:
// suburb, then neighbourhood, then city_district, then city.
func (o *OpenCage) AreaName(ctx context.Context, lat, lon float64) (string, error) {
	q := strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lon, 'f', -1, 64)
	key := "cache:geo:area:" + q
	if b, ok := o.cache.Get(ctx, key); ok && len(b) > 0 {
		return string(b), nil
	}

	out, err := o.query(ctx, q)
	if err != nil {
		return "", err
	}
	if len(out.Results) == 0 {
		return "", ErrLocationNotFound
	}
	name := areaFromComponents(out.Results[0].Components)
	if name == "" {
		return "", ErrLocationNotFound
	}
	o.cache.Set(ctx, key, []byte(name), areaCacheTTL)
	return name, nil
}

func areaFromComponents(c map[string]interface{}) string {
	for _, k := range []string{"suburb", "neighbourhood", "city_district", "city"} {
		if s, ok := c[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// Box is a convenience for search queries around a forward geocoded location.
func (l Location) Box(radiusKm float64) geo.BoundingBox {
	return geo.Box(l.Latitude, l.Longitude, radiusKm)
}
