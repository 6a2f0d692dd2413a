package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ecomxpert/storefront/backend/internal/metrics"
	"github.com/ecomxpert/storefront/backend/internal/model/address"
)

type httpGetter struct {
	baseURL   string
	userAgent string
	service   string
	http      *http.Client
}

func (g httpGetter) get(ctx context.Context, path, endpoint string, query url.Values, out interface{}) error {
	target := g.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	started := time.Now()
	resp, err := g.http.Do(req)
	if err != nil {
		metrics.ObserveUpstream(g.service, endpoint, "error", started)
		return fmt.Errorf("%s %s: %w", g.service, endpoint, err)
	}
	defer resp.Body.Close()
	metrics.ObserveUpstream(g.service, endpoint, strconv.Itoa(resp.StatusCode), started)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", g.service, endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", g.service, endpoint, err)
	}
	return nil
}

// PSGC reads Philippine subdivisions from the PSGC API.
type PSGC struct {
	g httpGetter
}

// NewPSGC returns a client for baseURL (e.g. https://psgc.gitlab.io/api).
func NewPSGC(baseURL string, hc *http.Client) *PSGC {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &PSGC{g: httpGetter{baseURL: strings.TrimRight(baseURL, "/"), service: "psgc", http: hc}}
}

type psgcEntry struct {
	Code             string `json:"code"`
	Name             string `json:"name"`
	RegionName       string `json:"regionName"`
	RegionCode       string `json:"regionCode"`
	ProvinceCode     string `json:"provinceCode"`
	CityCode         any    `json:"cityCode"`
	MunicipalityCode any    `json:"municipalityCode"`
	IsCity           bool   `json:"isCity"`
}

func codeOf(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// Regions lists all regions.
func (p *PSGC) Regions(ctx context.Context) ([]address.Region, error) {
	var rows []psgcEntry
	if err := p.g.get(ctx, "/regions/", "regions", nil, &rows); err != nil {
		return nil, err
	}
	out := make([]address.Region, 0, len(rows))
	for _, r := range rows {
		out = append(out, address.Region{Code: r.Code, Name: r.Name, RegionName: r.RegionName})
	}
	return out, nil
}

// Provinces lists the provinces of a region.
func (p *PSGC) Provinces(ctx context.Context, regionCode string) ([]address.Province, error) {
	var rows []psgcEntry
	path := "/regions/" + url.PathEscape(regionCode) + "/provinces/"
	if err := p.g.get(ctx, path, "provinces", nil, &rows); err != nil {
		return nil, err
	}
	out := make([]address.Province, 0, len(rows))
	for _, r := range rows {
		out = append(out, address.Province{Code: r.Code, Name: r.Name, RegionCode: r.RegionCode})
	}
	return out, nil
}

// CitiesMunicipalities lists the cities and municipalities of a province.
func (p *PSGC) CitiesMunicipalities(ctx context.Context, provinceCode string) ([]address.CityMunicipality, error) {
	var rows []psgcEntry
	path := "/provinces/" + url.PathEscape(provinceCode) + "/cities-municipalities/"
	if err := p.g.get(ctx, path, "cities_municipalities", nil, &rows); err != nil {
		return nil, err
	}
	out := make([]address.CityMunicipality, 0, len(rows))
	for _, r := range rows {
		out = append(out, address.CityMunicipality{Code: r.Code, Name: r.Name, ProvinceCode: r.ProvinceCode, IsCity: r.IsCity})
	}
	return out, nil
}

// Barangays lists the barangays of a city or municipality.
func (p *PSGC) Barangays(ctx context.Context, cityCode string) ([]address.Barangay, error) {
	var rows []psgcEntry
	path := "/cities-municipalities/" + url.PathEscape(cityCode) + "/barangays/"
	if err := p.g.get(ctx, path, "barangays", nil, &rows); err != nil {
		return nil, err
	}
	out := make([]address.Barangay, 0, len(rows))
	for _, r := range rows {
		parent := codeOf(r.CityCode)
		if parent == "" {
			parent = codeOf(r.MunicipalityCode)
		}
		if parent == "" {
			parent = cityCode
		}
		out = append(out, address.Barangay{Code: r.Code, Name: r.Name, CityMunicipalityCode: parent})
	}
	return out, nil
}

// Nominatim is an OpenStreetMap geocoding client.
type Nominatim struct {
	g httpGetter
}

// NewNominatim returns a client for baseURL. Nominatim requires an
// identifying User-Agent.
func NewNominatim(baseURL, userAgent string, hc *http.Client) *Nominatim {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Nominatim{g: httpGetter{baseURL: strings.TrimRight(baseURL, "/"), userAgent: userAgent, service: "nominatim", http: hc}}
}

type nominatimPlace struct {
	DisplayName string               `json:"display_name"`
	Lat         string               `json:"lat"`
	Lon         string               `json:"lon"`
	Address     address.PlaceAddress `json:"address"`
	Error       string               `json:"error"`
}

func (n nominatimPlace) toPlace() address.Place {
	lat, _ := strconv.ParseFloat(n.Lat, 64)
	lon, _ := strconv.ParseFloat(n.Lon, 64)
	return address.Place{DisplayName: n.DisplayName, Lat: lat, Lon: lon, Address: n.Address}
}

// Search returns up to limit places matching query.
func (n *Nominatim) Search(ctx context.Context, query string, limit int) ([]address.Place, error) {
	if limit <= 0 {
		limit = 5
	}
	q := url.Values{}
	q.Set("format", "json")
	q.Set("addressdetails", "1")
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))

	var rows []nominatimPlace
	if err := n.g.get(ctx, "/search", "search", q, &rows); err != nil {
		return nil, err
	}
	out := make([]address.Place, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toPlace())
	}
	return out, nil
}

// Reverse resolves coordinates to a place.
func (n *Nominatim) Reverse(ctx context.Context, lat, lon float64) (address.Place, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))

	var row nominatimPlace
	if err := n.g.get(ctx, "/reverse", "reverse", q, &row); err != nil {
		return address.Place{}, err
	}
	if row.Error != "" {
		return address.Place{}, fmt.Errorf("%w: %s", ErrNoPlace, row.Error)
	}
	place := row.toPlace()
	if place.Lat == 0 && place.Lon == 0 {
		place.Lat, place.Lon = lat, lon
	}
	return place, nil
}
