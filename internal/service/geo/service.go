package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ecomxpert/storefront/backend/internal/cache"
	"github.com/ecomxpert/storefront/backend/internal/model/address"
	"github.com/ecomxpert/storefront/backend/pkg/log"
)

var (
	ErrNoPlace       = errors.New("no place found for location")
	ErrQueryRequired = errors.New("search query is required")
	ErrCodeRequired  = errors.New("subdivision code is required")
)

// Service serves subdivision lists and geocoding through a shared cache.
type Service struct {
	psgc      *PSGC
	nominatim *Nominatim
	cache     cache.Cache
	ttl       time.Duration
	sf        singleflight.Group
}

// NewService wires the PSGC and Nominatim clients to c.
func NewService(psgc *PSGC, nominatim *Nominatim, c cache.Cache, ttl time.Duration) *Service {
	if c == nil {
		c = cache.NewMemoryCache()
	}
	return &Service{psgc: psgc, nominatim: nominatim, cache: c, ttl: ttl}
}

// cached runs load once per key across concurrent callers and memoises
// its JSON encoding.
func cached[T any](ctx context.Context, s *Service, key string, load func(context.Context) (T, error)) (T, error) {
	v, err, _ := s.sf.Do(key, func() (interface{}, error) {
		var out T
		data, err := s.cache.Get(ctx, key)
		if err == nil {
			if err := json.Unmarshal(data, &out); err == nil {
				return out, nil
			}
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("geo cache get error")
		}

		out, err = load(ctx)
		if err != nil {
			return out, err
		}
		if data, err := json.Marshal(out); err == nil {
			if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
				log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("geo cache set error")
			}
		}
		return out, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (s *Service) Regions(ctx context.Context) ([]address.Region, error) {
	return cached(ctx, s, "psgc:regions", s.psgc.Regions)
}

func (s *Service) Provinces(ctx context.Context, regionCode string) ([]address.Province, error) {
	if regionCode == "" {
		return nil, ErrCodeRequired
	}
	return cached(ctx, s, "psgc:provinces:"+regionCode, func(ctx context.Context) ([]address.Province, error) {
		return s.psgc.Provinces(ctx, regionCode)
	})
}

func (s *Service) CitiesMunicipalities(ctx context.Context, provinceCode string) ([]address.CityMunicipality, error) {
	if provinceCode == "" {
		return nil, ErrCodeRequired
	}
	return cached(ctx, s, "psgc:cities:"+provinceCode, func(ctx context.Context) ([]address.CityMunicipality, error) {
		return s.psgc.CitiesMunicipalities(ctx, provinceCode)
	})
}

func (s *Service) Barangays(ctx context.Context, cityCode string) ([]address.Barangay, error) {
	if cityCode == "" {
		return nil, ErrCodeRequired
	}
	return cached(ctx, s, "psgc:barangays:"+cityCode, func(ctx context.Context) ([]address.Barangay, error) {
		return s.psgc.Barangays(ctx, cityCode)
	})
}

// Search geocodes a free-text query. Blank queries are rejected.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]address.Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrQueryRequired
	}
	if limit <= 0 {
		limit = 5
	}
	key := fmt.Sprintf("nominatim:search:%d:%s", limit, strings.ToLower(query))
	return cached(ctx, s, key, func(ctx context.Context) ([]address.Place, error) {
		return s.nominatim.Search(ctx, query, limit)
	})
}

// Reverse resolves coordinates. Keys are rounded to ~1 m so nearby taps
// share a cache entry.
func (s *Service) Reverse(ctx context.Context, lat, lon float64) (address.Place, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return address.Place{}, fmt.Errorf("coordinates out of range: %v,%v", lat, lon)
	}
	key := "nominatim:reverse:" + strconv.FormatFloat(lat, 'f', 5, 64) + "," + strconv.FormatFloat(lon, 'f', 5, 64)
	return cached(ctx, s, key, func(ctx context.Context) (address.Place, error) {
		return s.nominatim.Reverse(ctx, lat, lon)
	})
}
