package redisgeo

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/askhat-b/taxi-dispatch/config"
	"github.com/askhat-b/taxi-dispatch/pkg/uuid"
)

// Index is the on-duty driver location index backed by a single Redis GEO
// key. Drivers enter it when they go online, refresh their position while
// driving, and leave it when they go offline, so membership alone encodes
// availability.
type Index struct {
	client *redis.Client
	key    string
}

func New(ctx context.Context, cfg config.RedisConfig) (*Index, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Index{client: client, key: cfg.GeoKey}, nil
}

func (i *Index) Close() error {
	return i.client.Close()
}

// Upsert adds or moves a driver in the index.
func (i *Index) Upsert(ctx context.Context, driverID uuid.UUID, lat, lon float64) error {
	err := i.client.GeoAdd(ctx, i.key, &redis.GeoLocation{
		Name:      driverID.String(),
		Latitude:  lat,
		Longitude: lon,
	}).Err()
	if err != nil {
		return fmt.Errorf("geo index: Upsert: %w", err)
	}
	return nil
}

// Remove takes a driver off duty.
func (i *Index) Remove(ctx context.Context, driverID uuid.UUID) error {
	if err := i.client.ZRem(ctx, i.key, driverID.String()).Err(); err != nil {
		return fmt.Errorf("geo index: Remove: %w", err)
	}
	return nil
}

// Nearby returns up to limit on-duty drivers within radiusKm of the point,
// closest first.
func (i *Index) Nearby(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]uuid.UUID, error) {
	res, err := i.client.GeoSearch(ctx, i.key, &redis.GeoSearchQuery{
		Latitude:   lat,
		Longitude:  lon,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
		Count:      limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("geo index: Nearby: %w", err)
	}
	// GEOSEARCH without WITHCOORD returns member names only.
	return parseMembers(res), nil
}

// Region returns up to limit on-duty drivers anywhere in the operating
// region (the whole index).
func (i *Index) Region(ctx context.Context, limit int) ([]uuid.UUID, error) {
	res, err := i.client.ZRangeByScore(ctx, i.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "+inf",
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("geo index: Region: %w", err)
	}

	return parseMembers(res), nil
}

func parseMembers(names []string) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(names))
	for _, name := range names {
		id, err := uuid.Parse(name)
		if err != nil {
			// Foreign members are skipped, not fatal.
			continue
		}
		out = append(out, id)
	}
	return out
}
