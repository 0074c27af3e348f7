// Package cache keeps the latest known vehicle positions in Redis for
// cheap dashboard reads.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fleetsense/fleettrack/core/model"
)

// Config holds the Redis connection settings.
type Config struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	// TTLSeconds bounds how long a cached position survives without
	// refresh.
	TTLSeconds int `json:"ttl_seconds"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.TTLSeconds == 0 {
		c.TTLSeconds = 300
	}
}

// RedisCache stores the freshest position per vehicle, plus a fleet geo
// set for radius queries.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, cfg Config) (*RedisCache, error) {
	cfg.SetDefaults()
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     20,
		MinIdleConns: 5,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisCache{client: client, ttl: time.Duration(cfg.TTLSeconds) * time.Second}, nil
}

// Close releases the client.
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// Ping checks connectivity.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func vehicleKey(vehicleID string) string {
	return fmt.Sprintf("vehicle:%s:position", vehicleID)
}

const geoKey = "fleet:geo"

// SetPosition stores the sample as the vehicle's current position and
// refreshes the fleet geo set in one pipeline.
func (r *RedisCache) SetPosition(ctx context.Context, s model.LocationSample) error {
	fields := map[string]interface{}{
		"lat":       s.Lat,
		"lon":       s.Lon,
		"timestamp": s.Timestamp.Unix(),
	}
	if s.SpeedKmh != nil {
		fields["speed_kmh"] = *s.SpeedKmh
	}
	if s.HeadingDeg != nil {
		fields["heading_deg"] = *s.HeadingDeg
	}
	if s.MissionID != "" {
		fields["mission_id"] = s.MissionID
	}

	pipe := r.client.Pipeline()
	key := vehicleKey(s.VehicleID)
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, r.ttl)
	pipe.GeoAdd(ctx, geoKey, &redis.GeoLocation{
		Name:      s.VehicleID,
		Longitude: s.Lon,
		Latitude:  s.Lat,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

// GetPosition returns the cached position, ok false on a cache miss.
func (r *RedisCache) GetPosition(ctx context.Context, vehicleID string) (map[string]string, bool, error) {
	fields, err := r.client.HGetAll(ctx, vehicleKey(vehicleID)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis get position failed: %w", err)
	}
	if len(fields) == 0 {
		return nil, false, nil
	}
	return fields, true, nil
}

// Nearby returns the vehicles cached within radiusKm of the point.
func (r *RedisCache) Nearby(ctx context.Context, p model.GeoPoint, radiusKm float64) ([]string, error) {
	locs, err := r.client.GeoSearch(ctx, geoKey, &redis.GeoSearchQuery{
		Longitude:  p.Lon,
		Latitude:   p.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis geo search failed: %w", err)
	}
	return locs, nil
}
