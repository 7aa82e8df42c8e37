package geo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/carpool/internal/models"
)

// RedisGeo implements Geo using Redis GEO commands so multiple server
// instances share one index of open trip origins.
type RedisGeo struct {
	client *redis.Client
	key    string
	ctx    context.Context
}

func NewRedisGeo(addr, password, key string) *RedisGeo {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisGeo{client: c, key: key, ctx: context.Background()}
}

// NewRedisGeoWithClient is used by tests running against miniredis.
func NewRedisGeoWithClient(c *redis.Client, key string) *RedisGeo {
	return &RedisGeo{client: c, key: key, ctx: context.Background()}
}

func (r *RedisGeo) Upsert(p TripPoint) {
	name := memberName(p.TripID)
	// store as GEOADD and HSET for metadata
	_, _ = r.client.GeoAdd(r.ctx, r.key, &redis.GeoLocation{Longitude: p.Loc.Lon, Latitude: p.Loc.Lat, Name: name}).Result()
	_ = r.client.HSet(r.ctx, metaKey(p.TripID), map[string]interface{}{
		"rating":  fmt.Sprintf("%f", p.DriverRating),
		"open":    strconv.FormatBool(p.Open),
		"updated": time.Now().Format(time.RFC3339),
	}).Err()
}

func (r *RedisGeo) Remove(tripID int64) {
	_ = r.client.ZRem(r.ctx, r.key, memberName(tripID)).Err()
	_ = r.client.Del(r.ctx, metaKey(tripID)).Err()
}

func (r *RedisGeo) Nearby(lat, lon float64, limit int) []TripPoint {
	res, err := r.client.GeoRadius(r.ctx, r.key, lon, lat, &redis.GeoRadiusQuery{Radius: 50000, Unit: "m", WithCoord: true, WithDist: true, Count: limit, Sort: "ASC"}).Result()
	if err != nil {
		return nil
	}
	out := make([]TripPoint, 0, len(res))
	for _, g := range res {
		id, err := strconv.ParseInt(g.Name, 10, 64)
		if err != nil {
			continue
		}
		p := TripPoint{TripID: id, Loc: models.Coord{Lat: g.Latitude, Lon: g.Longitude}}
		if m, err := r.client.HGetAll(r.ctx, metaKey(id)).Result(); err == nil {
			if v, ok := m["rating"]; ok {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					p.DriverRating = f
				}
			}
			if v, ok := m["open"]; ok {
				p.Open = (v == "true")
			}
		}
		if !p.Open {
			continue
		}
		out = append(out, p)
	}
	return out
}

func memberName(id int64) string { return strconv.FormatInt(id, 10) }

func metaKey(id int64) string { return "trip:meta:" + memberName(id) }
