package state

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ibisek/ogn-logbook/internal/ogn"
	"github.com/ibisek/ogn-logbook/pkg/logger"
)

// ErrNotFound is returned when a key is absent or expired.
var ErrNotFound = errors.New("state: key not found")

// KV is the narrow key-value store contract the detector and the background
// jobs share. Implemented by RedisKV; faked in tests.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// RedisKV implements KV on a Redis client.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV connects to Redis at the given address.
func NewRedisKV(addr, password string, db int) *RedisKV {
	return &RedisKV{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

// Ping verifies the connection at startup.
func (r *RedisKV) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the client.
func (r *RedisKV) Close() error {
	return r.client.Close()
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return val, err
}

func (r *RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisKV) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisKV) Keys(ctx context.Context, pattern string) ([]string, error) {
	return r.client.Keys(ctx, pattern).Result()
}

// Store provides typed access to the per-aircraft status and smoothed
// ground-speed records.
type Store struct {
	kv        KV
	statusTTL time.Duration
	speedTTL  time.Duration
	logger    *logger.Logger
}

// NewStore wraps a KV with the configured record TTLs.
func NewStore(kv KV, statusTTL, speedTTL time.Duration, log *logger.Logger) *Store {
	return &Store{
		kv:        kv,
		statusTTL: statusTTL,
		speedTTL:  speedTTL,
		logger:    log.Named("state"),
	}
}

// Status reads the status record for an aircraft. A missing or expired key
// reads as Unknown.
func (s *Store) Status(ctx context.Context, addrType ogn.AddressType, addr string) StatusRecord {
	val, err := s.kv.Get(ctx, StatusKey(addrType, addr))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Error("Failed to read status", logger.String("addr", addr), logger.Error(err))
		}
		return StatusRecord{Status: StatusUnknown}
	}
	return DecodeStatusRecord(val)
}

// SetStatus writes the status record with the standard status TTL.
func (s *Store) SetStatus(ctx context.Context, addrType ogn.AddressType, addr string, rec StatusRecord) error {
	return s.kv.Set(ctx, StatusKey(addrType, addr), rec.Encode(), s.statusTTL)
}

// Speed reads the smoothed ground speed [km/h]; false when absent.
func (s *Store) Speed(ctx context.Context, addrType ogn.AddressType, addr string) (float64, bool) {
	val, err := s.kv.Get(ctx, SpeedKey(addrType, addr))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Error("Failed to read ground speed", logger.String("addr", addr), logger.Error(err))
		}
		return 0, false
	}
	gs, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false
	}
	return gs, true
}

// SetSpeed writes the smoothed ground speed, rounded to whole km/h.
func (s *Store) SetSpeed(ctx context.Context, addrType ogn.AddressType, addr string, gs float64, ttl time.Duration) error {
	if ttl == 0 {
		ttl = s.speedTTL
	}
	val := fmt.Sprintf("%.0f", math.Round(gs))
	return s.kv.Set(ctx, SpeedKey(addrType, addr), val, ttl)
}

// Clear removes both the status and speed records for an aircraft.
func (s *Store) Clear(ctx context.Context, addrType ogn.AddressType, addr string) error {
	return s.kv.Del(ctx, StatusKey(addrType, addr), SpeedKey(addrType, addr))
}

// AirborneAircraft lists the (addrType, addr) pairs currently marked
// Airborne, by scanning all status keys.
func (s *Store) AirborneAircraft(ctx context.Context) ([]Aircraft, error) {
	keys, err := s.kv.Keys(ctx, "*-status")
	if err != nil {
		return nil, fmt.Errorf("failed to list status keys: %w", err)
	}

	var airborne []Aircraft
	for _, key := range keys {
		val, err := s.kv.Get(ctx, key)
		if err != nil {
			continue
		}
		rec := DecodeStatusRecord(val)
		if rec.Status != StatusAirborne {
			continue
		}

		// key form: {T}{addr}-status
		id := key[:len(key)-len("-status")]
		if len(id) < 2 {
			continue
		}
		addrType := ogn.AddressTypeFromShort(id[:1])
		if addrType == ogn.AddressTypeUnknown {
			continue
		}
		airborne = append(airborne, Aircraft{AddrType: addrType, Addr: id[1:]})
	}
	return airborne, nil
}

// Aircraft identifies one tracked aircraft.
type Aircraft struct {
	AddrType ogn.AddressType
	Addr     string
}
