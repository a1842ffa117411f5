package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/alexytsu/NIARC-2018/internal/observability"
	"github.com/alexytsu/NIARC-2018/internal/publisher"
	"github.com/alexytsu/NIARC-2018/internal/sensor"
	"github.com/alexytsu/NIARC-2018/internal/sensor/bno080"
)

var ctx = context.Background()
var rdb *redis.Client

const readingTTL = 10 * time.Minute

func InitRedis(addr string, db int) error {
	rdb = redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	_, err := rdb.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	log.Infoln("redis connected")
	return nil
}

// SaveQuatRedisSafe mirrors the latest quaternion line for a device. Write
// failures are counted, never fatal.
func SaveQuatRedisSafe(id string, line string) {
	if rdb == nil {
		log.Warnln("redis not initialized")
		return
	}
	key := "niarc:imu:" + id + ":quat"
	if err := rdb.Set(ctx, key, line, readingTTL).Err(); err != nil {
		observability.RedisSetErrors.Inc()
		log.Warnf("redis SET %s: %v", key, err)
	}
}

// GetQuatRedis returns the mirrored line, if any.
func GetQuatRedis(id string) (string, bool) {
	if rdb == nil {
		return "", false
	}
	val, err := rdb.Get(ctx, "niarc:imu:"+id+":quat").Result()
	if err != nil {
		return "", false
	}
	return val, true
}

// Mirror satisfies the manager Publisher interface.
type Mirror struct{}

func (Mirror) Publish(r sensor.IMUReadingWrapped) {
	if r.Report != bno080.SensorRotationVector && r.Report != bno080.SensorGameRotationVector {
		return
	}
	SaveQuatRedisSafe(r.ID, publisher.FormatQuat(r.Quat))
}
