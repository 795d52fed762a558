// Package redis holds the short-lived coordination state that does not
// belong in postgres.
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"studioops/backend/internal/store"
)

const chargeKeyPrefix = "studio:charge:"

// releaseScript deletes the lock only if it still holds our token, so an
// expired lock re-acquired by someone else is left alone.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type ChargeLocks struct {
	client goredis.UniversalClient
}

func NewChargeLocks(client goredis.UniversalClient) *ChargeLocks {
	return &ChargeLocks{client: client}
}

// Acquire takes the card-charge lock for an appointment. It returns
// store.ErrChargeInFlight while another checkout holds it.
func (l *ChargeLocks) Acquire(ctx context.Context, appointmentID uuid.UUID, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	err := l.client.SetArgs(ctx, chargeKey(appointmentID), token, goredis.SetArgs{Mode: "NX", TTL: ttl}).Err()
	if errors.Is(err, goredis.Nil) {
		return "", store.ErrChargeInFlight
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

// Release drops the lock if token still owns it. Releasing an expired or
// foreign lock is not an error.
func (l *ChargeLocks) Release(ctx context.Context, appointmentID uuid.UUID, token string) error {
	return releaseScript.Run(ctx, l.client, []string{chargeKey(appointmentID)}, token).Err()
}

func chargeKey(appointmentID uuid.UUID) string {
	return chargeKeyPrefix + appointmentID.String()
}

func Open(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
