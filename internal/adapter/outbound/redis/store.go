// Package redis stores sessions, transactions and refunds as versioned JSON
// documents. Writes are guarded with WATCH/MULTI so a record changes only if
// its stored version still matches.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	apperrors "github.com/uniedit/checkout/internal/utils/errors"
)

// DefaultPrefix namespaces every key written by the stores.
const DefaultPrefix = "checkout"

type envelope[T any] struct {
	Version int64 `json:"version"`
	Record  T     `json:"record"`
}

func encode[T any](version int64, record T) ([]byte, error) {
	return json.Marshal(envelope[T]{Version: version, Record: record})
}

func decode[T any](data []byte) (envelope[T], error) {
	var env envelope[T]
	err := json.Unmarshal(data, &env)
	return env, err
}

type getter interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
}

func load[T any](ctx context.Context, c getter, key string, notFound error) (envelope[T], error) {
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return envelope[T]{}, notFound
	}
	if err != nil {
		return envelope[T]{}, fmt.Errorf("get %s: %w", key, err)
	}
	env, err := decode[T](data)
	if err != nil {
		return envelope[T]{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return env, nil
}

// create writes a new record unless key exists. extra runs in the same MULTI.
func create[T any](ctx context.Context, client goredis.UniversalClient, key string, record T, extra func(goredis.Pipeliner)) error {
	data, err := encode(1, record)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	err = client.Watch(ctx, func(tx *goredis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%s already exists", key)
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			if extra != nil {
				extra(pipe)
			}
			return nil
		})
		return err
	}, key)
	if errors.Is(err, goredis.TxFailedErr) {
		return fmt.Errorf("%s already exists", key)
	}
	return err
}

// compareAndSwap replaces the record at key if its version is expected.
func compareAndSwap[T any](ctx context.Context, client goredis.UniversalClient, key string, record T, expected int64, notFound error, extra func(goredis.Pipeliner)) error {
	data, err := encode(expected+1, record)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	err = client.Watch(ctx, func(tx *goredis.Tx) error {
		current, err := load[json.RawMessage](ctx, tx, key, notFound)
		if err != nil {
			return err
		}
		if current.Version != expected {
			return apperrors.ErrVersionConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			if extra != nil {
				extra(pipe)
			}
			return nil
		})
		return err
	}, key)
	if errors.Is(err, goredis.TxFailedErr) {
		return apperrors.ErrVersionConflict
	}
	return err
}
