package kvstore

import (
	"context"
	"time"
)

type instrumented struct {
	inner Store
	onErr func(op string)
}

// Instrument wraps a Store so every failed operation reports its op name
// ("get", "put", "ping"), used to feed the kvstore error counter. The
// wrapped store is returned unchanged when onErr is nil.
func Instrument(inner Store, onErr func(op string)) Store {
	if onErr == nil {
		return inner
	}
	return &instrumented{inner: inner, onErr: onErr}
}

func (s *instrumented) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := s.inner.Get(ctx, key)
	if err != nil {
		s.onErr("get")
	}
	return v, ok, err
}

func (s *instrumented) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	err := s.inner.Put(ctx, key, value, ttl)
	if err != nil {
		s.onErr("put")
	}
	return err
}

func (s *instrumented) Ping(ctx context.Context) error {
	err := s.inner.Ping(ctx)
	if err != nil {
		s.onErr("ping")
	}
	return err
}
