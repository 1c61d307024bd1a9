package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds configuration for the JetStream key-value store.
type NATSConfig struct {
	URL           string
	Bucket        string
	MaxReconnects int
	ReconnectWait time.Duration
	TTL           time.Duration // per-bucket entry TTL, 0 for none
}

// DefaultNATSConfig returns default JetStream KV configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Bucket:        "quizbuzz",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// NATSStore implements Store on top of a NATS JetStream key-value bucket.
// Slash-separated paths are mapped to dot-separated KV keys so that
// subtree watches can use subject wildcards. Compare-and-swap uses the
// bucket's per-key revision numbers: a revision observed at read time is
// only valid for an update if no other writer committed in between, which
// is exactly the last-writer-loses behavior TryCAS requires.
type NATSStore struct {
	nc *nats.Conn
	kv jetstream.KeyValue
}

func NewNATSStore(ctx context.Context, cfg NATSConfig) (*NATSStore, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: cfg.Bucket,
		TTL:    cfg.TTL,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create KV bucket %q: %w", cfg.Bucket, err)
	}

	log.Info().Str("bucket", cfg.Bucket).Msg("connected to JetStream KV store")
	return &NATSStore{nc: nc, kv: kv}, nil
}

// Close shuts down the underlying NATS connection.
func (s *NATSStore) Close() {
	if s.nc != nil {
		s.nc.Close()
	}
}

func pathToKey(path string) string {
	return strings.ReplaceAll(path, "/", ".")
}

func keyToPath(key string) string {
	return strings.ReplaceAll(key, ".", "/")
}

func (s *NATSStore) Get(ctx context.Context, path string) ([]byte, error) {
	entry, err := s.kv.Get(ctx, pathToKey(path))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("kv get %s: %w", path, err)
	}
	return entry.Value(), nil
}

func (s *NATSStore) Put(ctx context.Context, path string, value []byte) error {
	if _, err := s.kv.Put(ctx, pathToKey(path), value); err != nil {
		return fmt.Errorf("kv put %s: %w", path, err)
	}
	return nil
}

func (s *NATSStore) Delete(ctx context.Context, path string) error {
	keys, err := s.keysUnder(ctx, path)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := s.kv.Purge(ctx, key); err != nil {
			return fmt.Errorf("kv purge %s: %w", keyToPath(key), err)
		}
	}
	return nil
}

func (s *NATSStore) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	keys, err := s.keysUnder(ctx, prefix)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]byte, len(keys))
	for _, key := range keys {
		entry, err := s.kv.Get(ctx, key)
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			continue // deleted between listing and read
		}
		if err != nil {
			return nil, fmt.Errorf("kv get %s: %w", keyToPath(key), err)
		}
		out[keyToPath(key)] = entry.Value()
	}
	return out, nil
}

func (s *NATSStore) TryCAS(ctx context.Context, path string, expectedOld, newValue []byte) (bool, error) {
	key := pathToKey(path)

	if expectedOld == nil {
		if newValue == nil {
			return false, nil
		}
		_, err := s.kv.Create(ctx, key, newValue)
		if errors.Is(err, jetstream.ErrKeyExists) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("kv create %s: %w", path, err)
		}
		return true, nil
	}

	entry, err := s.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("kv get %s: %w", path, err)
	}
	if !bytes.Equal(entry.Value(), expectedOld) {
		return false, nil
	}

	if newValue == nil {
		err = s.kv.Delete(ctx, key, jetstream.LastRevision(entry.Revision()))
	} else {
		_, err = s.kv.Update(ctx, key, newValue, entry.Revision())
	}
	if err != nil {
		// A failed revision guard means another writer won the race.
		var apiErr *jetstream.APIError
		if errors.As(err, &apiErr) {
			return false, nil
		}
		return false, fmt.Errorf("kv update %s: %w", path, err)
	}
	return true, nil
}

func (s *NATSStore) Watch(ctx context.Context, prefix string) (<-chan Event, error) {
	// Latest values only: events are re-read hints, so replaying old
	// revisions of long-lived rooms would add nothing but catch-up time.
	pattern := pathToKey(prefix) + ".>"
	watcher, err := s.kv.Watch(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("kv watch %s: %w", prefix, err)
	}

	// Exact-key changes (the prefix itself, not just children) need a
	// second watcher since ".>" requires at least one extra token.
	exact, err := s.kv.Watch(ctx, pathToKey(prefix))
	if err != nil {
		watcher.Stop()
		return nil, fmt.Errorf("kv watch %s: %w", prefix, err)
	}

	ch := make(chan Event, 64)
	go func() {
		defer close(ch)
		defer watcher.Stop()
		defer exact.Stop()

		// Initial event so observers read current state immediately.
		select {
		case ch <- Event{Path: prefix}:
		case <-ctx.Done():
			return
		}

		for {
			var entry jetstream.KeyValueEntry
			select {
			case <-ctx.Done():
				return
			case entry = <-watcher.Updates():
			case entry = <-exact.Updates():
			}
			if entry == nil {
				// nil marks the end of the initial replay
				continue
			}
			ev := Event{
				Path:    keyToPath(entry.Key()),
				Value:   entry.Value(),
				Deleted: entry.Operation() != jetstream.KeyValuePut,
			}
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (s *NATSStore) keysUnder(ctx context.Context, prefix string) ([]string, error) {
	lister, err := s.kv.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("kv list keys: %w", err)
	}
	defer lister.Stop()

	var out []string
	for key := range lister.Keys() {
		if Under(keyToPath(key), prefix) {
			out = append(out, key)
		}
	}
	return out, nil
}
