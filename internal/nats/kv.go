package nats

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/modelchat/internal/storage"
)

// KeyValueStorage implements storage.Storage on a JetStream KV bucket.
type KeyValueStorage struct {
	client *Client
	kv     jetstream.KeyValue
}

var _ storage.Storage = (*KeyValueStorage)(nil)

// NewKeyValueStorage binds to bucket, creating it if it does not exist.
func NewKeyValueStorage(ctx context.Context, client *Client, bucket string) (*KeyValueStorage, error) {
	kv, err := EnsureBucket(ctx, client.JetStream(), bucket)
	if err != nil {
		return nil, err
	}
	return &KeyValueStorage{client: client, kv: kv}, nil
}

// EnsureBucket returns the named bucket, creating it with a single-revision
// history if missing.
func EnsureBucket(ctx context.Context, js jetstream.JetStream, bucket string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, bucket)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, fmt.Errorf("failed to look up bucket %s: %w", bucket, err)
	}

	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "Per-model chat conversations",
		History:     1,
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return kv, nil
}

func (s *KeyValueStorage) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return entry.Value(), nil
}

func (s *KeyValueStorage) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.kv.Put(ctx, key, value); err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

// Delete purges the key so no revision history is left behind.
func (s *KeyValueStorage) Delete(ctx context.Context, key string) error {
	if err := s.kv.Purge(ctx, key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("failed to purge %s: %w", key, err)
	}
	return nil
}

func (s *KeyValueStorage) Ping(context.Context) error {
	if !s.client.IsConnected() {
		return errors.New("NATS not connected")
	}
	return nil
}

func (s *KeyValueStorage) Close() error {
	s.client.Close()
	return nil
}
