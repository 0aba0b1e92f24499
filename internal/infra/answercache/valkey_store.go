package answercache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/weather-copilot/internal/domain/weather"
)

// ValkeyStore persists cached answers in a Valkey-compatible database so
// replicas share upstream responses.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore constructs a new store backed by Valkey.
func NewValkeyStore(client valkey.Client, prefix string) *ValkeyStore {
	if prefix == "" {
		prefix = "answer"
	}
	return &ValkeyStore{client: client, prefix: prefix}
}

// Get implements weather.AnswerStore.
func (s *ValkeyStore) Get(ctx context.Context, key string) (weather.CachedAnswer, bool, error) {
	cmd := s.client.B().Get().Key(s.key(key)).Build()
	payload, err := s.client.Do(ctx, cmd).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return weather.CachedAnswer{}, false, nil
		}
		return weather.CachedAnswer{}, false, err
	}
	var answer weather.CachedAnswer
	if err := json.Unmarshal([]byte(payload), &answer); err != nil {
		return weather.CachedAnswer{}, false, err
	}
	return answer, true, nil
}

// Save implements weather.AnswerStore.
func (s *ValkeyStore) Save(ctx context.Context, key string, answer weather.CachedAnswer, ttl time.Duration) error {
	payload, err := json.Marshal(answer)
	if err != nil {
		return err
	}
	builder := s.client.B().Set().Key(s.key(key)).Value(string(payload))
	var cmd valkey.Completed
	if ttl > 0 {
		if ttl < time.Second {
			ttl = time.Second
		}
		cmd = builder.Ex(ttl).Build()
	} else {
		cmd = builder.Build()
	}
	return s.client.Do(ctx, cmd).Error()
}

func (s *ValkeyStore) key(key string) string {
	return s.prefix + ":" + key
}

var _ weather.AnswerStore = (*ValkeyStore)(nil)
