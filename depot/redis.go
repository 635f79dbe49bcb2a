package depot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/alovak/atm-playground/atm/models"
)

// takeScript checks every denomination before decrementing any of them.
// ARGV holds field/count pairs.
var takeScript = redis.NewScript(`
for i = 1, #ARGV, 2 do
  local have = tonumber(redis.call('HGET', KEYS[1], ARGV[i]) or '0')
  if have ~= -1 and have < tonumber(ARGV[i + 1]) then
    return {0, ARGV[i], have}
  end
end
for i = 1, #ARGV, 2 do
  if tonumber(redis.call('HGET', KEYS[1], ARGV[i])) ~= -1 then
    redis.call('HINCRBY', KEYS[1], ARGV[i], -tonumber(ARGV[i + 1]))
  end
end
return {1}
`)

var loadScript = redis.NewScript(`
if ARGV[2] == '-1' then
  redis.call('HSET', KEYS[1], ARGV[1], -1)
  return -1
end
if redis.call('HGET', KEYS[1], ARGV[1]) == '-1' then
  return -1
end
return redis.call('HINCRBY', KEYS[1], ARGV[1], ARGV[2])
`)

// RedisStore keeps the stock in a redis hash so several processes can share
// one depot.
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

func NewRedisStore(client redis.UniversalClient, key string) *RedisStore {
	if key == "" {
		key = "atm:depot"
	}

	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Take(ctx context.Context, want map[models.Banknote]int64) error {
	args := make([]interface{}, 0, len(want)*2)
	for note, count := range want {
		args = append(args, field(note), count)
	}

	res, err := takeScript.Run(ctx, s.client, []string{s.key}, args...).Slice()
	if err != nil {
		return fmt.Errorf("running take script: %w", err)
	}

	if taken, _ := res[0].(int64); taken == 1 {
		return nil
	}

	if len(res) == 3 {
		return fmt.Errorf("%v: have %v: %w", res[1], res[2], models.ErrOutOfBanknotes)
	}

	return models.ErrOutOfBanknotes
}

func (s *RedisStore) Load(ctx context.Context, note models.Banknote, count int64) error {
	if err := loadScript.Run(ctx, s.client, []string{s.key}, field(note), count).Err(); err != nil {
		return fmt.Errorf("running load script: %w", err)
	}

	return nil
}

func (s *RedisStore) Stock(ctx context.Context) ([]Slot, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("reading stock: %w", err)
	}

	slots := make([]Slot, 0, len(fields))
	for f, v := range fields {
		note, err := parseField(f)
		if err != nil {
			return nil, err
		}

		count, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing count of %s: %w", f, err)
		}

		slots = append(slots, Slot{Banknote: note, Count: count})
	}
	sortSlots(slots)

	return slots, nil
}

func field(note models.Banknote) string {
	return fmt.Sprintf("%s:%d", note.Currency, note.Value)
}

func parseField(f string) (models.Banknote, error) {
	currency, value, ok := strings.Cut(f, ":")
	if !ok {
		return models.Banknote{}, fmt.Errorf("malformed stock field %q", f)
	}

	v, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return models.Banknote{}, fmt.Errorf("malformed stock field %q: %w", f, err)
	}

	return models.Banknote{Currency: models.Currency(currency), Value: v}, nil
}
