package data

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stake-plus/filedao/src/governance"
)

const (
	noncePrefix = "nonce:"
	// EventStream carries committed governance events.
	EventStream = "filedao.events"
)

// ConnectRedis parses a redis:// URL and returns a client.
func ConnectRedis(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return redis.NewClient(opt), nil
}

func SetNonce(ctx context.Context, rdb *redis.Client, addr, nonce string) error {
	return rdb.Set(ctx, noncePrefix+addr, nonce, 5*time.Minute).Err()
}

func GetAndDelNonce(ctx context.Context, rdb *redis.Client, addr string) (string, error) {
	return rdb.GetDel(ctx, noncePrefix+addr).Result()
}

// Events publishes governance events to a Redis stream.
type Events struct {
	rdb    *redis.Client
	maxLen int64
}

func NewEvents(rdb *redis.Client) *Events { return &Events{rdb: rdb, maxLen: 10000} }

func (e *Events) Publish(ctx context.Context, ev governance.Event) error {
	_, err := e.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: EventStream,
		MaxLen: e.maxLen,
		Approx: true,
		Values: EncodeEvent(ev),
	}).Result()
	return err
}

func EncodeEvent(ev governance.Event) map[string]interface{} {
	return map[string]interface{}{
		"kind":     string(ev.Kind),
		"actor":    ev.Actor,
		"member":   ev.Member,
		"proposal": ev.ProposalID,
		"type":     ev.Type.String(),
		"cid":      ev.CID,
		"file":     ev.FileName,
		"support":  strconv.FormatBool(ev.Support),
		"time":     ev.At.Unix(),
	}
}

// DecodeEvent reverses EncodeEvent for values read back from the stream.
func DecodeEvent(values map[string]interface{}) (governance.Event, error) {
	str := func(k string) string {
		s, _ := values[k].(string)
		return s
	}
	ev := governance.Event{
		Kind:     governance.EventKind(str("kind")),
		Actor:    str("actor"),
		Member:   str("member"),
		CID:      str("cid"),
		FileName: str("file"),
	}
	if ev.Kind == "" {
		return ev, fmt.Errorf("event without kind")
	}
	var err error
	if s := str("proposal"); s != "" {
		if ev.ProposalID, err = strconv.ParseUint(s, 10, 64); err != nil {
			return ev, fmt.Errorf("proposal id: %w", err)
		}
	}
	if s := str("type"); s != "" {
		// membership events carry the zero type; ignore unknown names
		if t, err := governance.ParseProposalType(s); err == nil {
			ev.Type = t
		}
	}
	ev.Support, _ = strconv.ParseBool(str("support"))
	if s := str("time"); s != "" {
		sec, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return ev, fmt.Errorf("time: %w", err)
		}
		ev.At = time.Unix(sec, 0).UTC()
	}
	return ev, nil
}
