package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/mohammed-shakir/coverage-lookup/internal/core/model"
	obs "github.com/mohammed-shakir/coverage-lookup/internal/core/observability"
	"github.com/mohammed-shakir/coverage-lookup/internal/invalidation"
	mylog "github.com/mohammed-shakir/coverage-lookup/internal/logger"
	"github.com/mohammed-shakir/coverage-lookup/internal/partition"
)

// Invalidator drops cached summaries; each call reports the keys removed.
type Invalidator interface {
	InvalidateAll(ctx context.Context) (int, error)
	InvalidatePartitions(ctx context.Context, ids []partition.ID) (int, error)
	InvalidateBBox(ctx context.Context, b model.Bounds) (int, error)
}

type Consumer struct {
	cfg  Config
	zlog *zerolog.Logger
	inv  Invalidator
	seen *lru.Cache[string, struct{}]
}

func New(cfg Config, zl *zerolog.Logger, inv Invalidator) (*Consumer, error) {
	if inv == nil {
		return nil, errors.New("kafkaconsumer: missing invalidator")
	}
	if zl == nil {
		zl = mylog.Discard()
	}
	size := cfg.DedupeSize
	if size <= 0 {
		size = 1024
	}
	seen, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("dedupe cache: %w", err)
	}
	base := mylog.WithComponent(context.Background(), "kafka_consumer")
	return &Consumer{cfg: cfg, zlog: mylog.FromContext(base, zl), inv: inv, seen: seen}, nil
}

// Start joins the consumer group and blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	c.zlog.Info().
		Strs("brokers", c.cfg.Brokers).
		Str("topic", c.cfg.Topic).
		Str("group", c.cfg.GroupID).
		Msg("kafka invalidation consumer starting")

	backoff := c.cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	for {
		if err := group.Consume(ctx, []string{c.cfg.Topic}, c); err != nil && ctx.Err() == nil {
			obs.IncKafkaConsumerError("consume")
			c.zlog.Error().Err(err).Str("topic", c.cfg.Topic).Msg("kafka consumer error")
		}
		select {
		case <-ctx.Done():
			c.zlog.Info().Msg("kafka invalidation consumer shutting down")
			return nil
		case <-time.After(backoff):
		}
	}
}

// ProcessOne applies a single event. Malformed and duplicate events are
// acknowledged without effect; only cache failures are returned, so the
// message is redelivered.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	zl := mylog.FromContext(ctx, c.zlog).With().
		Str("topic", msg.Topic).
		Int32("kafka_partition", msg.Partition).
		Int64("offset", msg.Offset).
		Logger()

	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		obs.IncKafkaConsumerError("decode")
		zl.Error().Err(err).Str("kind", "decode").Msg("dropping undecodable event")
		return nil
	}
	if err := ev.Validate(); err != nil {
		obs.IncKafkaConsumerError("invalid")
		zl.Error().Err(err).Str("kind", "invalid").Str("id", ev.ID).Msg("dropping invalid event")
		return nil
	}
	if c.seen.Contains(ev.ID) {
		zl.Debug().Str("id", ev.ID).Msg("duplicate event skipped")
		return nil
	}

	n, err := c.apply(ctx, ev)
	obs.ObserveInvalidation(string(ev.Op), n, err)
	if err != nil {
		obs.IncKafkaConsumerError("cache")
		zl.Error().Err(err).Str("kind", "cache").Str("id", ev.ID).Msg("invalidation failed")
		return fmt.Errorf("apply %s: %w", ev.ID, err)
	}
	c.seen.Add(ev.ID, struct{}{})

	zl.Info().
		Str("event", "invalidation").
		Str("id", ev.ID).
		Str("op", string(ev.Op)).
		Strs("partitions", ev.Partitions).
		Int("keys", n).
		Msg("invalidated keys")
	return nil
}

func (c *Consumer) apply(ctx context.Context, ev invalidation.Event) (int, error) {
	ids, err := ev.PartitionIDs()
	if err != nil {
		return 0, err
	}
	if ev.Op == invalidation.OpReload && len(ids) == 0 && ev.BBox == nil {
		return c.inv.InvalidateAll(ctx)
	}

	total := 0
	if len(ids) > 0 {
		n, err := c.inv.InvalidatePartitions(ctx, ids)
		total += n
		if err != nil {
			return total, err
		}
	}
	if ev.BBox != nil {
		n, err := c.inv.InvalidateBBox(ctx, ev.BBox.Bounds())
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
