package kafkaconsumer

import (
	"fmt"

	"github.com/IBM/sarama"
)

// Consumer is its own sarama.ConsumerGroupHandler; one ConsumeClaim runs per
// assigned Kafka partition, so events on a partition are applied in order.
var _ sarama.ConsumerGroupHandler = (*Consumer)(nil)

func (c *Consumer) Setup(sess sarama.ConsumerGroupSession) error {
	c.zlog.Info().
		Int32("generation", sess.GenerationID()).
		Interface("claims", sess.Claims()).
		Msg("invalidation partitions assigned")
	return nil
}

func (c *Consumer) Cleanup(sess sarama.ConsumerGroupSession) error {
	c.zlog.Info().
		Int32("generation", sess.GenerationID()).
		Msg("invalidation partitions released")
	return nil
}

// ConsumeClaim marks an event's offset only once its keys are dropped. A
// failed invalidation ends the claim; the next session resumes from the last
// mark and reapplies the event.
func (c *Consumer) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("invalidation claim %s/%d: %w", claim.Topic(), claim.Partition(), ctx.Err())
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := c.ProcessOne(ctx, msg); err != nil {
				c.zlog.Warn().
					Str("topic", msg.Topic).
					Int32("kafka_partition", msg.Partition).
					Int64("offset", msg.Offset).
					Msg("invalidation claim stopped; event will be redelivered")
				return fmt.Errorf("invalidation at %s/%d@%d: %w", msg.Topic, msg.Partition, msg.Offset, err)
			}
			sess.MarkMessage(msg, "")
		}
	}
}
