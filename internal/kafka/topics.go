package kafka

import (
	"errors"
	"fmt"
	"strings"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

// EnsureTopics creates any of the publisher's topics the cluster does not
// know yet. Existing topics are left untouched.
func EnsureTopics(brokers []string, topics Topics, partitions int32, logger zerolog.Logger) error {
	topics = topics.withDefaults()

	admin, err := sarama.NewClusterAdmin(brokers, NewConfig())
	if err != nil {
		return fmt.Errorf("kafka admin: %w", err)
	}
	defer admin.Close()

	existing, err := admin.ListTopics()
	if err != nil {
		return fmt.Errorf("list topics: %w", err)
	}

	for _, topic := range []string{topics.Events, topics.Cycles} {
		if isInternalTopic(topic) {
			continue
		}
		if _, ok := existing[topic]; ok {
			continue
		}

		err := admin.CreateTopic(topic, &sarama.TopicDetail{
			NumPartitions:     partitions,
			ReplicationFactor: 1,
		}, false)
		if errors.Is(err, sarama.ErrTopicAlreadyExists) {
			continue
		}
		if err != nil {
			return fmt.Errorf("create topic %s: %w", topic, err)
		}
		logger.Info().Str("topic", topic).Msg("created topic")
	}
	return nil
}

func isInternalTopic(topic string) bool {
	return strings.HasPrefix(topic, "__")
}
