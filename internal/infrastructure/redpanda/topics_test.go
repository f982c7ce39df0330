package redpanda

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealthCheckUnreachableBroker(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := HealthCheck(ctx, []string{"127.0.0.1:1"})
	assert.ErrorContains(t, err, "ping failed")
}

func TestDefaultTopicConfigsIncludesCoreTopics(t *testing.T) {
	names := map[string]bool{}
	for _, tc := range DefaultTopicConfigs() {
		names[tc.Name] = true
		assert.Positive(t, tc.Partitions)
	}
	assert.True(t, names[TopicAuditCompleted])
	assert.True(t, names[TopicNotificationResults])
}
