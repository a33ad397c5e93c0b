package rabbitmq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEmailQueues(t *testing.T) {
	queues := GetEmailQueues()
	require.Len(t, queues, 1)

	assert.Equal(t, "emails", queues[0].QueueName)
	assert.Equal(t, "email", queues[0].RoutingKey)
	assert.Equal(t, "emails.dead", queues[0].DeadLetterQueue())
	assert.Equal(t, "notifications", Exchange)
}
