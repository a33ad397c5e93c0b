package rabbitmq

const (
	// Exchange direct-обменник для фоновых заданий.
	Exchange = "notifications"
	// DeadLetterExchange обменник для отклонённых сообщений.
	DeadLetterExchange = "notifications.dead"
)

// Очередь писем и её ключ маршрутизации.
const (
	EmailQueue      = "emails"
	EmailRoutingKey = "email"
)

// QueueConfig очередь и ключ, которым она привязана к Exchange.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// DeadLetterQueue имя очереди для отклонённых сообщений.
func (q QueueConfig) DeadLetterQueue() string {
	return q.QueueName + ".dead"
}

// GetEmailQueues возвращает очереди, которые нужны sender.
func GetEmailQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: EmailQueue, RoutingKey: EmailRoutingKey},
	}
}
