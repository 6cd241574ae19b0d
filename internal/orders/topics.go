package orders

const (
	TopicChargeOutcome   = "storefront.charge.outcome"
	TopicWebhookReceived = "storefront.webhook.received"
	TopicWebhookDead     = "storefront.webhook.dead"
)

// Partition key = order_id, so every event of one order keeps its order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
