package events

// Topic constants for domain events emitted by the register.
const (
	TopicSaleCompleted     = "sale.completed"
	TopicTabOpened         = "tab.opened"
	TopicTabClosed         = "tab.closed"
	TopicStockLow          = "stock.low"
	TopicIngredientUpdated = "ingredient.updated"
)

// DefaultTopics returns the canonical list of topics.
func DefaultTopics() []string {
	return []string{
		TopicSaleCompleted,
		TopicTabOpened,
		TopicTabClosed,
		TopicStockLow,
		TopicIngredientUpdated,
	}
}

// StockLowPayload is carried by TopicStockLow events.
type StockLowPayload struct {
	IngredientID string `json:"ingredientId"`
	Name         string `json:"name"`
	Stock        string `json:"stock"`
	MinStock     string `json:"minStock"`
	Unit         string `json:"unit"`
}
