package automation

import (
	"context"
	"fmt"

	"github.com/deal-scanner/internal/logging"
	"github.com/deal-scanner/internal/models"
)

// BridgeNotifier delivers high-value find notifications through the
// automation bridge, which surfaces them as desktop notifications.
// Delivery is best-effort.
type BridgeNotifier struct {
	driver *BridgeDriver
	logger *logging.Logger
}

func NewBridgeNotifier(driver *BridgeDriver, logger *logging.Logger) *BridgeNotifier {
	return &BridgeNotifier{driver: driver, logger: logger}
}

type notifyRequest struct {
	Title   string  `json:"title"`
	Message string  `json:"message"`
	URL     string  `json:"url"`
	Price   float64 `json:"price"`
}

// NotifyHighValue implements engine.Notifier
func (n *BridgeNotifier) NotifyHighValue(search *models.SavedSearch, best models.Candidate) {
	ctx, cancel := context.WithTimeout(context.Background(), httpTimeout)
	defer cancel()

	req := notifyRequest{
		Title:   fmt.Sprintf("High-value find: %s", search.Name),
		Message: fmt.Sprintf("%s at $%.2f", best.Title, best.Price),
		URL:     best.URL,
		Price:   best.Price,
	}
	if err := n.driver.post(ctx, "/notify", req, nil); err != nil {
		n.logger.WithError(err).Warn("Failed to deliver notification")
	}
}
