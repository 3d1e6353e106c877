package main

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"souq/internal/catalog"
	"souq/internal/notifications"
	"souq/internal/realtime"
	"souq/internal/store"
)

// newProductAnnouncer returns a change-feed listener that broadcasts a
// push notification whenever a product row is inserted. It runs alongside
// the catalog view on the same dispatcher; a failure here never affects
// the view's own reload.
func newProductAnnouncer(logger *zap.SugaredLogger, push notifications.PushSender, storage store.Storage) realtime.Handler {
	return func(ev realtime.Event) {
		if ev.Table != "products" || ev.Type != realtime.EventInsert {
			return
		}

		var p catalog.Product
		if err := json.Unmarshal(ev.New, &p); err != nil {
			logger.Warnw("undecodable product insert for announcement", "error", err)
			return
		}

		// Dispatcher delivery is synchronous; push the announcement off
		// the delivery path.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := notifications.SendNewProductNotification(ctx, push, storage, p.Name); err != nil {
				logger.Warnw("new product announcement failed", "product", p.ID, "error", err)
			}
		}()
	}
}
