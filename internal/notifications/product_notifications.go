package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/9ssi7/exponent"

	"souq/internal/store"
)

// SendNewProductNotification announces a newly added product to every
// registered device. Fired off the change feed's insert event for the
// products table.
func SendNewProductNotification(ctx context.Context, push PushSender, storage store.Storage, productName string) error {
	tokens, err := storage.PushTokens.AllTokens(ctx)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return errors.New("no push tokens")
	}

	title := "منتج جديد"
	body := fmt.Sprintf("وصل حديثاً: %s", productName)

	// Prepare Expo messages
	msgs := make([]*exponent.Message, 0, len(tokens))
	for _, t := range tokens {
		//wrap the string token in exponent.Token
		token := exponent.Token(t)
		msg := &exponent.Message{
			To:    []*exponent.Token{&token},
			Title: title,
			Body:  body,
			Data: map[string]string{
				"type":   "product",
				"event":  "created",
				"screen": "products-new-screen",
			},
		}
		msgs = append(msgs, msg)
	}

	_, err = push.Publish(ctx, msgs)
	if err != nil {
		return err
	}
	return nil
}
