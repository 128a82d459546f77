package email

import (
	"context"
	"fmt"

	"github.com/viltskaa/prometei/internal/kafka"
)

type Sender struct{}

func NewSender() *Sender {
	return &Sender{}
}

// Send notifies every address attached to the event about its purchase.
func (s *Sender) Send(ctx context.Context, event kafka.PurchaseEvent) error {
	for _, addr := range event.Emails {
		fmt.Printf("send email to %s about %s for purchase %s (%.2f)\n", addr, event.Type, event.PurchaseHash, event.TotalCost)
	}
	return nil
}
