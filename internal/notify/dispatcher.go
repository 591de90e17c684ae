package notify

import (
	"context"

	"github.com/xela07ax/cs-coverage-engine/internal/domain"
)

// Dispatcher — внешний коллаборатор доставки уведомлений.
// Реализации: SMTP/SaaS-интеграции в проде, моки в connectors для тестов.
type Dispatcher interface {
	Send(ctx context.Context, contact domain.Contact, message string) error
}
