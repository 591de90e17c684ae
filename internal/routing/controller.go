package routing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/cs-coverage-engine/internal/domain"
	"go.uber.org/zap"
)

// Controller управляет временными редиректами каналов на время покрытия.
// Создание, применение и откат — явные операции менеджера жизненного цикла;
// сами переходы статусов живут в domain.RoutingUpdate и двигаются только вперед.
type Controller struct {
	logger *zap.Logger
}

func NewController(logger *zap.Logger) *Controller {
	return &Controller{logger: logger.Named("routing")}
}

// Setup создает по одному pending-редиректу на каждый канал:
// почта, назначение задач, алерты. Цели каналов — адрес для почты,
// ID агента для задач и алертов.
func (c *Controller) Setup(outgoing, covering *domain.Agent) []*domain.RoutingUpdate {
	return []*domain.RoutingUpdate{
		{
			ID:              uuid.New().String(),
			Channel:         domain.ChannelEmail,
			Description:     fmt.Sprintf("Forward email from %s to %s", outgoing.Name, covering.Name),
			OriginalTarget:  outgoing.Email,
			TemporaryTarget: covering.Email,
			Status:          domain.RoutingPending,
		},
		{
			ID:              uuid.New().String(),
			Channel:         domain.ChannelTasks,
			Description:     fmt.Sprintf("Reassign new tasks from %s to %s", outgoing.Name, covering.Name),
			OriginalTarget:  outgoing.ID,
			TemporaryTarget: covering.ID,
			Status:          domain.RoutingPending,
		},
		{
			ID:              uuid.New().String(),
			Channel:         domain.ChannelAlerts,
			Description:     fmt.Sprintf("Redirect account alerts from %s to %s", outgoing.Name, covering.Name),
			OriginalTarget:  outgoing.ID,
			TemporaryTarget: covering.ID,
			Status:          domain.RoutingPending,
		},
	}
}

// ApplyAll применяет все редиректы. Ошибка любого перехода прерывает
// операцию: setup покрытия — all-or-nothing.
func (c *Controller) ApplyAll(updates []*domain.RoutingUpdate, now time.Time) error {
	for _, u := range updates {
		if err := u.Apply(now); err != nil {
			return fmt.Errorf("routing: apply %s update %s: %w", u.Channel, u.ID, err)
		}
		c.logger.Debug("routing update applied",
			zap.String("channel", string(u.Channel)),
			zap.String("id", u.ID))
	}
	return nil
}

// RevertAll откатывает все редиректы. Идемпотентно: повторный вызов — no-op.
func (c *Controller) RevertAll(updates []*domain.RoutingUpdate, now time.Time) {
	for _, u := range updates {
		u.Revert(now)
	}
	c.logger.Info("routing updates reverted", zap.Int("count", len(updates)))
}
