package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	start = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	end   = time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
)

func TestEffectiveStatus(t *testing.T) {
	cov := &OOOCoverage{StartDate: start, EndDate: end}

	assert.Equal(t, StatusScheduled, cov.EffectiveStatus(start.AddDate(0, 0, -1)))
	assert.Equal(t, StatusActive, cov.EffectiveStatus(start))
	assert.Equal(t, StatusActive, cov.EffectiveStatus(start.AddDate(0, 0, 5)))
	assert.Equal(t, StatusActive, cov.EffectiveStatus(end))

	// Окно прошло, но возвращение не обработано — все еще active
	assert.Equal(t, StatusActive, cov.EffectiveStatus(end.AddDate(0, 0, 3)))

	cov.Status = StatusCompleted
	assert.Equal(t, StatusCompleted, cov.EffectiveStatus(start.AddDate(0, 0, 5)))

	cov.Status = StatusCancelled
	assert.Equal(t, StatusCancelled, cov.EffectiveStatus(start.AddDate(0, 0, -1)))
}

func TestOverlaps(t *testing.T) {
	cov := &OOOCoverage{StartDate: start, EndDate: end}

	assert.True(t, cov.Overlaps(start.AddDate(0, 0, -5), start)) // Касание левой границы
	assert.True(t, cov.Overlaps(end, end.AddDate(0, 0, 5)))      // Касание правой границы
	assert.True(t, cov.Overlaps(start.AddDate(0, 0, 2), end.AddDate(0, 0, -2)))
	assert.False(t, cov.Overlaps(end.AddDate(0, 0, 1), end.AddDate(0, 0, 10)))
	assert.False(t, cov.Overlaps(start.AddDate(0, 0, -10), start.AddDate(0, 0, -1)))
}

func TestRoutingUpdate_ForwardOnlyTransitions(t *testing.T) {
	now := start
	u := &RoutingUpdate{ID: "r-1", Channel: ChannelEmail, Status: RoutingPending}

	require.NoError(t, u.Apply(now))
	assert.Equal(t, RoutingApplied, u.Status)
	require.NotNil(t, u.AppliedAt)

	// Повторное применение — no-op
	require.NoError(t, u.Apply(now.Add(time.Hour)))
	assert.Equal(t, now, *u.AppliedAt)

	u.Revert(now.Add(2 * time.Hour))
	assert.Equal(t, RoutingReverted, u.Status)
	firstRevert := *u.RevertedAt

	// Повторный откат не трогает метку времени
	u.Revert(now.Add(3 * time.Hour))
	assert.Equal(t, firstRevert, *u.RevertedAt)

	// Применить откаченный редирект нельзя
	err := u.Apply(now.Add(4 * time.Hour))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRoutingUpdate_RevertPendingAllowed(t *testing.T) {
	// Отмена запланированного покрытия откатывает и не применявшиеся редиректы
	u := &RoutingUpdate{ID: "r-1", Status: RoutingPending}
	u.Revert(start)
	assert.Equal(t, RoutingReverted, u.Status)
	assert.Nil(t, u.AppliedAt)
}
