package domain

import "errors"

// Таксономия ошибок движка покрытия. Проверяются через errors.Is,
// выше по стеку оборачиваются через fmt.Errorf("...: %w", err).
var (
	ErrAgentNotFound       = errors.New("agent not found")
	ErrNoCoveringAgent     = errors.New("no covering agent available")
	ErrOverlappingCoverage = errors.New("overlapping coverage engagement exists")
	ErrCoverageNotFound    = errors.New("coverage engagement not found")
	ErrInvalidTransition   = errors.New("invalid coverage status transition")

	// ErrExternalDependency оборачивает сбои внешних коллабораторов
	// (directory store, account store, notification dispatcher).
	ErrExternalDependency = errors.New("external dependency failure")

	// ErrAgentBusy — конфликт single-writer блокировки по исходящему агенту.
	// Клиент может повторить операцию (optimistic retry).
	ErrAgentBusy = errors.New("another coverage operation is in progress for this agent")
)
