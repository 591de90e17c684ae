package domain

import "time"

// DetectionSource — откуда пришел OOO-сигнал
type DetectionSource string

const (
	SourceCalendar DetectionSource = "calendar"
	SourceManual   DetectionSource = "manual"
)

// OOODetection — нормализованный сигнал "агент вне офиса".
// Неизменяем после создания, кроме флага processed.
type OOODetection struct {
	ID         string          `json:"id"`
	AgentID    string          `json:"agent_id"`
	Source     DetectionSource `json:"source"`
	StartDate  time.Time       `json:"start_date"`
	EndDate    time.Time       `json:"end_date"`
	DetectedAt time.Time       `json:"detected_at"`
	Processed  bool            `json:"processed"`

	// Сырой payload источника (текст события календаря и т.п.) — для аудита
	RawPayload string `json:"raw_payload,omitempty"`
}

// CalendarEvent — нормализованное событие внешнего календарного источника.
type CalendarEvent struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	IsAllDay    bool      `json:"is_all_day"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}
