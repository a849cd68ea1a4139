package feed

import (
	"time"
)

// Kind classifica a origem de um aviso do feed.
type Kind string

const (
	KindScheduled    Kind = "scheduled"
	KindReminder     Kind = "reminder"
	KindAdminAlert   Kind = "adminAlert"
	KindAnnouncement Kind = "announcement"
)

// Notification é um aviso derivado do feed. Não é persistido: é sintetizado
// a cada recomputação a partir dos documentos fonte. As exceções são os
// adminAlert (solicitações pendentes) e os comunicados, que são documentos
// reais com ciclo de vida próprio.
type Notification struct {
	ID        string `json:"id"`
	Kind      Kind   `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Date      string `json:"date"`
	Context   string `json:"context,omitempty"`
	Deletable bool   `json:"deletable,omitempty"`
	SourceID  string `json:"sourceId,omitempty"`

	occurredAt time.Time
}

// OccurredAt é a chave de ordenação do feed.
func (n Notification) OccurredAt() time.Time {
	return n.occurredAt
}

const dayLayout = "2006-01-02"

// DayString formata a data-calendário (sem hora), como o app web compara.
func DayString(t time.Time) string {
	return t.Format(dayLayout)
}

// ParseDay aceita datas-calendário ISO e timestamps completos, truncando
// para o dia. O segundo retorno indica se o valor era uma data válida.
func ParseDay(s string) (time.Time, bool) {
	if t, err := time.Parse(dayLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		// O dia é o do próprio fuso do timestamp; truncar o instante
		// absoluto deslocaria offsets não-UTC para o dia anterior.
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, t.Location()), true
	}
	return time.Time{}, false
}

// SameDay compara apenas a data-calendário de dois instantes.
func SameDay(a, b time.Time) bool {
	return DayString(a) == DayString(b)
}
