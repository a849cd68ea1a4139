package feed

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"escuela-digital/internal/identity"
	"escuela-digital/internal/store"
)

// AnnouncementWindow é a janela de frescor de um comunicado. Passada essa
// idade o documento continua existindo, mas deixa de aparecer no feed.
const AnnouncementWindow = 24 * time.Hour

// Notifier é o colaborador externo que levanta a notificação local/de
// sistema quando um recordatorio cai no dia corrente.
type Notifier interface {
	Notify(title, body string)
}

// State é o último estado conhecido de cada coleção subscrita. Cada campo é
// substituído por inteiro quando chega um snapshot; não há ordem global
// garantida entre coleções.
type State struct {
	Tasks         []store.Document
	Events        []store.Document
	Requests      []store.Document
	Announcements []store.Document
}

// Aggregator deriva o feed unificado de avisos. A recomputação é sempre
// completa e síncrona a partir do State recebido; o único efeito colateral
// é a chamada ao Notifier, no máximo uma vez por (documento, lembrete) por
// dia.
type Aggregator struct {
	notifier Notifier

	mu sync.Mutex
	// lembretes já vistos por documento: cada timestamp novo acumula uma
	// entrada adicional no feed em vez de substituir a anterior
	seenReminders map[string]map[int64]time.Time
	// dia em que cada lembrete disparou a notificação local
	fired map[string]string
}

func NewAggregator(notifier Notifier) *Aggregator {
	return &Aggregator{
		notifier:      notifier,
		seenReminders: make(map[string]map[int64]time.Time),
		fired:         make(map[string]string),
	}
}

// Recompute deriva o feed completo para o ator, ordenado do mais recente
// para o mais antigo. Documentos com datas ausentes ou malformadas são
// simplesmente excluídos da contribuição correspondente.
func (a *Aggregator) Recompute(state State, actor identity.Actor, now time.Time) []Notification {
	a.mu.Lock()
	defer a.mu.Unlock()

	today := DayString(now)
	var out []Notification

	out = append(out, a.scheduledFromTasks(state.Tasks, today)...)
	out = append(out, a.scheduledFromEvents(state.Events, today)...)
	out = append(out, a.reminders(state.Tasks, today)...)

	if actor.Tier == identity.TierSuperAdmin {
		out = append(out, adminAlerts(state.Requests)...)
	}

	if n, ok := latestAnnouncement(state.Announcements, now); ok {
		out = append(out, n)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].occurredAt.Equal(out[j].occurredAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].occurredAt.After(out[j].occurredAt)
	})

	return out
}

// scheduledFromTasks deriva os avisos programados de tarefas. O aviso some
// quando a tarefa é concluída; a data ter ficado no passado não o expira.
func (a *Aggregator) scheduledFromTasks(tasks []store.Document, today string) []Notification {
	var out []Notification
	for _, task := range tasks {
		if task.Bool("completed") {
			continue
		}
		n, ok := scheduledNotification(task, today, "task-auto-", "Aviso Programado", "Tarea: ")
		if ok {
			out = append(out, n)
		}
	}
	return out
}

func (a *Aggregator) scheduledFromEvents(events []store.Document, today string) []Notification {
	var out []Notification
	for _, event := range events {
		n, ok := scheduledNotification(event, today, "event-auto-", "Evento Próximo", "Agenda: ")
		if ok {
			out = append(out, n)
		}
	}
	return out
}

func scheduledNotification(doc store.Document, today, idPrefix, title, contextPrefix string) (Notification, bool) {
	notifDate := doc.Str("notificationDate")
	message := doc.Str("notificationMessage")
	if notifDate == "" || message == "" {
		return Notification{}, false
	}

	// A comparação é sempre entre datas-calendário: um timestamp completo é
	// truncado para o dia antes do corte, nunca comparado como string crua.
	day, ok := ParseDay(notifDate)
	if !ok || DayString(day) > today {
		return Notification{}, false
	}

	return Notification{
		ID:         idPrefix + doc.ID,
		Kind:       KindScheduled,
		Title:      title,
		Message:    message,
		Date:       DayString(day),
		Context:    contextPrefix + doc.Str("title"),
		occurredAt: day,
	}, true
}

// reminders acumula cada (documento, lastReminder) já visto enquanto o
// documento existir, e dispara a notificação local quando o lembrete cai no
// dia corrente. Rederivar o feed de entradas inalteradas nunca redispara.
func (a *Aggregator) reminders(tasks []store.Document, today string) []Notification {
	titles := make(map[string]string, len(tasks))
	for _, task := range tasks {
		titles[task.ID] = task.Str("title")
		if reminderAt, ok := task.Time("lastReminder"); ok {
			seen := a.seenReminders[task.ID]
			if seen == nil {
				seen = make(map[int64]time.Time)
				a.seenReminders[task.ID] = seen
			}
			seen[reminderAt.Unix()] = reminderAt
		}
	}

	// Lembretes de documentos que saíram do snapshot deixam de contribuir.
	for taskID := range a.seenReminders {
		if _, ok := titles[taskID]; !ok {
			delete(a.seenReminders, taskID)
		}
	}

	var out []Notification
	for taskID, seen := range a.seenReminders {
		for unix, reminderAt := range seen {
			key := fmt.Sprintf("task-remind-%s-%d", taskID, unix)

			out = append(out, Notification{
				ID:         key,
				Kind:       KindReminder,
				Title:      "¡Recordatorio!",
				Message:    fmt.Sprintf("Se recuerda completar: %q", titles[taskID]),
				Date:       DayString(reminderAt),
				Context:    "Urgente",
				occurredAt: reminderAt,
			})

			if DayString(reminderAt) == today && a.fired[key] != today && a.notifier != nil {
				a.notifier.Notify("Recordatorio Escolar", "Pendiente: "+titles[taskID])
				a.fired[key] = today
			}
		}
	}
	return out
}

// adminAlerts mapeia 1:1 as solicitações pendentes de redefinição de senha.
// São os únicos avisos deletáveis: dispensar é apagar o documento fonte.
func adminAlerts(requests []store.Document) []Notification {
	var out []Notification
	for _, req := range requests {
		createdAt, ok := req.Time("createdAt")
		if !ok {
			continue
		}

		out = append(out, Notification{
			ID:         "request-" + req.ID,
			Kind:       KindAdminAlert,
			Title:      "Solicitud de Acceso",
			Message:    fmt.Sprintf("El usuario %q solicitó restablecer su contraseña.", req.Str("username")),
			Date:       DayString(createdAt),
			Deletable:  true,
			SourceID:   req.ID,
			occurredAt: createdAt,
		})
	}
	return out
}

// latestAnnouncement devolve só o comunicado mais recente, e apenas dentro
// da janela de 24h. Comunicados velhos não são apagados, só omitidos.
func latestAnnouncement(announcements []store.Document, now time.Time) (Notification, bool) {
	var (
		latest   store.Document
		latestAt time.Time
		found    bool
	)
	for _, ann := range announcements {
		createdAt, ok := ann.Time("createdAt")
		if !ok {
			continue
		}
		if !found || createdAt.After(latestAt) {
			latest, latestAt, found = ann, createdAt, true
		}
	}

	if !found || now.Sub(latestAt) >= AnnouncementWindow {
		return Notification{}, false
	}

	return Notification{
		ID:         "announcement-" + latest.ID,
		Kind:       KindAnnouncement,
		Title:      "Comunicado",
		Message:    latest.Str("message"),
		Date:       DayString(latestAt),
		Context:    "De: " + latest.Str("author"),
		occurredAt: latestAt,
	}, true
}
