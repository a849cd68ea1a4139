package feed

import (
	"reflect"
	"testing"
	"time"

	"escuela-digital/internal/identity"
	"escuela-digital/internal/store"
)

type recordingNotifier struct {
	calls []string
}

func (r *recordingNotifier) Notify(title, body string) {
	r.calls = append(r.calls, title+"|"+body)
}

func day(s string) time.Time {
	t, ok := ParseDay(s)
	if !ok {
		panic("data inválida no teste: " + s)
	}
	return t
}

func docenteActor() identity.Actor {
	return identity.Actor{ID: "u1", FullName: "Ana García", Role: identity.RoleDocente, Tier: identity.TierNone}
}

func superAdminActor() identity.Actor {
	return identity.Actor{ID: "u0", FullName: "Super Admin", Role: identity.RoleEquipoDirectivo, Tier: identity.TierSuperAdmin}
}

func task(id string, fields map[string]interface{}) store.Document {
	return store.Document{ID: id, Data: fields}
}

func TestScheduledContribution(t *testing.T) {
	now := day("2026-09-01")
	agg := NewAggregator(nil)

	state := State{
		Tasks: []store.Document{
			task("t1", map[string]interface{}{
				"title":               "Entregar informes",
				"notificationDate":    "2026-08-30",
				"notificationMessage": "Entregar los informes antes del viernes",
			}),
			// Data futura ainda não contribui
			task("t2", map[string]interface{}{
				"title":               "Reunión",
				"notificationDate":    "2026-09-10",
				"notificationMessage": "Preparar la reunión",
			}),
			// Sem mensagem não contribui
			task("t3", map[string]interface{}{
				"title":            "Sin mensaje",
				"notificationDate": "2026-08-30",
			}),
		},
		Events: []store.Document{
			{ID: "e1", Data: map[string]interface{}{
				"title":               "Acto del 9 de Julio",
				"notificationDate":    "2026-09-01",
				"notificationMessage": "El acto es mañana",
			}},
		},
	}

	notifs := agg.Recompute(state, docenteActor(), now)
	if len(notifs) != 2 {
		t.Fatalf("esperava 2 avisos, vieram %d: %+v", len(notifs), notifs)
	}
	if notifs[0].ID != "event-auto-e1" || notifs[0].Kind != KindScheduled {
		t.Fatalf("primeiro aviso errado: %+v", notifs[0])
	}
	if notifs[1].ID != "task-auto-t1" {
		t.Fatalf("segundo aviso errado: %+v", notifs[1])
	}
}

func TestScheduledTimestampedDateOfToday(t *testing.T) {
	now := day("2026-09-01")
	agg := NewAggregator(nil)

	// notificationDate como timestamp completo do dia corrente: conta como a
	// data-calendário de hoje, nunca como string maior que "2026-09-01"
	state := State{Tasks: []store.Document{
		task("t1", map[string]interface{}{
			"title":               "Entregar informes",
			"notificationDate":    "2026-09-01T10:00:00Z",
			"notificationMessage": "Entregar los informes hoy",
		}),
	}}

	notifs := agg.Recompute(state, docenteActor(), now)
	if len(notifs) != 1 {
		t.Fatalf("timestamp do dia corrente deveria contribuir, vieram %d avisos", len(notifs))
	}
	if notifs[0].Date != "2026-09-01" {
		t.Fatalf("data deveria ser truncada para o dia: %+v", notifs[0])
	}
}

func TestScheduledCompletedGate(t *testing.T) {
	now := day("2026-09-01")
	agg := NewAggregator(nil)

	fields := map[string]interface{}{
		"title":               "Entregar informes",
		"notificationDate":    "2026-08-01",
		"notificationMessage": "Entregar los informes",
	}
	state := State{Tasks: []store.Document{task("t1", fields)}}

	if notifs := agg.Recompute(state, docenteActor(), now); len(notifs) != 1 {
		t.Fatalf("aviso programado deveria aparecer: %+v", notifs)
	}

	// A data ter ficado mais no passado não expira o aviso
	if notifs := agg.Recompute(state, docenteActor(), now.AddDate(0, 2, 0)); len(notifs) != 1 {
		t.Fatalf("aviso não deveria expirar só pela data: %+v", notifs)
	}

	// Concluir a tarefa o remove
	fields["completed"] = true
	if notifs := agg.Recompute(state, docenteActor(), now); len(notifs) != 0 {
		t.Fatalf("tarefa concluída não deveria contribuir: %+v", notifs)
	}
}

func TestMissingDueDateDoesNotPanic(t *testing.T) {
	now := day("2026-09-01")
	agg := NewAggregator(nil)

	state := State{
		Tasks: []store.Document{
			task("t1", map[string]interface{}{
				"title":               "Sin fecha",
				"notificationDate":    "no-es-fecha",
				"notificationMessage": "mensaje",
			}),
			task("t2", map[string]interface{}{"title": "Vacía"}),
		},
	}

	if notifs := agg.Recompute(state, docenteActor(), now); len(notifs) != 0 {
		t.Fatalf("documentos malformados deveriam ser omitidos: %+v", notifs)
	}
}

func TestRemindersAccumulate(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	agg := NewAggregator(nil)

	first := now.Add(-48 * time.Hour)
	state := State{Tasks: []store.Document{
		task("t1", map[string]interface{}{"title": "Planillas", "lastReminder": first}),
	}}

	notifs := agg.Recompute(state, docenteActor(), now)
	if len(notifs) != 1 || notifs[0].Kind != KindReminder {
		t.Fatalf("esperava 1 lembrete: %+v", notifs)
	}

	// Um novo lastReminder acumula, não substitui
	second := now.Add(-time.Hour)
	state.Tasks[0].Data["lastReminder"] = second

	notifs = agg.Recompute(state, docenteActor(), now)
	if len(notifs) != 2 {
		t.Fatalf("esperava 2 lembretes acumulados, vieram %d", len(notifs))
	}
	if notifs[0].occurredAt != second || notifs[1].occurredAt != first {
		t.Fatalf("ordem errada: %+v", notifs)
	}

	// Concluir a tarefa tira o aviso programado mas não os lembretes
	state.Tasks[0].Data["completed"] = true
	state.Tasks[0].Data["notificationDate"] = "2026-08-01"
	state.Tasks[0].Data["notificationMessage"] = "mensaje"

	notifs = agg.Recompute(state, docenteActor(), now)
	for _, n := range notifs {
		if n.Kind == KindScheduled {
			t.Fatalf("programado não deveria sobreviver à conclusão: %+v", n)
		}
	}
	if len(notifs) != 2 {
		t.Fatalf("lembretes deveriam sobreviver à conclusão: %+v", notifs)
	}
}

func TestReminderLocalNotificationOncePerDay(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	notifier := &recordingNotifier{}
	agg := NewAggregator(notifier)

	state := State{Tasks: []store.Document{
		task("t1", map[string]interface{}{
			"title":        "Planillas",
			"lastReminder": now.Add(-time.Hour), // hoje
		}),
	}}

	agg.Recompute(state, docenteActor(), now)
	if len(notifier.calls) != 1 {
		t.Fatalf("esperava 1 notificação local, vieram %d", len(notifier.calls))
	}

	// Rederivar de entrada inalterada não redispara
	agg.Recompute(state, docenteActor(), now)
	agg.Recompute(state, docenteActor(), now.Add(time.Minute))
	if len(notifier.calls) != 1 {
		t.Fatalf("rederivação redisparou a notificação local: %d", len(notifier.calls))
	}

	// Lembrete de outro dia não dispara
	agg2 := NewAggregator(notifier)
	state.Tasks[0].Data["lastReminder"] = now.Add(-72 * time.Hour)
	agg2.Recompute(state, docenteActor(), now)
	if len(notifier.calls) != 1 {
		t.Fatalf("lembrete antigo não deveria disparar local: %d", len(notifier.calls))
	}
}

func TestAdminAlertsOnlyForSuperAdmin(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	state := State{Requests: []store.Document{
		{ID: "r1", Data: map[string]interface{}{"username": "agarcia", "createdAt": now.Add(-time.Hour)}},
		// createdAt ausente: excluído sem pânico
		{ID: "r2", Data: map[string]interface{}{"username": "broto"}},
	}}

	contentAdmin := identity.Actor{ID: "u2", Role: identity.RoleEquipoDirectivo, Tier: identity.TierContentAdmin}
	if notifs := NewAggregator(nil).Recompute(state, contentAdmin, now); len(notifs) != 0 {
		t.Fatalf("content-admin não deveria ver solicitações: %+v", notifs)
	}

	notifs := NewAggregator(nil).Recompute(state, superAdminActor(), now)
	if len(notifs) != 1 {
		t.Fatalf("super-admin deveria ver 1 solicitação: %+v", notifs)
	}
	n := notifs[0]
	if n.Kind != KindAdminAlert || !n.Deletable || n.SourceID != "r1" {
		t.Fatalf("adminAlert errado: %+v", n)
	}
}

func TestAnnouncementFreshnessWindow(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	fresh := store.Document{ID: "a1", Data: map[string]interface{}{
		"message":   "Mañana no hay clases",
		"author":    "Dirección",
		"createdAt": now.Add(-(23*time.Hour + 59*time.Minute)),
	}}
	stale := store.Document{ID: "a2", Data: map[string]interface{}{
		"message":   "Aviso viejo",
		"author":    "Dirección",
		"createdAt": now.Add(-(24*time.Hour + time.Minute)),
	}}

	// Dentro da janela aparece
	notifs := NewAggregator(nil).Recompute(State{Announcements: []store.Document{fresh}}, docenteActor(), now)
	if len(notifs) != 1 || notifs[0].Kind != KindAnnouncement {
		t.Fatalf("comunicado fresco deveria aparecer: %+v", notifs)
	}

	// Fora da janela some, sem ser apagado
	notifs = NewAggregator(nil).Recompute(State{Announcements: []store.Document{stale}}, docenteActor(), now)
	if len(notifs) != 0 {
		t.Fatalf("comunicado velho não deveria aparecer: %+v", notifs)
	}

	// Só o mais recente conta
	notifs = NewAggregator(nil).Recompute(State{Announcements: []store.Document{stale, fresh}}, docenteActor(), now)
	if len(notifs) != 1 || notifs[0].ID != "announcement-a1" {
		t.Fatalf("só o comunicado mais recente deveria aparecer: %+v", notifs)
	}
}

func TestOrderingStableAcrossRederivations(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	agg := NewAggregator(nil)

	// Duas tarefas com a mesma data de aviso: chave de ordenação idêntica
	state := State{Tasks: []store.Document{
		task("tb", map[string]interface{}{
			"title":               "B",
			"notificationDate":    "2026-08-30",
			"notificationMessage": "m",
		}),
		task("ta", map[string]interface{}{
			"title":               "A",
			"notificationDate":    "2026-08-30",
			"notificationMessage": "m",
		}),
	}}

	first := agg.Recompute(state, docenteActor(), now)
	second := agg.Recompute(state, docenteActor(), now)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("ordem instável entre rederivações:\n%v\n%v", first, second)
	}
	if len(first) != 2 {
		t.Fatalf("esperava 2 avisos: %+v", first)
	}
}

func TestParseDay(t *testing.T) {
	if _, ok := ParseDay("2026-02-30"); ok {
		t.Fatal("data impossível aceita")
	}
	if d, ok := ParseDay("2026-09-01"); !ok || DayString(d) != "2026-09-01" {
		t.Fatalf("ParseDay data simples: %v %v", d, ok)
	}
	if d, ok := ParseDay("2026-09-01T15:04:05Z"); !ok || DayString(d) != "2026-09-01" {
		t.Fatalf("ParseDay timestamp completo: %v %v", d, ok)
	}
	// Offset não-UTC: o dia é o do fuso do timestamp, não o do instante em UTC
	if d, ok := ParseDay("2026-09-01T01:00:00+03:00"); !ok || DayString(d) != "2026-09-01" {
		t.Fatalf("ParseDay com offset deslocou o dia: %v %v", d, ok)
	}
}
