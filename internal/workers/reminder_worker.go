package workers

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"escuela-digital/internal/feed"
	"escuela-digital/internal/identity"
	"escuela-digital/internal/store"
	"escuela-digital/internal/visibility"
)

// ReminderSender envia o push de lembrete para um conjunto de tokens.
type ReminderSender interface {
	SendReminderMultiple(tokens []string, taskTitle string) int
}

// ReminderPushWorker procura tarefas cujo lembrete caiu no dia corrente e
// dispara push para os fcmTokens de todos os usuários alcançados pelo
// direcionamento da tarefa. Cada (tarefa, lembrete) dispara no máximo uma
// vez por dia.
type ReminderPushWorker struct {
	store    store.Store
	sender   ReminderSender
	interval time.Duration

	mu   sync.Mutex
	sent map[string]string // chave tarefa+lembrete -> dia do envio
}

func NewReminderPushWorker(st store.Store, sender ReminderSender, interval time.Duration) *ReminderPushWorker {
	return &ReminderPushWorker{
		store:    st,
		sender:   sender,
		interval: interval,
		sent:     make(map[string]string),
	}
}

func (w *ReminderPushWorker) Name() string { return "reminder-push" }

func (w *ReminderPushWorker) Interval() time.Duration { return w.interval }

func (w *ReminderPushWorker) Run(ctx context.Context) error {
	tasks, err := w.store.Query(ctx, store.CollectionTasks)
	if err != nil {
		return fmt.Errorf("failed to query tasks: %w", err)
	}

	users, err := w.store.Query(ctx, store.CollectionUsers)
	if err != nil {
		return fmt.Errorf("failed to query users: %w", err)
	}

	now := time.Now()
	today := feed.DayString(now)

	for _, task := range tasks {
		reminderAt, ok := task.Time("lastReminder")
		if !ok || !feed.SameDay(reminderAt, now) || task.Bool("completed") {
			continue
		}

		key := fmt.Sprintf("%s-%d", task.ID, reminderAt.Unix())

		w.mu.Lock()
		already := w.sent[key] == today
		w.mu.Unlock()
		if already {
			continue
		}

		tokens := targetedTokens(task, users)
		if len(tokens) == 0 {
			continue
		}

		title := task.Str("title")
		count := w.sender.SendReminderMultiple(tokens, title)
		log.Printf("📲 Lembrete %q enviado para %d/%d dispositivo(s)", title, count, len(tokens))

		w.mu.Lock()
		w.sent[key] = today
		w.mu.Unlock()
	}

	return nil
}

// targetedTokens junta os fcmTokens de todos os usuários que veem a tarefa,
// sem duplicatas.
func targetedTokens(task store.Document, users []store.Document) []string {
	target := visibility.ParseTarget(task)

	seen := make(map[string]struct{})
	var tokens []string
	for _, user := range users {
		actor := identity.ActorFromDocument(user)
		if !visibility.IsVisible(target, actor) {
			continue
		}
		for _, token := range user.StrSlice("fcmTokens") {
			if _, dup := seen[token]; dup || token == "" {
				continue
			}
			seen[token] = struct{}{}
			tokens = append(tokens, token)
		}
	}
	return tokens
}
