package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"escuela-digital/internal/feed"
	"escuela-digital/internal/identity"
	"escuela-digital/internal/store"
	"escuela-digital/internal/visibility"

	"github.com/google/uuid"
)

// ErrNotAllowed indica uma operação que exige tier super admin.
var ErrNotAllowed = errors.New("operación reservada al super admin")

// Session é o escopo de subscrições de um login. Subscreve as quatro
// coleções do feed, aplica a visibilidade a cada snapshot e recomputa o
// feed por inteiro a cada mudança. Close derruba todas as subscrições;
// nada é entregue aos listeners depois do teardown.
type Session struct {
	ID    string
	Actor identity.Actor

	store  store.Store
	agg    *feed.Aggregator
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// deliverMu serializa recomputação + entrega: sem ele, consumidores de
	// coleções diferentes poderiam entregar um feed mais velho depois de um
	// mais novo.
	deliverMu sync.Mutex

	mu        sync.Mutex
	state     feed.State
	current   []feed.Notification
	listeners []func([]feed.Notification)
	started   bool
}

// New cria a sessão para o ator. O notifier recebe as notificações locais
// de lembretes do dia (pode ser nil).
func New(st store.Store, actor identity.Actor, notifier feed.Notifier) *Session {
	return &Session{
		ID:    uuid.NewString(),
		Actor: actor,
		store: st,
		agg:   feed.NewAggregator(notifier),
	}
}

// OnUpdate registra um listener chamado a cada recomputação do feed.
// Deve ser chamado antes de Start.
func (s *Session) OnUpdate(fn func([]feed.Notification)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Start subscreve as coleções e começa a alimentar o feed. As subscrições
// vivem até Close (ou o cancelamento do contexto pai); snapshots de
// coleções diferentes podem chegar em qualquer ordem relativa.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("session %s already started", s.ID)
	}
	s.started = true
	s.mu.Unlock()

	s.ctx, s.cancel = context.WithCancel(ctx)

	subs := []struct {
		collection string
		orderBy    string
		ascending  bool
		apply      func(st *feed.State, docs []store.Document)
	}{
		{store.CollectionTasks, "dueDate", true, func(st *feed.State, docs []store.Document) { st.Tasks = docs }},
		{store.CollectionEvents, "date", true, func(st *feed.State, docs []store.Document) { st.Events = docs }},
		{store.CollectionPasswordRequests, "createdAt", true, func(st *feed.State, docs []store.Document) { st.Requests = docs }},
		{store.CollectionAnnouncements, "createdAt", false, func(st *feed.State, docs []store.Document) { st.Announcements = docs }},
	}

	for _, sub := range subs {
		ch, err := s.store.Subscribe(s.ctx, sub.collection, sub.orderBy, sub.ascending)
		if err != nil {
			s.cancel()
			return fmt.Errorf("failed to subscribe to %s: %w", sub.collection, err)
		}

		filtered := sub.collection == store.CollectionTasks || sub.collection == store.CollectionEvents
		apply := sub.apply

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for docs := range ch {
				if filtered {
					// A visibilidade é resolvida de novo em cada snapshot,
					// nunca cacheada entre snapshots.
					docs = visibility.Filter(docs, s.Actor)
				}
				s.applySnapshot(func(st *feed.State) { apply(st, docs) })
			}
		}()
	}

	log.Printf("👤 Sessão iniciada: %s (%s, tier %s)", s.Actor.Username, s.Actor.Role, s.Actor.Tier)
	return nil
}

// applySnapshot substitui o estado da coleção, recomputa o feed completo e
// entrega aos listeners. A entrega acontece sob deliverMu para que o último
// feed entregue seja sempre o mais recente derivado.
func (s *Session) applySnapshot(mutate func(*feed.State)) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	mutate(&s.state)
	s.current = s.agg.Recompute(s.state, s.Actor, time.Now())
	notifs := append([]feed.Notification(nil), s.current...)
	listeners := append(([]func([]feed.Notification))(nil), s.listeners...)
	s.mu.Unlock()

	if s.ctx.Err() != nil {
		return
	}
	for _, fn := range listeners {
		fn(notifs)
	}
}

// Feed devolve a última derivação do feed.
func (s *Session) Feed() []feed.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]feed.Notification(nil), s.current...)
}

// DismissAlert apaga o documento de solicitação pendente por trás de um
// adminAlert. Dispensar é apagar a fonte, não esconder o aviso.
func (s *Session) DismissAlert(ctx context.Context, requestID string) error {
	if s.Actor.Tier != identity.TierSuperAdmin {
		return ErrNotAllowed
	}
	return s.store.Delete(ctx, store.CollectionPasswordRequests, requestID)
}

// Close derruba todas as subscrições da sessão e espera os consumidores
// terminarem. Nenhuma computação de feed sobrevive ao teardown.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	log.Printf("🔌 Sessão encerrada: %s", s.Actor.Username)
}
