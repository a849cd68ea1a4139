package workers

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"escuela-digital/internal/identity"
	"escuela-digital/internal/store"
)

// RequestSender envia o push de solicitação pendente para um diretor.
type RequestSender interface {
	SendAdminRequestNotification(token, username string) error
}

// RequestEmailer é o fallback por email quando nenhum dispositivo de
// diretor tem push registrado.
type RequestEmailer interface {
	SendPendingRequestAlert(directorEmail, username string) error
}

// RequestAlertWorker avisa o Equipo Directivo de solicitações de senha
// pendentes: push para os dispositivos dos super admins e, na falta deles,
// email para os endereços configurados. Cada solicitação é avisada uma vez.
type RequestAlertWorker struct {
	store          store.Store
	sender         RequestSender
	emailer        RequestEmailer
	directorEmails []string
	interval       time.Duration

	mu      sync.Mutex
	alerted map[string]bool
}

func NewRequestAlertWorker(st store.Store, sender RequestSender, emailer RequestEmailer, directorEmails []string, interval time.Duration) *RequestAlertWorker {
	return &RequestAlertWorker{
		store:          st,
		sender:         sender,
		emailer:        emailer,
		directorEmails: directorEmails,
		interval:       interval,
		alerted:        make(map[string]bool),
	}
}

func (w *RequestAlertWorker) Name() string { return "request-alert" }

func (w *RequestAlertWorker) Interval() time.Duration { return w.interval }

func (w *RequestAlertWorker) Run(ctx context.Context) error {
	requests, err := w.store.Query(ctx, store.CollectionPasswordRequests)
	if err != nil {
		return fmt.Errorf("failed to query password requests: %w", err)
	}

	var pending []store.Document
	w.mu.Lock()
	for _, req := range requests {
		if !w.alerted[req.ID] {
			pending = append(pending, req)
		}
	}
	w.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	users, err := w.store.Query(ctx, store.CollectionUsers)
	if err != nil {
		return fmt.Errorf("failed to query users: %w", err)
	}

	tokens := superAdminTokens(users)

	for _, req := range pending {
		username := req.Str("username")
		delivered := 0

		if w.sender != nil {
			for _, token := range tokens {
				if err := w.sender.SendAdminRequestNotification(token, username); err != nil {
					log.Printf("❌ Falha ao notificar diretor sobre %s: %v", username, err)
					continue
				}
				delivered++
			}
		}

		// Sem nenhum push entregue, cai para o email
		if delivered == 0 && w.emailer != nil {
			for _, email := range w.directorEmails {
				if err := w.emailer.SendPendingRequestAlert(email, username); err == nil {
					delivered++
				}
			}
		}

		if delivered == 0 {
			log.Printf("⚠️  Nenhum canal disponível para avisar sobre a solicitação de %s", username)
		}

		w.mu.Lock()
		w.alerted[req.ID] = true
		w.mu.Unlock()
	}

	return nil
}

func superAdminTokens(users []store.Document) []string {
	seen := make(map[string]struct{})
	var tokens []string
	for _, user := range users {
		if identity.ActorFromDocument(user).Tier != identity.TierSuperAdmin {
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
