package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"escuela-digital/internal/push"
	"escuela-digital/internal/store"
)

// TokenValidator sonda se um delivery token ainda está registrado no FCM.
type TokenValidator interface {
	ValidateToken(token string) bool
}

// TokenSweepWorker varre os fcmTokens de todos os usuários e remove os que
// o FCM já não reconhece, para o fan-out de push não insistir em
// dispositivos mortos.
type TokenSweepWorker struct {
	store     store.Store
	validator TokenValidator
	registry  *push.TokenRegistry
	interval  time.Duration
}

func NewTokenSweepWorker(st store.Store, validator TokenValidator, registry *push.TokenRegistry, interval time.Duration) *TokenSweepWorker {
	return &TokenSweepWorker{
		store:     st,
		validator: validator,
		registry:  registry,
		interval:  interval,
	}
}

func (w *TokenSweepWorker) Name() string { return "token-sweep" }

func (w *TokenSweepWorker) Interval() time.Duration { return w.interval }

func (w *TokenSweepWorker) Run(ctx context.Context) error {
	users, err := w.store.Query(ctx, store.CollectionUsers)
	if err != nil {
		return fmt.Errorf("failed to query users: %w", err)
	}

	removed := 0
	for _, user := range users {
		for _, token := range user.StrSlice("fcmTokens") {
			if w.validator.ValidateToken(token) {
				continue
			}

			if err := w.registry.RemoveToken(ctx, user.ID, token); err != nil {
				log.Printf("❌ Falha ao remover token morto de %s: %v", user.Str("username"), err)
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		log.Printf("🧹 %d token(s) morto(s) removido(s)", removed)
	}
	return nil
}
