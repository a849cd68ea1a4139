package push

import (
	"context"
	"fmt"
	"log"

	"escuela-digital/internal/store"
)

// TokenRegistry registra os delivery tokens de push no documento do usuário.
//
// O campo fcmTokens é tratado como conjunto append-only sob escritores
// concorrentes (vários dispositivos do mesmo usuário): o merge é união de
// conjunto, comutativo e idempotente, nunca uma sobrescrita cega.
type TokenRegistry struct {
	store store.Store
}

func NewTokenRegistry(st store.Store) *TokenRegistry {
	return &TokenRegistry{store: st}
}

// RegisterToken grava o token no conjunto fcmTokens do usuário e carimba
// lastTokenUpdate com o timestamp do servidor. Registrar um token já
// presente é um no-op; tokens de outros dispositivos nunca são removidos.
//
// Um token vazio (permissão negada ou plataforma sem suporte) é absorvido
// localmente: push é um extra de melhor esforço, não uma capacidade
// obrigatória.
func (r *TokenRegistry) RegisterToken(ctx context.Context, userID, token string) error {
	if token == "" {
		log.Println("ℹ️  Sem delivery token disponível, registro de push ignorado")
		return nil
	}

	err := r.store.Update(ctx, store.CollectionUsers, userID, map[string]interface{}{
		"fcmTokens":       store.ArrayUnion(token),
		"lastTokenUpdate": store.ServerTimestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to register token for user %s: %w", userID, err)
	}

	return nil
}

// RemoveToken tira um token morto do conjunto do usuário.
func (r *TokenRegistry) RemoveToken(ctx context.Context, userID, token string) error {
	err := r.store.Update(ctx, store.CollectionUsers, userID, map[string]interface{}{
		"fcmTokens":       store.ArrayRemove(token),
		"lastTokenUpdate": store.ServerTimestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to remove token for user %s: %w", userID, err)
	}

	return nil
}
