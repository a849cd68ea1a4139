package identity

import (
	"context"
	"errors"
	"fmt"

	"escuela-digital/internal/store"
)

// ErrInvalidCredentials indica usuário ou senha incorretos.
var ErrInvalidCredentials = errors.New("usuario o contraseña incorrectos")

// Authenticate procura o usuário na coleção users, como a tela de login do
// app web faz: igualdade de username e senha.
func Authenticate(ctx context.Context, st store.Store, username, password string) (Actor, error) {
	docs, err := st.Query(ctx, store.CollectionUsers,
		store.Filter{Field: "username", Value: username},
		store.Filter{Field: "password", Value: password},
	)
	if err != nil {
		return Actor{}, fmt.Errorf("failed to query users: %w", err)
	}

	if len(docs) == 0 {
		return Actor{}, ErrInvalidCredentials
	}

	return ActorFromDocument(docs[0]), nil
}
