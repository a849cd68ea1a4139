package visibility

import (
	"escuela-digital/internal/identity"
	"escuela-digital/internal/store"
)

// IsVisible decide se o ator pode ver o documento com o direcionamento dado.
// Admins (qualquer tier acima de none) veem tudo, independente do alvo.
// Função pura: deve ser reaplicada a cada snapshot, nunca cacheada, porque
// tanto o ator quanto o direcionamento podem mudar entre snapshots.
func IsVisible(target Target, actor identity.Actor) bool {
	if actor.Tier.IsAdmin() {
		return true
	}

	switch target.kind {
	case kindAll:
		return true
	case kindRoles:
		_, ok := target.roles[actor.Role]
		return ok
	case kindUsers:
		// Igualdade de nome completo basta como identidade aqui; colisões
		// de nome são um non-goal assumido do portal.
		_, ok := target.names[actor.FullName]
		return ok
	default:
		return false
	}
}

// Filter aplica IsVisible a um snapshot inteiro, na ordem recebida.
func Filter(docs []store.Document, actor identity.Actor) []store.Document {
	out := make([]store.Document, 0, len(docs))
	for _, doc := range docs {
		if IsVisible(ParseTarget(doc), actor) {
			out = append(out, doc)
		}
	}
	return out
}
