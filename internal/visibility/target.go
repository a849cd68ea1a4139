package visibility

import (
	"escuela-digital/internal/identity"
	"escuela-digital/internal/store"
)

// targetKind discrimina as três formas de direcionamento de um documento.
type targetKind int

const (
	kindAll targetKind = iota
	kindRoles
	kindUsers
)

// Target descreve quem pode ver uma tarefa ou evento: todos, um conjunto de
// cargos, ou um conjunto de usuários por nome completo.
type Target struct {
	kind  targetKind
	roles map[identity.Role]struct{}
	names map[string]struct{}
}

// All constrói o direcionamento que libera o documento para todos.
func All() Target {
	return Target{kind: kindAll}
}

// ByRoles constrói o direcionamento por cargos.
func ByRoles(roles ...identity.Role) Target {
	set := make(map[identity.Role]struct{}, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return Target{kind: kindRoles, roles: set}
}

// ByUsers constrói o direcionamento por nome completo de usuário.
func ByUsers(names ...string) Target {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return Target{kind: kindUsers, names: set}
}

// ParseTarget lê os campos targetType/targetRoles/targetUsers gravados pelo
// app web. Tag ausente ou desconhecida resolve explicitamente para All.
func ParseTarget(doc store.Document) Target {
	switch doc.Str("targetType") {
	case "roles":
		roles := make([]identity.Role, 0)
		for _, r := range doc.StrSlice("targetRoles") {
			roles = append(roles, identity.Role(r))
		}
		return ByRoles(roles...)
	case "users":
		return ByUsers(doc.StrSlice("targetUsers")...)
	case "", "all":
		return All()
	default:
		// Tags desconhecidas são tratadas como visíveis para todos.
		return All()
	}
}
