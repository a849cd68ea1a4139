package identity

import (
	"strings"

	"escuela-digital/internal/store"
)

// Role é o cargo institucional do usuário, como o app web o grava.
type Role string

const (
	RoleDocente           Role = "Docente"
	RoleProfesEspeciales  Role = "Profes Especiales"
	RoleEquipoTecnico     Role = "Equipo Técnico"
	RoleEquipoDirectivo   Role = "Equipo Directivo"
	RoleAdministracion    Role = "Administración"
	RoleAuxiliarPreceptor Role = "Auxiliar/Preceptor"
)

// AllRoles na ordem em que o portal as lista.
var AllRoles = []Role{
	RoleDocente,
	RoleProfesEspeciales,
	RoleEquipoTecnico,
	RoleEquipoDirectivo,
	RoleAdministracion,
	RoleAuxiliarPreceptor,
}

// Tier é o nível administrativo, independente do cargo.
type Tier int

const (
	TierNone Tier = iota
	TierContentAdmin
	TierSuperAdmin
)

func (t Tier) String() string {
	switch t {
	case TierContentAdmin:
		return "content-admin"
	case TierSuperAdmin:
		return "super-admin"
	default:
		return "none"
	}
}

// IsAdmin indica se o tier dá visão irrestrita sobre tarefas e eventos.
func (t Tier) IsAdmin() bool {
	return t != TierNone
}

// Actor é o usuário da sessão atual. Criado no login, imutável até o logout.
type Actor struct {
	ID        string
	Username  string
	FirstName string
	LastName  string
	FullName  string
	Role      Role
	Tier      Tier
}

// ActorFromDocument monta o Actor a partir do documento da coleção users.
// A regra vem do app web: rol == "admin" (ou a flag isAdmin) dá super admin;
// Equipo Directivo e Administración dão admin de conteúdo.
func ActorFromDocument(doc store.Document) Actor {
	role := Role(doc.Str("role"))

	fullName := doc.Str("fullName")
	if fullName == "" {
		fullName = strings.TrimSpace(doc.Str("firstName") + " " + doc.Str("lastName"))
	}

	return Actor{
		ID:        doc.ID,
		Username:  doc.Str("username"),
		FirstName: doc.Str("firstName"),
		LastName:  doc.Str("lastName"),
		FullName:  fullName,
		Role:      role,
		Tier:      tierFor(role, doc.Str("rol"), doc.Bool("isAdmin")),
	}
}

func tierFor(role Role, rol string, isAdmin bool) Tier {
	if rol == "admin" || isAdmin {
		return TierSuperAdmin
	}
	if role == RoleEquipoDirectivo || role == RoleAdministracion {
		return TierContentAdmin
	}
	return TierNone
}
