package identity

import (
	"testing"

	"escuela-digital/internal/store"
)

func TestActorFromDocument(t *testing.T) {
	doc := store.Document{
		ID: "u42",
		Data: map[string]interface{}{
			"username":  "agarcia",
			"firstName": "Ana",
			"lastName":  "García",
			"fullName":  "Ana García",
			"role":      "Docente",
		},
	}

	actor := ActorFromDocument(doc)
	if actor.ID != "u42" || actor.Username != "agarcia" {
		t.Fatalf("identidade errada: %+v", actor)
	}
	if actor.Role != RoleDocente || actor.Tier != TierNone {
		t.Fatalf("role/tier errados: %+v", actor)
	}
}

func TestActorFullNameFallback(t *testing.T) {
	doc := store.Document{
		ID: "u1",
		Data: map[string]interface{}{
			"firstName": "Ana",
			"lastName":  "García",
		},
	}

	if got := ActorFromDocument(doc).FullName; got != "Ana García" {
		t.Fatalf("FullName = %q", got)
	}
}

func TestTierDerivation(t *testing.T) {
	tests := []struct {
		name string
		data map[string]interface{}
		want Tier
	}{
		{"docente sem flags", map[string]interface{}{"role": "Docente"}, TierNone},
		{"equipo directivo", map[string]interface{}{"role": "Equipo Directivo"}, TierContentAdmin},
		{"administración", map[string]interface{}{"role": "Administración"}, TierContentAdmin},
		{"rol admin sobrepõe", map[string]interface{}{"role": "Docente", "rol": "admin"}, TierSuperAdmin},
		{"flag isAdmin sobrepõe", map[string]interface{}{"role": "Docente", "isAdmin": true}, TierSuperAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor := ActorFromDocument(store.Document{ID: "u", Data: tt.data})
			if actor.Tier != tt.want {
				t.Fatalf("Tier = %s, want %s", actor.Tier, tt.want)
			}
		})
	}
}

func TestAuthenticate(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := t.Context()

	_, err := st.Create(ctx, store.CollectionUsers, map[string]interface{}{
		"username": "agarcia",
		"password": "secreta",
		"role":     "Docente",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	actor, err := Authenticate(ctx, st, "agarcia", "secreta")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if actor.Username != "agarcia" || actor.Role != RoleDocente {
		t.Fatalf("actor errado: %+v", actor)
	}

	if _, err := Authenticate(ctx, st, "agarcia", "errada"); err != ErrInvalidCredentials {
		t.Fatalf("esperava ErrInvalidCredentials, veio %v", err)
	}
}
