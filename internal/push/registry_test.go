package push

import (
	"reflect"
	"sort"
	"testing"

	"escuela-digital/internal/store"
)

func userTokens(t *testing.T, st *store.MemoryStore, userID string) []string {
	t.Helper()

	docs, err := st.Query(t.Context(), store.CollectionUsers)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	for _, doc := range docs {
		if doc.ID == userID {
			tokens := doc.StrSlice("fcmTokens")
			sort.Strings(tokens)
			return tokens
		}
	}
	t.Fatalf("usuário %s não encontrado", userID)
	return nil
}

func newUser(t *testing.T, st *store.MemoryStore) string {
	t.Helper()

	id, err := st.Create(t.Context(), store.CollectionUsers, map[string]interface{}{
		"username": "agarcia",
		"role":     "Docente",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return id
}

func TestRegisterTokenIdempotent(t *testing.T) {
	st := store.NewMemoryStore()
	registry := NewTokenRegistry(st)
	userID := newUser(t, st)

	if err := registry.RegisterToken(t.Context(), userID, "tok-1"); err != nil {
		t.Fatalf("RegisterToken: %v", err)
	}
	if err := registry.RegisterToken(t.Context(), userID, "tok-1"); err != nil {
		t.Fatalf("RegisterToken repetido: %v", err)
	}

	if got := userTokens(t, st, userID); !reflect.DeepEqual(got, []string{"tok-1"}) {
		t.Fatalf("registro duplicado alterou o conjunto: %v", got)
	}
}

func TestRegisterTokenCommutative(t *testing.T) {
	ctx := t.Context()

	stA := store.NewMemoryStore()
	userA := newUser(t, stA)
	regA := NewTokenRegistry(stA)
	regA.RegisterToken(ctx, userA, "tok-1")
	regA.RegisterToken(ctx, userA, "tok-2")

	stB := store.NewMemoryStore()
	userB := newUser(t, stB)
	regB := NewTokenRegistry(stB)
	regB.RegisterToken(ctx, userB, "tok-2")
	regB.RegisterToken(ctx, userB, "tok-1")

	if !reflect.DeepEqual(userTokens(t, stA, userA), userTokens(t, stB, userB)) {
		t.Fatal("ordem de registro alterou o conjunto final")
	}
}

func TestRegisterTokenMultiDevice(t *testing.T) {
	st := store.NewMemoryStore()
	registry := NewTokenRegistry(st)
	userID := newUser(t, st)
	ctx := t.Context()

	registry.RegisterToken(ctx, userID, "celular")
	registry.RegisterToken(ctx, userID, "tablet")

	got := userTokens(t, st, userID)
	if !reflect.DeepEqual(got, []string{"celular", "tablet"}) {
		t.Fatalf("um dispositivo expulsou o outro: %v", got)
	}
}

func TestRegisterTokenStampsUpdate(t *testing.T) {
	st := store.NewMemoryStore()
	registry := NewTokenRegistry(st)
	userID := newUser(t, st)

	if err := registry.RegisterToken(t.Context(), userID, "tok-1"); err != nil {
		t.Fatalf("RegisterToken: %v", err)
	}

	docs, _ := st.Query(t.Context(), store.CollectionUsers)
	if _, ok := docs[0].Time("lastTokenUpdate"); !ok {
		t.Fatal("lastTokenUpdate não foi carimbado")
	}
}

func TestRegisterEmptyTokenIsNoop(t *testing.T) {
	st := store.NewMemoryStore()
	registry := NewTokenRegistry(st)
	userID := newUser(t, st)

	if err := registry.RegisterToken(t.Context(), userID, ""); err != nil {
		t.Fatalf("token vazio deveria ser absorvido: %v", err)
	}

	docs, _ := st.Query(t.Context(), store.CollectionUsers)
	if len(docs[0].StrSlice("fcmTokens")) != 0 {
		t.Fatal("token vazio não deveria ser gravado")
	}
}

func TestRemoveToken(t *testing.T) {
	st := store.NewMemoryStore()
	registry := NewTokenRegistry(st)
	userID := newUser(t, st)
	ctx := t.Context()

	registry.RegisterToken(ctx, userID, "vivo")
	registry.RegisterToken(ctx, userID, "muerto")

	if err := registry.RemoveToken(ctx, userID, "muerto"); err != nil {
		t.Fatalf("RemoveToken: %v", err)
	}

	if got := userTokens(t, st, userID); !reflect.DeepEqual(got, []string{"vivo"}) {
		t.Fatalf("remoção errada: %v", got)
	}
}
