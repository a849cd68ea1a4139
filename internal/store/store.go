package store

import (
	"context"
	"time"
)

// Coleções usadas pelo portal (sob artifacts/{appID}/public/data).
const (
	CollectionTasks            = "tasks"
	CollectionEvents           = "events"
	CollectionUsers            = "users"
	CollectionAnnouncements    = "announcements"
	CollectionPasswordRequests = "passwordRequests"
)

// Document é um documento genérico da base de dados em tempo real.
type Document struct {
	ID   string
	Data map[string]interface{}
}

// Str devolve o campo como string, ou "" se ausente/de outro tipo.
func (d Document) Str(key string) string {
	if v, ok := d.Data[key].(string); ok {
		return v
	}
	return ""
}

// Bool devolve o campo como bool, ou false se ausente/de outro tipo.
func (d Document) Bool(key string) bool {
	if v, ok := d.Data[key].(bool); ok {
		return v
	}
	return false
}

// Time devolve o campo como time.Time. O segundo retorno indica se o campo
// existia e tinha um tipo de data válido.
func (d Document) Time(key string) (time.Time, bool) {
	switch v := d.Data[key].(type) {
	case time.Time:
		return v, true
	case *time.Time:
		if v != nil {
			return *v, true
		}
	}
	return time.Time{}, false
}

// StrSlice devolve o campo como lista de strings. Firestore devolve arrays
// como []interface{}, o store em memória pode guardar []string.
func (d Document) StrSlice(key string) []string {
	switch v := d.Data[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Filter é um filtro de igualdade para Query.
type Filter struct {
	Field string
	Value interface{}
}

// Sentinelas interpretadas pelo backend no momento da escrita.
type serverTimestampSentinel struct{}

// ServerTimestamp marca o campo para receber o timestamp atribuído pelo
// servidor da base de dados, nunca o relógio do cliente.
var ServerTimestamp = serverTimestampSentinel{}

type arrayUnionSentinel struct{ values []interface{} }

type arrayRemoveSentinel struct{ values []interface{} }

// ArrayUnion marca o campo para união de conjunto: comutativa e idempotente,
// nunca sobrescreve valores já presentes.
func ArrayUnion(values ...interface{}) interface{} {
	return arrayUnionSentinel{values: values}
}

// ArrayRemove marca o campo para remoção de elementos do conjunto.
func ArrayRemove(values ...interface{}) interface{} {
	return arrayRemoveSentinel{values: values}
}

// Store é o adaptador da base de documentos em tempo real.
//
// Subscribe entrega snapshots completos (substituição total, não delta) da
// coleção a cada alteração, até o contexto ser cancelado; o canal é fechado
// no teardown. Update tem semântica de merge sobre os campos indicados.
type Store interface {
	Subscribe(ctx context.Context, collection, orderBy string, ascending bool) (<-chan []Document, error)
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	Create(ctx context.Context, collection string, fields map[string]interface{}) (string, error)
	Update(ctx context.Context, collection, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, collection, id string) error
}
