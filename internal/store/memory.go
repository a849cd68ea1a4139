package store

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implementa Store em memória, com a mesma semântica de
// snapshots e de merge das sentinelas do backend real. Usado nos testes e
// em desenvolvimento offline.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]map[string]map[string]interface{}
	subs   map[string][]*memorySub

	// sendMu serializa snapshot + envio: cada envio carrega um estado no
	// mínimo tão novo quanto o do envio anterior, como o backend real.
	sendMu sync.Mutex
}

type memorySub struct {
	ch      chan []Document
	orderBy string
	asc     bool
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables: make(map[string]map[string]map[string]interface{}),
		subs:   make(map[string][]*memorySub),
	}
}

func (m *MemoryStore) Subscribe(ctx context.Context, collection, orderBy string, ascending bool) (<-chan []Document, error) {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &memorySub{
		ch:      make(chan []Document, 16),
		orderBy: orderBy,
		asc:     ascending,
		ctx:     subCtx,
		cancel:  cancel,
	}

	// Registro e snapshot inicial sob sendMu: um broadcast concorrente não
	// pode entregar estado mais novo antes do snapshot inicial, mais velho.
	m.sendMu.Lock()
	m.mu.Lock()
	m.subs[collection] = append(m.subs[collection], sub)
	initial := m.snapshotLocked(collection)
	m.mu.Unlock()

	// Snapshot inicial, como o backend real entrega ao subscrever.
	sub.send(sortDocs(initial, orderBy, ascending))
	m.sendMu.Unlock()

	go func() {
		<-subCtx.Done()
		m.removeSub(collection, sub)
		close(sub.ch)
	}()

	return sub.ch, nil
}

func (m *MemoryStore) Query(_ context.Context, collection string, filters ...Filter) ([]Document, error) {
	m.mu.RLock()
	docs := m.snapshotLocked(collection)
	m.mu.RUnlock()

	out := docs[:0]
	for _, d := range docs {
		match := true
		for _, f := range filters {
			if !reflect.DeepEqual(d.Data[f.Field], f.Value) {
				match = false
				break
			}
		}
		if match {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *MemoryStore) Create(_ context.Context, collection string, fields map[string]interface{}) (string, error) {
	id := uuid.NewString()

	m.mu.Lock()
	table := m.tables[collection]
	if table == nil {
		table = make(map[string]map[string]interface{})
		m.tables[collection] = table
	}
	table[id] = applySentinels(nil, fields)
	m.mu.Unlock()

	m.broadcast(collection)
	return id, nil
}

func (m *MemoryStore) Update(_ context.Context, collection, id string, fields map[string]interface{}) error {
	m.mu.Lock()
	table := m.tables[collection]
	if table == nil {
		table = make(map[string]map[string]interface{})
		m.tables[collection] = table
	}
	table[id] = applySentinels(table[id], fields)
	m.mu.Unlock()

	m.broadcast(collection)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	table := m.tables[collection]
	if table == nil || table[id] == nil {
		m.mu.Unlock()
		return fmt.Errorf("document %s/%s not found", collection, id)
	}
	delete(table, id)
	m.mu.Unlock()

	m.broadcast(collection)
	return nil
}

// snapshotLocked copia a coleção inteira. Chamador segura o lock.
func (m *MemoryStore) snapshotLocked(collection string) []Document {
	table := m.tables[collection]
	out := make([]Document, 0, len(table))
	for id, fields := range table {
		out = append(out, Document{ID: id, Data: copyFields(fields)})
	}
	return out
}

func (m *MemoryStore) broadcast(collection string) {
	m.sendMu.Lock()
	defer m.sendMu.Unlock()

	m.mu.RLock()
	docs := m.snapshotLocked(collection)
	subs := append([]*memorySub(nil), m.subs[collection]...)
	m.mu.RUnlock()

	for _, sub := range subs {
		sub.send(sortDocs(docs, sub.orderBy, sub.asc))
	}
}

func (m *MemoryStore) removeSub(collection string, sub *memorySub) {
	m.mu.Lock()
	defer m.mu.Unlock()

	subs := m.subs[collection]
	for i, s := range subs {
		if s == sub {
			m.subs[collection] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

func (s *memorySub) send(docs []Document) {
	select {
	case s.ch <- docs:
	case <-s.ctx.Done():
	}
}

// applySentinels aplica os campos sobre o documento existente com semântica
// de merge: ServerTimestamp vira o relógio do store, ArrayUnion/ArrayRemove
// operam como conjunto.
func applySentinels(existing, fields map[string]interface{}) map[string]interface{} {
	out := copyFields(existing)
	if out == nil {
		out = make(map[string]interface{}, len(fields))
	}

	for k, v := range fields {
		switch sv := v.(type) {
		case serverTimestampSentinel:
			out[k] = time.Now()
		case arrayUnionSentinel:
			current, _ := out[k].([]interface{})
			for _, item := range sv.values {
				if !containsValue(current, item) {
					current = append(current, item)
				}
			}
			out[k] = current
		case arrayRemoveSentinel:
			current, _ := out[k].([]interface{})
			kept := make([]interface{}, 0, len(current))
			for _, item := range current {
				if !containsValue(sv.values, item) {
					kept = append(kept, item)
				}
			}
			out[k] = kept
		default:
			out[k] = v
		}
	}
	return out
}

func containsValue(list []interface{}, value interface{}) bool {
	for _, item := range list {
		if reflect.DeepEqual(item, value) {
			return true
		}
	}
	return false
}

func copyFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if list, ok := v.([]interface{}); ok {
			v = append([]interface{}(nil), list...)
		}
		out[k] = v
	}
	return out
}

func sortDocs(docs []Document, orderBy string, asc bool) []Document {
	if orderBy == "" {
		sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
		return docs
	}

	sort.SliceStable(docs, func(i, j int) bool {
		vi, iOK := docs[i].Data[orderBy]
		vj, jOK := docs[j].Data[orderBy]
		if !iOK || !jOK {
			// Documentos sem o campo de ordenação vão para o fim.
			return iOK
		}
		cmp := compareValues(vi, vj)
		if cmp == 0 {
			return docs[i].ID < docs[j].ID
		}
		if asc {
			return cmp < 0
		}
		return cmp > 0
	})
	return docs
}

func compareValues(a, b interface{}) int {
	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			switch {
			case av.Before(bv):
				return -1
			case av.After(bv):
				return 1
			}
			return 0
		}
	case string:
		if bv, ok := b.(string); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case int:
		if bv, ok := b.(int); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case int64:
		if bv, ok := b.(int64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	}
	// Tipos mistos: ordenação estável por representação textual.
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}
