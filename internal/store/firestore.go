package store

import (
	"context"
	"fmt"
	"log"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore implementa Store sobre o Cloud Firestore, usando o mesmo
// layout de coleções do app web: artifacts/{appID}/public/data/{coleção}.
type FirestoreStore struct {
	client *firestore.Client
	appID  string
}

// NewFirestoreStore inicializa o cliente Firestore via Firebase Admin SDK
func NewFirestoreStore(ctx context.Context, credentialsPath, projectID, appID string) (*FirestoreStore, error) {
	opt := option.WithCredentialsFile(credentialsPath)
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting Firestore client: %w", err)
	}

	log.Println("✅ Firestore inicializado com sucesso")

	return &FirestoreStore{client: client, appID: appID}, nil
}

func (s *FirestoreStore) collection(name string) *firestore.CollectionRef {
	return s.client.Collection(fmt.Sprintf("artifacts/%s/public/data/%s", s.appID, name))
}

// Subscribe entrega snapshots completos da coleção a cada alteração.
// O canal é fechado quando o contexto termina ou o stream falha de vez.
func (s *FirestoreStore) Subscribe(ctx context.Context, collection, orderBy string, ascending bool) (<-chan []Document, error) {
	q := s.collection(collection).Query
	if orderBy != "" {
		dir := firestore.Asc
		if !ascending {
			dir = firestore.Desc
		}
		q = q.OrderBy(orderBy, dir)
	}

	it := q.Snapshots(ctx)
	ch := make(chan []Document, 1)

	go func() {
		defer close(ch)
		defer it.Stop()

		for {
			snap, err := it.Next()
			if err != nil {
				if status.Code(err) == codes.Canceled || ctx.Err() != nil {
					return
				}
				// Erros do iterador de snapshots são permanentes; o último
				// estado conhecido fica em pé do lado do consumidor.
				log.Printf("⚠️  Subscrição '%s' encerrada: %v", collection, err)
				return
			}

			docs, err := snap.Documents.GetAll()
			if err != nil {
				log.Printf("⚠️  Erro ao ler snapshot de '%s': %v", collection, err)
				continue
			}

			out := make([]Document, 0, len(docs))
			for _, d := range docs {
				out = append(out, Document{ID: d.Ref.ID, Data: d.Data()})
			}

			select {
			case ch <- out:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

func (s *FirestoreStore) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	q := s.collection(collection).Query
	for _, f := range filters {
		q = q.Where(f.Field, "==", f.Value)
	}

	docs, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}

	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		out = append(out, Document{ID: d.Ref.ID, Data: d.Data()})
	}
	return out, nil
}

func (s *FirestoreStore) Create(ctx context.Context, collection string, fields map[string]interface{}) (string, error) {
	ref, _, err := s.collection(collection).Add(ctx, translateSentinels(fields))
	if err != nil {
		return "", fmt.Errorf("failed to create in %s: %w", collection, err)
	}
	return ref.ID, nil
}

func (s *FirestoreStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	_, err := s.collection(collection).Doc(id).Set(ctx, translateSentinels(fields), firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *FirestoreStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.collection(collection).Doc(id).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// Close libera o cliente Firestore.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

// translateSentinels converte as sentinelas do pacote para as transformações
// de campo nativas do Firestore.
func translateSentinels(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		switch sv := v.(type) {
		case serverTimestampSentinel:
			out[k] = firestore.ServerTimestamp
		case arrayUnionSentinel:
			out[k] = firestore.ArrayUnion(sv.values...)
		case arrayRemoveSentinel:
			out[k] = firestore.ArrayRemove(sv.values...)
		default:
			out[k] = v
		}
	}
	return out
}
