package service

import (
	"context"
	"fmt"
	"io"

	"github.com/unclebandit/aidplug-crm/internal/blob"
	appErrors "github.com/unclebandit/aidplug-crm/internal/errors"
	"github.com/unclebandit/aidplug-crm/internal/model"
	"github.com/unclebandit/aidplug-crm/internal/repository"
)

var clientSearchColumns = []string{"full_name", "company_name", "email", "phone"}

// ClientService is the clients collection.
type ClientService struct {
	*Collection[model.Client]
	photos blob.Store
}

// NewClientService creates the clients collection. photos may be nil, in
// which case UploadPhoto fails.
func NewClientService(clients repository.CollectionRepositoryInterface[model.Client], photos blob.Store, opts Options) *ClientService {
	return &ClientService{Collection: NewCollection(clients, opts), photos: photos}
}

// UploadPhoto stores a client's photo, overwriting any previous one, and
// points the client's photo_url at it.
func (s *ClientService) UploadPhoto(ctx context.Context, clientID, filename string, r io.Reader) (model.Client, error) {
	var client model.Client
	err := s.do(ctx, "upload_photo", func(ctx context.Context) error {
		if s.photos == nil {
			return s.fail(fmt.Errorf("photo storage is not configured"))
		}
		key := blob.ClientPhotoKey(clientID, filename)
		if _, err := s.photos.Put(ctx, key, r, blob.PutOptions{ContentType: blob.ContentType(filename), Upsert: true}); err != nil {
			return s.fail(fmt.Errorf("upload client photo: %w", err))
		}
		var err error
		client, err = s.update(ctx, clientID, model.ClientInput{PhotoURL: model.Ptr(s.photos.PublicURL(key))})
		return err
	})
	return client, err
}

// ByStatus lists clients with the given relationship status.
func (s *ClientService) ByStatus(ctx context.Context, status string) ([]model.Client, error) {
	return s.store.List(ctx, repository.Where(repository.Eq("relationship_status", status)))
}

// Search matches term against name, company, email and phone.
func (s *ClientService) Search(ctx context.Context, term string) ([]model.Client, error) {
	return search(ctx, s.store, term, clientSearchColumns)
}

func (s *ClientService) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx, repository.ListOptions{})
}

// Get reads one client; a missing client is a *appErrors.NotFoundError.
func (s *ClientService) Get(ctx context.Context, id string) (model.Client, error) {
	return mustGet(ctx, s.store, id)
}

func mustGet[T any](ctx context.Context, store repository.CollectionRepositoryInterface[T], id string) (T, error) {
	res, err := store.Get(ctx, id)
	if err != nil {
		return res.Record, err
	}
	if !res.Found {
		return res.Record, appErrors.NewNotFound(store.Table(), id)
	}
	return res.Record, nil
}
