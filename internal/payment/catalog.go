package payment

import (
	"context"

	"github.com/google/uuid"

	"github.com/hitoshi/dongin/internal/model"
	"github.com/hitoshi/dongin/internal/store"
	"github.com/hitoshi/dongin/internal/validation"
)

// ListItems はカタログの全行を返す。
func (s *Service) ListItems(ctx context.Context) ([]model.PaymentItem, error) {
	return s.loadItems(ctx)
}

// CreateItem はカタログ行を追加する。
func (s *Service) CreateItem(ctx context.Context, in ItemInput) (*model.PaymentItem, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.loadItems(ctx)
	if err != nil {
		return nil, err
	}
	item := itemFromInput(uuid.New().String(), in)
	if err := s.saveItems(ctx, append(items, item)); err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateItem はカタログ行を更新する。既存の決済リクエストの明細は変わらない。
func (s *Service) UpdateItem(ctx context.Context, id string, in ItemInput) (*model.PaymentItem, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.loadItems(ctx)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ID != id {
			continue
		}
		items[i] = itemFromInput(id, in)
		if err := s.saveItems(ctx, items); err != nil {
			return nil, err
		}
		item := items[i]
		return &item, nil
	}
	return nil, model.NewNotFoundError("교재", id)
}

// DeleteItem はカタログ行を削除する。
func (s *Service) DeleteItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.loadItems(ctx)
	if err != nil {
		return err
	}
	for i := range items {
		if items[i].ID == id {
			return s.saveItems(ctx, append(items[:i], items[i+1:]...))
		}
	}
	return model.NewNotFoundError("교재", id)
}

func itemFromInput(id string, in ItemInput) model.PaymentItem {
	return model.PaymentItem{
		ID:          id,
		Title:       in.Title,
		Description: in.Description,
		Price:       in.Price,
		School:      in.School,
		Grade:       in.Grade,
		Category:    in.Category,
		IsRequired:  in.IsRequired,
	}
}

func (s *Service) loadItems(ctx context.Context) ([]model.PaymentItem, error) {
	items, err := store.Load(ctx, s.store, store.KeyPaymentItems, []model.PaymentItem{})
	if err != nil {
		return nil, model.NewStorageUnavailableError()
	}
	return items, nil
}

func (s *Service) saveItems(ctx context.Context, items []model.PaymentItem) error {
	if err := store.Save(ctx, s.store, store.KeyPaymentItems, items); err != nil {
		return model.NewStorageUnavailableError()
	}
	return nil
}
