package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/actedhq/acted-backend/pkg/db"
	"github.com/actedhq/acted-backend/pkg/db/models"
	pkgerrors "github.com/actedhq/acted-backend/pkg/errors"
	"github.com/actedhq/acted-backend/pkg/types"
)

// Service exposes cart and cart item management. Every item mutation clears
// the owning cart's cached VAT result in the same transaction, so a cached
// document can never describe a cart shape that no longer exists.
type Service interface {
	CreateCart(ctx context.Context, userID *uuid.UUID) (*models.Cart, error)
	GetCart(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	AddItem(ctx context.Context, cartID uuid.UUID, input AddItemInput) (*models.CartItem, error)
	UpdateItem(ctx context.Context, cartID, itemID uuid.UUID, input UpdateItemInput) (*models.CartItem, error)
	RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error
}

// AddItemInput holds the validated payload to add a cart line.
type AddItemInput struct {
	ProductCode string
	Quantity    int
	ActualPrice decimal.Decimal
	Position    int
	Metadata    *types.CartItemMetadata
}

// UpdateItemInput holds optional mutation values for a cart line.
type UpdateItemInput struct {
	ProductCode *string
	Quantity    *int
	ActualPrice *decimal.Decimal
	Position    *int
	Metadata    *types.CartItemMetadata
}

type service struct {
	repo     *Repository
	items    *ItemRepository
	dbClient *db.Client
}

// NewService constructs a cart service instance.
func NewService(repo *Repository, items *ItemRepository, dbClient *db.Client) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if items == nil {
		return nil, fmt.Errorf("cart item repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &service{repo: repo, items: items, dbClient: dbClient}, nil
}

func (s *service) CreateCart(ctx context.Context, userID *uuid.UUID) (*models.Cart, error) {
	cart := &models.Cart{ID: uuid.New(), UserID: userID}
	if _, err := s.repo.Create(ctx, cart); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return cart, nil
}

func (s *service) GetCart(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	cart, err := s.repo.FindByID(ctx, cartID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

func (s *service) AddItem(ctx context.Context, cartID uuid.UUID, input AddItemInput) (*models.CartItem, error) {
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if input.ActualPrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actual_price must not be negative")
	}

	item := &models.CartItem{
		ID:          uuid.New(),
		CartID:      cartID,
		ProductCode: &input.ProductCode,
		Quantity:    input.Quantity,
		ActualPrice: input.ActualPrice,
		Position:    input.Position,
		Metadata:    input.Metadata,
	}

	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).FindByID(ctx, cartID); err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if err := s.items.WithTx(tx).Create(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart item")
		}
		return s.repo.WithTx(tx).ClearVATCache(ctx, cartID)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *service) UpdateItem(ctx context.Context, cartID, itemID uuid.UUID, input UpdateItemInput) (*models.CartItem, error) {
	if input.Quantity != nil && *input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if input.ActualPrice != nil && input.ActualPrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actual_price must not be negative")
	}

	var item *models.CartItem
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		item, err = s.items.WithTx(tx).FindByID(ctx, cartID, itemID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}

		applyItemUpdate(item, input)
		if err := s.items.WithTx(tx).Save(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart item")
		}
		return s.repo.WithTx(tx).ClearVATCache(ctx, cartID)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *service) RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	return s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		affected, err := s.items.WithTx(tx).Delete(ctx, cartID, itemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return s.repo.WithTx(tx).ClearVATCache(ctx, cartID)
	})
}

// applyItemUpdate copies provided values onto the item and clears the line's
// denormalized VAT columns.
func applyItemUpdate(item *models.CartItem, input UpdateItemInput) {
	if input.ProductCode != nil {
		item.ProductCode = input.ProductCode
	}
	if input.Quantity != nil {
		item.Quantity = *input.Quantity
	}
	if input.ActualPrice != nil {
		item.ActualPrice = *input.ActualPrice
	}
	if input.Position != nil {
		item.Position = *input.Position
	}
	if input.Metadata != nil {
		item.Metadata = input.Metadata
	}

	item.VATRegion = nil
	item.VATRate = nil
	item.VATAmount = nil
	item.GrossAmount = nil
	item.VATCalculatedAt = nil
	item.VATRuleVersion = nil
}
