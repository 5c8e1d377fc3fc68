package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/actedhq/acted-backend/api/responses"
	"github.com/actedhq/acted-backend/api/validators"
	"github.com/actedhq/acted-backend/internal/cart"
	"github.com/actedhq/acted-backend/pkg/db/models"
	"github.com/actedhq/acted-backend/pkg/enums"
	pkgerrors "github.com/actedhq/acted-backend/pkg/errors"
	"github.com/actedhq/acted-backend/pkg/logger"
	"github.com/actedhq/acted-backend/pkg/types"
)

type cartCreateRequest struct {
	UserID *string `json:"user_id"`
}

type cartItemRequest struct {
	ProductCode string                  `json:"product_code" validate:"required"`
	Quantity    int                     `json:"quantity" validate:"required,min=1"`
	ActualPrice string                  `json:"actual_price" validate:"required"`
	Position    int                     `json:"position"`
	Metadata    *types.CartItemMetadata `json:"metadata"`
}

type cartItemUpdateRequest struct {
	ProductCode *string                 `json:"product_code"`
	Quantity    *int                    `json:"quantity"`
	ActualPrice *string                 `json:"actual_price"`
	Position    *int                    `json:"position"`
	Metadata    *types.CartItemMetadata `json:"metadata"`
}

// CartCreate opens a new cart, optionally bound to a user.
func CartCreate(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload cartCreateRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		var userID *uuid.UUID
		if payload.UserID != nil {
			parsed, err := uuid.Parse(strings.TrimSpace(*payload.UserID))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user_id"))
				return
			}
			userID = &parsed
		}

		created, err := svc.CreateCart(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, cartResponseFromModel(created))
	}
}

// CartFetch returns a cart with its items and any cached VAT result.
func CartFetch(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartID, err := parseCartID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		found, err := svc.GetCart(r.Context(), cartID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, cartResponseFromModel(found))
	}
}

// CartAddItem appends a line to the cart and clears its cached VAT result.
func CartAddItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartID, err := parseCartID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		price, err := decimal.NewFromString(strings.TrimSpace(payload.ActualPrice))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid actual_price"))
			return
		}

		created, err := svc.AddItem(r.Context(), cartID, cart.AddItemInput{
			ProductCode: strings.TrimSpace(payload.ProductCode),
			Quantity:    payload.Quantity,
			ActualPrice: price,
			Position:    payload.Position,
			Metadata:    payload.Metadata,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, cartItemResponseFromModel(created))
	}
}

// CartUpdateItem applies a partial update to a cart line.
func CartUpdateItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartID, err := parseCartID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := parseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cartItemUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := cart.UpdateItemInput{
			Quantity: payload.Quantity,
			Position: payload.Position,
			Metadata: payload.Metadata,
		}
		if payload.ProductCode != nil {
			code := strings.TrimSpace(*payload.ProductCode)
			input.ProductCode = &code
		}
		if payload.ActualPrice != nil {
			price, err := decimal.NewFromString(strings.TrimSpace(*payload.ActualPrice))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid actual_price"))
				return
			}
			input.ActualPrice = &price
		}

		updated, err := svc.UpdateItem(r.Context(), cartID, itemID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, cartItemResponseFromModel(updated))
	}
}

// CartRemoveItem deletes a cart line and clears the cached VAT result.
func CartRemoveItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartID, err := parseCartID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := parseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.RemoveItem(r.Context(), cartID, itemID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

func parseCartID(r *http.Request) (uuid.UUID, error) {
	return parseUUIDParam(r, "cartId")
}

func parseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return parsed, nil
}

type cartResponse struct {
	ID                         uuid.UUID           `json:"id"`
	UserID                     *uuid.UUID          `json:"user_id"`
	Items                      []cartItemResponse  `json:"items"`
	VATResult                  *types.VATResultDoc `json:"vat_result"`
	VATLastCalculatedAt        *time.Time          `json:"vat_last_calculated_at"`
	VATCalculationError        bool                `json:"vat_calculation_error"`
	VATCalculationErrorMessage *string             `json:"vat_calculation_error_message"`
	CreatedAt                  time.Time           `json:"created_at"`
	UpdatedAt                  time.Time           `json:"updated_at"`
}

type cartItemResponse struct {
	ID              uuid.UUID               `json:"id"`
	CartID          uuid.UUID               `json:"cart_id"`
	ProductCode     *string                 `json:"product_code"`
	Quantity        int                     `json:"quantity"`
	ActualPrice     string                  `json:"actual_price"`
	Position        int                     `json:"position"`
	Metadata        *types.CartItemMetadata `json:"metadata,omitempty"`
	VATRegion       *enums.RegionCode       `json:"vat_region"`
	VATRate         *string                 `json:"vat_rate"`
	VATAmount       *string                 `json:"vat_amount"`
	GrossAmount     *string                 `json:"gross_amount"`
	VATCalculatedAt *time.Time              `json:"vat_calculated_at"`
	VATRuleVersion  *string                 `json:"vat_rule_version"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

func cartResponseFromModel(m *models.Cart) cartResponse {
	items := make([]cartItemResponse, 0, len(m.Items))
	for i := range m.Items {
		items = append(items, cartItemResponseFromModel(&m.Items[i]))
	}
	return cartResponse{
		ID:                         m.ID,
		UserID:                     m.UserID,
		Items:                      items,
		VATResult:                  m.VATResult,
		VATLastCalculatedAt:        m.VATLastCalculatedAt,
		VATCalculationError:        m.VATCalculationError,
		VATCalculationErrorMessage: m.VATCalculationErrorMessage,
		CreatedAt:                  m.CreatedAt,
		UpdatedAt:                  m.UpdatedAt,
	}
}

func cartItemResponseFromModel(m *models.CartItem) cartItemResponse {
	resp := cartItemResponse{
		ID:              m.ID,
		CartID:          m.CartID,
		ProductCode:     m.ProductCode,
		Quantity:        m.Quantity,
		ActualPrice:     types.MoneyString(m.ActualPrice),
		Position:        m.Position,
		Metadata:        m.Metadata,
		VATRegion:       m.VATRegion,
		VATCalculatedAt: m.VATCalculatedAt,
		VATRuleVersion:  m.VATRuleVersion,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if m.VATRate != nil {
		rate := types.RateString(*m.VATRate)
		resp.VATRate = &rate
	}
	if m.VATAmount != nil {
		amount := types.MoneyString(*m.VATAmount)
		resp.VATAmount = &amount
	}
	if m.GrossAmount != nil {
		gross := types.MoneyString(*m.GrossAmount)
		resp.GrossAmount = &gross
	}
	return resp
}
