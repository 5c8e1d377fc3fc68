package controllers

import (
	"net/http"

	"github.com/actedhq/acted-backend/api/responses"
	"github.com/actedhq/acted-backend/api/validators"
	"github.com/actedhq/acted-backend/internal/cart"
	"github.com/actedhq/acted-backend/internal/vat"
	"github.com/actedhq/acted-backend/pkg/logger"
)

type vatCalculateRequest struct {
	RaiseOnError bool `json:"raise_on_error"`
}

// CartCalculateVAT runs the VAT pipeline for a cart and returns the stored
// result document. When the pipeline fails and raise_on_error is false the
// cart's error flags are returned instead of a transport error.
func CartCalculateVAT(vatSvc vat.Service, cartSvc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cartID, err := parseCartID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload vatCalculateRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		result, err := vatSvc.CalculateVATForCart(r.Context(), cartID, vat.CalculateOptions{
			RaiseOnError: payload.RaiseOnError,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if result != nil {
			responses.WriteSuccess(w, result)
			return
		}

		// Swallowed failure. Report the error state persisted on the cart.
		flagged, err := cartSvc.GetCart(r.Context(), cartID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"status":  "error",
			"message": flagged.VATCalculationErrorMessage,
		})
	}
}
