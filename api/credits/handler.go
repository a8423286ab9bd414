// Package credits serves the simulated carbon-credit account.
package credits

import (
	"encoding/json"
	"net/http"

	"github.com/kilianp07/carbonlane/api/respond"
	"github.com/kilianp07/carbonlane/core/lane"
	"github.com/kilianp07/carbonlane/core/ledger"
	"github.com/kilianp07/carbonlane/core/logger"
)

// PurchaseMessage accompanies every successful purchase.
const PurchaseMessage = "Carbon credits purchased successfully (simulated)"

type purchaseRequest struct {
	Credits json.Number `json:"credits"`
}

// PurchaseResponse is the body of POST /carbon-neutral/purchase.
type PurchaseResponse struct {
	Success          bool            `json:"success"`
	CreditsPurchased float64         `json:"credits_purchased"`
	NewBalance       float64         `json:"new_balance"`
	Message          string          `json:"message"`
	Purchase         ledger.Purchase `json:"purchase"`
}

// NewAccountHandler serves GET /carbon-neutral/account.
func NewAccountHandler(l ledger.Ledger, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acc, err := l.Account(r.Context())
		if err != nil {
			respond.Error(w, log, err)
			return
		}
		if acc.History == nil {
			acc.History = []ledger.Purchase{}
		}
		respond.JSON(w, http.StatusOK, acc)
	})
}

// NewPurchaseHandler serves POST /carbon-neutral/purchase with {"credits": n}.
// Numeric strings are accepted.
func NewPurchaseHandler(l ledger.Ledger, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req purchaseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respond.Error(w, log, lane.InvalidInput("credits", "invalid credits value"))
			return
		}
		credits, err := req.Credits.Float64()
		if err != nil {
			respond.Error(w, log, lane.InvalidInput("credits", "invalid credits value"))
			return
		}
		p, err := l.Purchase(r.Context(), credits)
		if err != nil {
			respond.Error(w, log, err)
			return
		}
		log.Infow("credits purchased", map[string]any{"purchase_id": p.ID, "credits": p.Credits})
		respond.JSON(w, http.StatusOK, PurchaseResponse{
			Success:          true,
			CreditsPurchased: p.Credits,
			NewBalance:       p.BalanceAfter,
			Message:          PurchaseMessage,
			Purchase:         p,
		})
	})
}
