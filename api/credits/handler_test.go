package credits

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/carbonlane/core/lane"
	"github.com/kilianp07/carbonlane/core/ledger"
	"github.com/kilianp07/carbonlane/core/logger"
)

func post(h http.Handler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/carbon-neutral/purchase", strings.NewReader(body)))
	return rec
}

func TestPurchaseAndAccount(t *testing.T) {
	clk := lane.FixedClock{T: time.Date(2024, 7, 3, 12, 0, 0, 0, time.UTC)}
	l := ledger.NewMemoryLedger(ledger.WithClock(clk))
	log := logger.NopLogger{}

	rec := httptest.NewRecorder()
	NewAccountHandler(l, log).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/carbon-neutral/account", nil))
	assert.JSONEq(t, `{"credits_balance":0,"purchase_history":[]}`, rec.Body.String())

	rec = post(NewPurchaseHandler(l, log), `{"credits": 12.5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp PurchaseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 12.5, resp.CreditsPurchased)
	assert.Equal(t, 12.5, resp.NewBalance)
	assert.Equal(t, PurchaseMessage, resp.Message)
	assert.NotEmpty(t, resp.Purchase.ID)

	rec = post(NewPurchaseHandler(l, log), `{"credits": "7.5"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	NewAccountHandler(l, log).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/carbon-neutral/account", nil))
	var acc ledger.Account
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &acc))
	assert.Equal(t, 20.0, acc.Balance)
	require.Len(t, acc.History, 2)
	assert.Equal(t, 20.0, acc.History[1].BalanceAfter)
}

func TestPurchaseRejects(t *testing.T) {
	l := ledger.NewMemoryLedger()
	h := NewPurchaseHandler(l, logger.NopLogger{})
	for _, body := range []string{`{"credits": 0}`, `{"credits": -3}`, `{"credits": 10001}`, `{"credits": "abc"}`, `{}`, `not json`} {
		rec := post(h, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Contains(t, rec.Body.String(), `"error"`, body)
	}
	acc, err := l.Account(context.Background())
	require.NoError(t, err)
	assert.Zero(t, acc.Balance)
}
