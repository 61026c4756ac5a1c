package handler

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"family-service/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 { return &f }

func seedTransactions(t *testing.T, h *FinancialHandler) {
	t.Helper()
	for _, txn := range []model.Transaction{
		{Name: "Donation", Amount: 1000, Type: model.TransactionIncome, Category: "donations", Date: time.Now(), CreatedBy: 1},
		{Name: "Subscription", Amount: 250, Type: model.TransactionIncome, Category: "subscriptions", Date: time.Now(), CreatedBy: 1},
		{Name: "Venue rent", Amount: 400, Type: model.TransactionExpense, Category: "events", Date: time.Now(), CreatedBy: 1},
	} {
		require.NoError(t, h.db.Create(&txn).Error)
	}
}

func TestTransactionCreateValidation(t *testing.T) {
	db := openTestDB(t)
	h := NewFinancialHandler(db, testNotifier(db), testConfig())

	c, _ := jsonContext(t, http.MethodPost, "/financial", TransactionRequest{
		Name: "Donation", Category: "donations", Amount: floatPtr(-5), Type: model.TransactionIncome,
	}, 1)
	assert.Equal(t, 400, appErrCode(t, h.Create(c)))

	c, _ = jsonContext(t, http.MethodPost, "/financial", TransactionRequest{
		Name: "Donation", Category: "donations", Amount: floatPtr(100), Type: "transfer",
	}, 1)
	assert.Equal(t, 400, appErrCode(t, h.Create(c)))

	c, rec := jsonContext(t, http.MethodPost, "/financial", TransactionRequest{
		Name: "Donation", Category: "donations", Amount: floatPtr(100), Type: model.TransactionIncome,
	}, 1)
	require.NoError(t, h.Create(c))
	requireStatus(t, rec, http.StatusCreated)
}

func TestTransactionListFiltersByType(t *testing.T) {
	db := openTestDB(t)
	h := NewFinancialHandler(db, testNotifier(db), testConfig())
	seedTransactions(t, h)

	c, rec := jsonContext(t, http.MethodGet, "/financial?type=income", nil, 1)
	require.NoError(t, h.List(c))
	requireStatus(t, rec, http.StatusOK)

	var resp struct {
		Data       []model.Transaction `json:"data"`
		Pagination Pagination          `json:"pagination"`
	}
	require.NoError(t, decodeInto(rec, &resp))
	assert.Len(t, resp.Data, 2)
	assert.Equal(t, int64(2), resp.Pagination.Total)
}

func TestFinancialSummary(t *testing.T) {
	db := openTestDB(t)
	h := NewFinancialHandler(db, testNotifier(db), testConfig())
	seedTransactions(t, h)

	c, rec := jsonContext(t, http.MethodGet, "/financial/summary", nil, 1)
	require.NoError(t, h.Summary(c))
	requireStatus(t, rec, http.StatusOK)

	env := decodeEnvelope(t, rec)
	var summary struct {
		Income  float64 `json:"income"`
		Expense float64 `json:"expense"`
		Balance float64 `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, 1250.0, summary.Income)
	assert.Equal(t, 400.0, summary.Expense)
	assert.Equal(t, 850.0, summary.Balance)
}

func TestTransactionDeleteAll(t *testing.T) {
	db := openTestDB(t)
	h := NewFinancialHandler(db, testNotifier(db), testConfig())
	seedTransactions(t, h)

	c, rec := jsonContext(t, http.MethodDelete, "/financial", nil, 1)
	require.NoError(t, h.DeleteAll(c))
	requireStatus(t, rec, http.StatusOK)

	var count int64
	require.NoError(t, db.Model(&model.Transaction{}).Count(&count).Error)
	assert.Zero(t, count)
}
