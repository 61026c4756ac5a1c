package handler

import (
	"errors"
	"net/http"
	"time"

	"family-service/internal/apperror"
	"family-service/internal/middleware"
	"family-service/internal/model"
	"family-service/internal/notify"
	"family-service/internal/permission"
	"family-service/pkg/config"
	"family-service/pkg/logger"
	"family-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FinancialHandler serves the family fund's transaction ledger.
type FinancialHandler struct {
	db       *gorm.DB
	notifier *notify.Notifier
	cfg      *config.Config
}

// NewFinancialHandler creates a FinancialHandler.
func NewFinancialHandler(db *gorm.DB, notifier *notify.Notifier, cfg *config.Config) *FinancialHandler {
	return &FinancialHandler{db: db, notifier: notifier, cfg: cfg}
}

// TransactionRequest is the create/update payload.
type TransactionRequest struct {
	Name        string     `json:"name" form:"name"`
	Amount      *float64   `json:"amount" form:"amount"`
	Type        string     `json:"type" form:"type"`
	Category    string     `json:"category" form:"category"`
	Date        *time.Time `json:"date" form:"date"`
	Description string     `json:"description" form:"description"`
	Image       string     `json:"image" form:"image"`
}

// Create records a transaction.
func (h *FinancialHandler) Create(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("financial", "create")

	callerID, ok := middleware.CallerID(c)
	if !ok {
		return apperror.Unauthorized("unauthorized")
	}

	var req TransactionRequest
	if err := c.Bind(&req); err != nil {
		return apperror.BadRequest("invalid request data")
	}
	if req.Name == "" || req.Category == "" {
		return apperror.BadRequest("name and category are required")
	}
	if req.Amount == nil || *req.Amount <= 0 {
		return apperror.BadRequest("amount must be a positive number")
	}
	if !model.ValidTransactionType(req.Type) {
		return apperror.Newf(400, "transaction type %q is not supported", req.Type)
	}

	uploaded, err := saveUpload(c, h.cfg.Upload.Dir)
	if err != nil {
		log.Error("Failed to store uploaded image", zap.Error(err))
		return err
	}

	date := time.Now()
	if req.Date != nil {
		date = *req.Date
	}

	txn := model.Transaction{
		Name:        req.Name,
		Amount:      *req.Amount,
		Type:        req.Type,
		Category:    req.Category,
		Date:        date,
		Description: req.Description,
		Image:       imageOrDefault(uploaded, req.Image, ""),
		CreatedBy:   callerID,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := h.db.Create(&txn).Error; err != nil {
		log.Error("Failed to create transaction", zap.Error(err))
		return err
	}

	h.notifier.FanOutAsync(notify.Event{
		SenderID: callerID,
		Action:   model.NotificationActionCreate,
		Entity:   permission.EntityFinancial,
		EntityID: &txn.ID,
		Message:  "a new financial transaction was recorded: " + txn.Name,
	})

	log.Info("Transaction created",
		zap.Uint("id", txn.ID),
		zap.String("type", txn.Type),
		zap.Float64("amount", txn.Amount))
	return respond(c, http.StatusCreated, txn, "transaction created successfully")
}

// List returns transactions filtered by optional type and category, newest
// first, paginated, together with running income/expense totals over the
// whole filtered set.
func (h *FinancialHandler) List(c echo.Context) error {
	page, limit, offset := pageParams(c)

	query := h.db.Model(&model.Transaction{})
	if t := c.QueryParam("type"); t != "" {
		if !model.ValidTransactionType(t) {
			return apperror.Newf(400, "transaction type %q is not supported", t)
		}
		query = query.Where("type = ?", t)
	}
	if cat := c.QueryParam("category"); cat != "" {
		query = query.Where("category = ?", cat)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var txns []model.Transaction
	if err := query.Order("date DESC").Limit(limit).Offset(offset).Find(&txns).Error; err != nil {
		return err
	}

	return respondPage(c, http.StatusOK, txns,
		newPagination(total, page, limit, len(txns)),
		"transactions retrieved successfully")
}

// Summary returns income, expense and balance totals for the whole ledger.
func (h *FinancialHandler) Summary(c echo.Context) error {
	type bucket struct {
		Type  string
		Total float64
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var buckets []bucket
	if err := h.db.Model(&model.Transaction{}).
		Select("type, COALESCE(SUM(amount), 0) AS total").
		Group("type").Scan(&buckets).Error; err != nil {
		return err
	}

	var income, expense float64
	for _, b := range buckets {
		switch b.Type {
		case model.TransactionIncome:
			income = b.Total
		case model.TransactionExpense:
			expense = b.Total
		}
	}

	return respond(c, http.StatusOK, echo.Map{
		"income":  income,
		"expense": expense,
		"balance": income - expense,
	}, "financial summary retrieved successfully")
}

// Get returns one transaction.
func (h *FinancialHandler) Get(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return apperror.BadRequest("invalid transaction id")
	}

	var txn model.Transaction
	err := h.db.First(&txn, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound("transaction not found")
	}
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, txn, "transaction retrieved successfully")
}

// Update applies a partial update to a transaction.
func (h *FinancialHandler) Update(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("financial", "update")

	id, ok := pathID(c)
	if !ok {
		return apperror.BadRequest("invalid transaction id")
	}

	var req TransactionRequest
	if err := c.Bind(&req); err != nil {
		return apperror.BadRequest("invalid request data")
	}

	var txn model.Transaction
	err := h.db.First(&txn, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound("transaction not found")
	}
	if err != nil {
		return err
	}

	if req.Name != "" {
		txn.Name = req.Name
	}
	if req.Amount != nil {
		if *req.Amount <= 0 {
			return apperror.BadRequest("amount must be a positive number")
		}
		txn.Amount = *req.Amount
	}
	if req.Type != "" {
		if !model.ValidTransactionType(req.Type) {
			return apperror.Newf(400, "transaction type %q is not supported", req.Type)
		}
		txn.Type = req.Type
	}
	if req.Category != "" {
		txn.Category = req.Category
	}
	if req.Date != nil {
		txn.Date = *req.Date
	}
	if req.Description != "" {
		txn.Description = req.Description
	}

	uploaded, err := saveUpload(c, h.cfg.Upload.Dir)
	if err != nil {
		log.Error("Failed to store uploaded image", zap.Error(err))
		return err
	}
	if uploaded != "" {
		txn.Image = uploaded
	} else if req.Image != "" {
		txn.Image = req.Image
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := h.db.Save(&txn).Error; err != nil {
		log.Error("Failed to update transaction", zap.Uint("id", txn.ID), zap.Error(err))
		return err
	}

	callerID, _ := middleware.CallerID(c)
	h.notifier.FanOutAsync(notify.Event{
		SenderID: callerID,
		Action:   model.NotificationActionUpdate,
		Entity:   permission.EntityFinancial,
		EntityID: &txn.ID,
		Message:  "the transaction " + txn.Name + " was updated",
	})

	return respond(c, http.StatusOK, txn, "transaction updated successfully")
}

// Delete removes one transaction.
func (h *FinancialHandler) Delete(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordEntityOperation("financial", "delete")

	id, ok := pathID(c)
	if !ok {
		return apperror.BadRequest("invalid transaction id")
	}

	var txn model.Transaction
	err := h.db.First(&txn, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound("transaction not found")
	}
	if err != nil {
		return err
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := h.db.Delete(&txn).Error; err != nil {
		log.Error("Failed to delete transaction", zap.Uint("id", id), zap.Error(err))
		return err
	}

	callerID, _ := middleware.CallerID(c)
	h.notifier.FanOutAsync(notify.Event{
		SenderID: callerID,
		Action:   model.NotificationActionDelete,
		Entity:   permission.EntityFinancial,
		Message:  "a financial transaction was removed",
	})

	log.Info("Transaction deleted", zap.Uint("id", id))
	return respond(c, http.StatusOK, nil, "transaction deleted successfully")
}

// DeleteAll clears the whole ledger.
func (h *FinancialHandler) DeleteAll(c echo.Context) error {
	log := logger.FromContext(c)

	defer prometheus.TrackDBOperation("delete")(time.Now())
	res := h.db.Where("1 = 1").Delete(&model.Transaction{})
	if res.Error != nil {
		log.Error("Failed to delete transactions", zap.Error(res.Error))
		return res.Error
	}

	log.Info("All transactions deleted", zap.Int64("count", res.RowsAffected))
	return respond(c, http.StatusOK, echo.Map{"deletedCount": res.RowsAffected},
		"all transactions deleted successfully")
}
