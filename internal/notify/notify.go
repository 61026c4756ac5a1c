// Package notify fans notifications out to every user whose permission
// snapshot grants "view" on the affected entity. Fan-out is best-effort: it
// runs after the primary write has committed and its failures are logged,
// never surfaced to the caller.
package notify

import (
	"family-service/internal/model"
	"family-service/internal/permission"
	"family-service/prometheus"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Event describes one mutation worth announcing.
type Event struct {
	SenderID uint
	Action   string
	Entity   permission.Entity
	EntityID *uint
	Message  string
	Priority string
}

// Notifier creates notifications for mutating actions.
type Notifier struct {
	db  *gorm.DB
	log *zap.Logger
}

// New creates a Notifier.
func New(db *gorm.DB, log *zap.Logger) *Notifier {
	return &Notifier{db: db, log: log}
}

// FanOutAsync runs FanOut on its own goroutine so the caller's response is
// never blocked on notification writes.
func (n *Notifier) FanOutAsync(ev Event) {
	go n.FanOut(ev)
}

// FanOut creates one Notification per recipient. Recipients are the users
// whose snapshot grants view on the event's entity, excluding the sender.
func (n *Notifier) FanOut(ev Event) {
	if ev.Priority == "" {
		ev.Priority = model.PriorityMedium
	}

	var users []model.User
	if err := n.db.Find(&users).Error; err != nil {
		n.log.Error("Notification fan-out: failed to list users", zap.Error(err))
		return
	}

	var notifications []model.Notification
	for _, u := range users {
		if u.ID == ev.SenderID {
			continue
		}
		if !u.Permissions.Allows(ev.Entity, permission.ActionView) {
			continue
		}
		notifications = append(notifications, model.Notification{
			RecipientID: u.ID,
			SenderID:    ev.SenderID,
			Message:     ev.Message,
			Action:      ev.Action,
			EntityType:  string(ev.Entity),
			EntityID:    ev.EntityID,
			Priority:    ev.Priority,
			Status:      model.NotificationSent,
		})
	}

	if len(notifications) == 0 {
		return
	}

	if err := n.db.Create(&notifications).Error; err != nil {
		n.log.Error("Notification fan-out: failed to create notifications",
			zap.String("entity", string(ev.Entity)),
			zap.String("action", ev.Action),
			zap.Error(err))
		return
	}

	prometheus.NotificationCounter.WithLabelValues(string(ev.Entity)).Add(float64(len(notifications)))
	n.log.Info("Notifications created",
		zap.String("entity", string(ev.Entity)),
		zap.String("action", ev.Action),
		zap.Int("recipients", len(notifications)))
}
