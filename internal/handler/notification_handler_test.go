package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"family-service/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedNotifications(t *testing.T, db *gorm.DB) {
	t.Helper()
	for _, n := range []model.Notification{
		{RecipientID: 1, SenderID: 9, Message: "event added", Action: "create", EntityType: "event"},
		{RecipientID: 1, SenderID: 9, Message: "album added", Action: "create", EntityType: "album"},
		{RecipientID: 2, SenderID: 9, Message: "event added", Action: "create", EntityType: "event"},
	} {
		require.NoError(t, db.Create(&n).Error)
	}
}

func TestNotificationListScopedToCaller(t *testing.T) {
	db := openTestDB(t)
	h := NewNotificationHandler(db)
	seedNotifications(t, db)

	c, rec := jsonContext(t, http.MethodGet, "/notifications", nil, 1)
	require.NoError(t, h.List(c))
	requireStatus(t, rec, http.StatusOK)

	var resp struct {
		Data []model.Notification `json:"data"`
	}
	require.NoError(t, decodeInto(rec, &resp))
	require.Len(t, resp.Data, 2)
	for _, n := range resp.Data {
		assert.Equal(t, uint(1), n.RecipientID)
	}
}

func TestNotificationMarkReadAndUnreadCount(t *testing.T) {
	db := openTestDB(t)
	h := NewNotificationHandler(db)
	seedNotifications(t, db)

	var first model.Notification
	require.NoError(t, db.Where("recipient_id = ?", 1).First(&first).Error)

	c, _ := jsonContext(t, http.MethodPatch, "/notifications", nil, 1)
	setPathID(c, itoa(first.ID))
	require.NoError(t, h.MarkRead(c))

	var stored model.Notification
	require.NoError(t, db.First(&stored, first.ID).Error)
	assert.True(t, stored.Read)
	assert.NotNil(t, stored.ReadAt)

	c, rec := jsonContext(t, http.MethodGet, "/notifications/unread-count", nil, 1)
	require.NoError(t, h.UnreadCount(c))
	env := decodeEnvelope(t, rec)
	var payload struct {
		UnreadCount int64 `json:"unreadCount"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, int64(1), payload.UnreadCount)
}

func TestNotificationMarkAllRead(t *testing.T) {
	db := openTestDB(t)
	h := NewNotificationHandler(db)
	seedNotifications(t, db)

	c, _ := jsonContext(t, http.MethodPatch, "/notifications/read-all", nil, 1)
	require.NoError(t, h.MarkAllRead(c))

	var unread int64
	require.NoError(t, db.Model(&model.Notification{}).
		Where("recipient_id = ? AND read = ?", 1, false).Count(&unread).Error)
	assert.Zero(t, unread)

	// Other recipients are untouched.
	require.NoError(t, db.Model(&model.Notification{}).
		Where("recipient_id = ? AND read = ?", 2, false).Count(&unread).Error)
	assert.Equal(t, int64(1), unread)
}

func TestNotificationDeleteOnlyOwn(t *testing.T) {
	db := openTestDB(t)
	h := NewNotificationHandler(db)
	seedNotifications(t, db)

	var other model.Notification
	require.NoError(t, db.Where("recipient_id = ?", 2).First(&other).Error)

	// Caller 1 cannot delete caller 2's notification.
	c, _ := jsonContext(t, http.MethodDelete, "/notifications", nil, 1)
	setPathID(c, itoa(other.ID))
	assert.Equal(t, 404, appErrCode(t, h.Delete(c)))

	c, _ = jsonContext(t, http.MethodDelete, "/notifications", nil, 2)
	setPathID(c, itoa(other.ID))
	require.NoError(t, h.Delete(c))
}
