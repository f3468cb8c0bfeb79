// Package notifications persists notification documents and fans them
// out: a realtime push when the recipient is connected, an email
// fallback for high priority events when they are not.
package notifications

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/Rohith-Das/Med360-sub001/databases"
	"github.com/Rohith-Das/Med360-sub001/models"
	"github.com/Rohith-Das/Med360-sub001/realtime"
)

var (
	ErrNotificationNotFound = errors.New("notifications: notification not found")
	ErrNotOwner             = errors.New("notifications: notification belongs to another user")
)

// DefaultRetention is how long a notification stays queryable before the
// scheduler purges it.
const DefaultRetention = 30 * 24 * time.Hour

// Dispatcher owns the notification store and its delivery paths. Persist
// always succeeds or the dispatch fails; every delivery after that is
// best effort.
type Dispatcher struct {
	Store     databases.NotificationDatabase
	Broadcast realtime.Broadcaster
	Presence  realtime.Presence
	Mailer    Mailer
	Retention time.Duration
}

// Dispatch stores the notification, then pushes new_notification to the
// recipient if connected. An offline recipient with a high priority
// notification gets the email fallback when the dispatch payload carries
// a recipientEmail. Returns whether a live push was delivered.
func (d *Dispatcher) Dispatch(ctx context.Context, n models.Notification) (bool, error) {
	now := time.Now().UTC()
	n.CreatedAt = now
	n.IsRead = false
	if n.Priority == "" {
		n.Priority = models.PriorityMedium
	}
	if n.ExpiresAt.IsZero() {
		retention := d.Retention
		if retention <= 0 {
			retention = DefaultRetention
		}
		n.ExpiresAt = now.Add(retention)
	}
	res, err := d.Store.InsertOne(ctx, n)
	if err != nil {
		return false, err
	}
	if id, ok := res.Decode().(primitive.ObjectID); ok {
		n.ID = id
	}

	if d.Broadcast.SendToUser(n.RecipientID, realtime.EventNewNotification, n) {
		return true, nil
	}
	if n.Priority == models.PriorityHigh && d.Mailer != nil {
		if email, ok := n.Data["recipientEmail"].(string); ok && email != "" {
			name, _ := n.Data["recipientName"].(string)
			if err := d.Mailer.Send(email, name, n.Title, n.Message, "<p>"+n.Message+"</p>"); err != nil {
				zap.S().Warnw("email fallback failed", "notificationId", n.ID.Hex(), "error", err)
			}
		}
	}
	return false, nil
}

// MarkRead flips a single notification to read. Only the recipient may
// do so. When the recipient is connected they get a
// notification_read_update carrying the fresh unread count.
func (d *Dispatcher) MarkRead(ctx context.Context, notificationID, userID string) error {
	id, err := primitive.ObjectIDFromHex(notificationID)
	if err != nil {
		return ErrNotificationNotFound
	}
	n, err := d.Store.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotificationNotFound
		}
		return err
	}
	if n.RecipientID != userID {
		return ErrNotOwner
	}
	if !n.IsRead {
		if _, err := d.Store.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"isRead": true}}); err != nil {
			return err
		}
	}
	d.pushCount(ctx, userID, realtime.EventNotificationRead, map[string]interface{}{"notificationId": notificationID})
	return nil
}

// MarkAllRead flips every unread notification for the user. Idempotent.
func (d *Dispatcher) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	modified, err := d.Store.UpdateMany(ctx,
		bson.M{"recipientId": userID, "isRead": false},
		bson.M{"$set": bson.M{"isRead": true}},
	)
	if err != nil {
		return 0, err
	}
	if d.Presence.IsOnline(userID) {
		d.Broadcast.SendToUser(userID, realtime.EventAllNotificationsRead, map[string]interface{}{"unreadCount": 0})
	}
	return modified, nil
}

// List returns the user's notifications newest first, optionally only
// unread ones.
func (d *Dispatcher) List(ctx context.Context, userID string, unreadOnly bool, limit, page int64) ([]models.Notification, error) {
	filter := bson.M{"recipientId": userID}
	if unreadOnly {
		filter["isRead"] = false
	}
	opts := options.Find().
		SetSort(bson.M{"createdAt": -1}).
		SetLimit(limit).
		SetSkip(limit * page)
	return d.Store.Find(ctx, filter, opts)
}

// UnreadCount returns the user's current unread total.
func (d *Dispatcher) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return d.Store.CountDocuments(ctx, bson.M{"recipientId": userID, "isRead": false})
}

// PurgeExpired deletes notifications past their expiry. Called by the
// scheduler.
func (d *Dispatcher) PurgeExpired(ctx context.Context) (int64, error) {
	return d.Store.DeleteMany(ctx, bson.M{"expiresAt": bson.M{"$lt": time.Now().UTC()}})
}

func (d *Dispatcher) pushCount(ctx context.Context, userID, event string, payload map[string]interface{}) {
	if !d.Presence.IsOnline(userID) {
		return
	}
	count, err := d.UnreadCount(ctx, userID)
	if err != nil {
		zap.S().Warnw("failed to compute unread count", "userId", userID, "error", err)
		return
	}
	payload["unreadCount"] = count
	d.Broadcast.SendToUser(userID, event, payload)
}
