package wire

import (
	"encoding/json"
	"fmt"

	"github.com/woopsa-protocol/woopsa-go/pkg/value"
)

// Notification ID bounds.
const (
	// NoNotification is the reserved id meaning "acknowledge nothing".
	NoNotification = 0

	// MaxNotificationID is the largest id a channel hands out.
	MaxNotificationID = 1_000_000_000
)

// Notification is a single observed change.
//
// JSON encoding:
//
//	{"Value": {...}, "SubscriptionId": 7, "Id": 41}
type Notification struct {
	Value          value.Value `json:"Value"`
	SubscriptionID int         `json:"SubscriptionId"`
	ID             int         `json:"Id"`
}

// EncodeNotifications encodes a batch as a JSON array. A nil batch encodes
// as an empty array.
func EncodeNotifications(batch []Notification) ([]byte, error) {
	if batch == nil {
		batch = []Notification{}
	}
	return json.Marshal(batch)
}

// DecodeNotifications decodes a JSON array of notifications.
func DecodeNotifications(data []byte) ([]Notification, error) {
	var batch []Notification
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("failed to decode notifications: %w", err)
	}
	for _, n := range batch {
		if n.ID <= NoNotification {
			return nil, fmt.Errorf("failed to decode notifications: invalid id %d", n.ID)
		}
	}
	return batch, nil
}

// NotificationsValue wraps a batch in a JsonData value, the return type of
// WaitNotification.
func NotificationsValue(batch []Notification) (value.Value, error) {
	data, err := EncodeNotifications(batch)
	if err != nil {
		return value.Value{}, err
	}
	return value.JSON(data)
}

// NotificationsFromValue extracts a batch from a WaitNotification result.
func NotificationsFromValue(v value.Value) ([]Notification, error) {
	if v.Type() != value.TypeJSONData {
		return nil, fmt.Errorf("failed to decode notifications: unexpected %s result", v.Type())
	}
	return DecodeNotifications([]byte(v.Text()))
}

// LastID returns the largest id in batch, or NoNotification if it is empty.
func LastID(batch []Notification) int {
	last := NoNotification
	for _, n := range batch {
		if n.ID > last {
			last = n.ID
		}
	}
	return last
}
