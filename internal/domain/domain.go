// Package domain holds the portal records the course player works with. The portal REST API
// owns all of them; values here are local, per-session views.
package domain

// DeliveryType selects how progress is derived and how completion is gated.
type DeliveryType string

const (
	DeliveryDocument    DeliveryType = "document"
	DeliveryVideo       DeliveryType = "video"
	DeliveryLiveSession DeliveryType = "live_session"
)

func (d DeliveryType) Valid() bool {
	switch d {
	case DeliveryDocument, DeliveryVideo, DeliveryLiveSession:
		return true
	default:
		return false
	}
}
