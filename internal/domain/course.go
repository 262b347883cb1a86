package domain

import (
	"regexp"
	"strconv"
	"strings"
)

type Course struct {
	ID              int64        `json:"id"`
	Title           string       `json:"title"`
	Description     string       `json:"description"`
	Category        string       `json:"category,omitempty"`
	Delivery        DeliveryType `json:"delivery_type"`
	MediaURL        string       `json:"media_url,omitempty"`
	MeetingURL      string       `json:"meeting_url,omitempty"`
	MeetingPlatform string       `json:"meeting_platform,omitempty"`
	// TotalUnits is the page count for documents and the duration in seconds for videos.
	// Zero means the player has to report it.
	TotalUnits    float64 `json:"total_units"`
	DurationLabel string  `json:"duration,omitempty"`
	ExpiryDays    int     `json:"expiry_days,omitempty"`
}

// ResolveDelivery maps the portal's delivery_type/video_url pair onto a DeliveryType.
// Courses without a playable video fall back to the document reader.
func ResolveDelivery(raw, videoURL string) DeliveryType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "live_session", "live-session", "live":
		return DeliveryLiveSession
	case "video":
		if strings.TrimSpace(videoURL) != "" {
			return DeliveryVideo
		}
		return DeliveryDocument
	default:
		return DeliveryDocument
	}
}

var durationLabelRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(h|hr|hrs|hour|hours|m|min|mins|minute|minutes|s|sec|secs|seconds)\b`)

// ParseDurationLabel turns labels such as "45 mins" or "1 hour 30 mins" into seconds.
// Unparseable labels yield 0.
func ParseDurationLabel(label string) float64 {
	total := 0.0
	for _, m := range durationLabelRe.FindAllStringSubmatch(label, -1) {
		n, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		switch unit := strings.ToLower(m[2]); {
		case strings.HasPrefix(unit, "h"):
			total += n * 3600
		case strings.HasPrefix(unit, "m"):
			total += n * 60
		default:
			total += n
		}
	}
	return total
}
