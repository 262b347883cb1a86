package domain

// Position is the raw playback position reported by the player: page index and page count
// for documents, elapsed and total seconds for videos. Total is 0 while unknown.
type Position struct {
	Current float64 `json:"current"`
	Total   float64 `json:"total"`
}
