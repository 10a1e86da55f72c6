package models

// ChatRoom is the wire snapshot of one per-video chat room: the request
// currently being answered and the partial response streamed so far.
// Sent as the payload of chat stream init and update events.
type ChatRoom struct {
	VideoID  string `json:"video_id"`
	IsBusy   bool   `json:"is_busy"`
	Request  string `json:"request"`
	Response string `json:"response"`
}
