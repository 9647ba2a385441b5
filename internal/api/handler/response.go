package handler

// MessageResponse is the envelope for acknowledgements and errors.
type MessageResponse struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}
