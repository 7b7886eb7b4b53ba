package handlers

// ErrorResponse is the body echo writes for an *echo.HTTPError.
type ErrorResponse struct {
	Message string `json:"message"`
}
