package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// StatusMessage is the envelope body for accept/ignore style endpoints.
type StatusMessage struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
