package token

type exchangeInput struct {
	Body ExchangeRequest
}

type ExchangeRequest struct {
	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token"`
}

type exchangeOutput struct {
	Body ExchangeResponse
}

type ExchangeResponse struct {
	Token  string `json:"token,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
