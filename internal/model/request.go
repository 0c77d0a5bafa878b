package model

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type ReorderRequest struct {
	IDs []string `json:"ids"`
}

type ReorderResponse struct {
	IDs []string `json:"ids"`
}

type DeleteCaseResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}
