package dto

// IDTokenLoginRequest represents a Google or Apple ID token login request
type IDTokenLoginRequest struct {
	IDToken string `json:"id_token" binding:"required"`
}

// CallbackRequest represents the authorization code callback.
// A missing state is rejected by the state store, not by binding.
type CallbackRequest struct {
	Code  string `json:"code" form:"code" binding:"required"`
	State string `json:"state" form:"state"`
}

// AdminLoginRequest represents a local staff login request
type AdminLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshTokenRequest carries a refresh token for refresh and logout
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}
