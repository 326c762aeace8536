package auth

import "time"

type adminView struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type adminEnvelope struct {
	Success bool      `json:"success,omitempty"`
	Admin   adminView `json:"admin"`
}

type credentialView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type adminLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createCredentialRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type okResponse struct {
	Status  string `json:"status"`
	AppName string `json:"appName"`
	Version string `json:"version"`
}
