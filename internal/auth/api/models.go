package authapi

type registrationRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message     string `json:"message"`
	AccessToken string `json:"accessToken"`
	IsAdmin     bool   `json:"isAdmin"`
	UserID      string `json:"userId"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

type updatePasswordRequest struct {
	Password    string `json:"password"`
	NewPassword string `json:"newPassword"`
}

type updateUsernameRequest struct {
	Username string `json:"username"`
}

type selfResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
}
