package authsdk

import "time"

// User is the public view of an account. It never carries the password hash
// or device list.
type User struct {
	ID            string     `json:"id"`
	FirstName     string     `json:"firstName"`
	LastName      string     `json:"lastName"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone"`
	Address       string     `json:"address"`
	EmailVerified bool       `json:"emailVerified"`
	Roles         []string   `json:"roles"`
	LastLogin     *time.Time `json:"lastLogin,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// RegisterRequest is the body of POST /v1/auth/register.
type RegisterRequest struct {
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Email     string   `json:"email"`
	Password  string   `json:"password"`
	Phone     string   `json:"phone"`
	Address   string   `json:"address"`
	Roles     []string `json:"roles,omitempty"`
}

// RegisterResponse is returned with 201 Created.
type RegisterResponse struct {
	Message string `json:"message"`
	User    User   `json:"user"`
}

// LoginRequest is the body of POST /v1/auth/login. OTP is only sent when
// answering a challenge.
type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	OTP        string `json:"otp,omitempty"`
	RememberMe bool   `json:"rememberMe,omitempty"`
}

// LoginResponse is either a token grant or, when RequireOTP is set, a
// challenge with no tokens.
type LoginResponse struct {
	RequireOTP   bool   `json:"requireOtp,omitempty"`
	Message      string `json:"message,omitempty"`
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int    `json:"expiresIn,omitempty"`
	User         *User  `json:"user,omitempty"`
}

// OTP actions accepted by POST /v1/auth/verify-otp.
const (
	OTPActionLogin         = "login"
	OTPActionResetPassword = "resetPassword"
	OTPActionChangeDevice  = "changeDevice"
)

// VerifyOTPRequest is the body of POST /v1/auth/verify-otp. The fields used
// depend on Action.
type VerifyOTPRequest struct {
	Action      string `json:"action"`
	OTP         string `json:"otp"`
	Email       string `json:"email,omitempty"`
	NewPassword string `json:"newPassword,omitempty"`
	RememberMe  bool   `json:"rememberMe,omitempty"`
}

// ForgotPasswordRequest is the body of POST /v1/auth/forget-password.
// Method is "link" (default) or "otp".
type ForgotPasswordRequest struct {
	Email  string `json:"email"`
	Method string `json:"method,omitempty"`
}

// ResetPasswordRequest is the body of POST /v1/auth/reset-password.
type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// RefreshRequest is the body of POST /v1/auth/refresh-token. The token may
// instead travel in the refreshToken cookie.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken,omitempty"`
}

// TokenResponse is returned by the refresh endpoint.
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"`
}

// MessageResponse is the body of endpoints that only confirm an action.
type MessageResponse struct {
	Message string `json:"message"`
}

// Role is a named tag attached to users.
type Role struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RoleRequest creates or renames a role.
type RoleRequest struct {
	Name string `json:"name"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string            `json:"status"`
	Uptime  string            `json:"uptime,omitempty"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}
