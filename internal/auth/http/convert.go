package http

import (
	"time"

	"github.com/aussiebroadwan/bartab-accounts/internal/auth/domain"
	"github.com/aussiebroadwan/bartab-accounts/internal/auth/service"
	"github.com/aussiebroadwan/bartab-accounts/pkg/authsdk"
)

func toSDKUser(u domain.PublicUser) authsdk.User {
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	return authsdk.User{
		ID:            u.ID,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Email:         u.Email,
		Phone:         u.Phone,
		Address:       u.Address,
		EmailVerified: u.EmailVerified,
		Roles:         roles,
		LastLogin:     u.LastLogin,
		CreatedAt:     u.CreatedAt,
	}
}

func toSDKRole(r domain.Role) authsdk.Role {
	return authsdk.Role{ID: r.ID, Name: r.Name, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
}

func expiresIn(t domain.IssuedToken) int {
	return int(t.TTL(time.Now()).Seconds())
}

func loginResponse(msg string, sess service.Session) authsdk.LoginResponse {
	user := toSDKUser(sess.User)
	res := authsdk.LoginResponse{
		Message:     msg,
		AccessToken: sess.Access.Value,
		ExpiresIn:   expiresIn(sess.Access),
		User:        &user,
	}
	if sess.Refresh != nil {
		res.RefreshToken = sess.Refresh.Value
	}
	return res
}
