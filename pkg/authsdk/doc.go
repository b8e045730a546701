/*
Package authsdk is the Go client for the BarTab accounts service and the home
of the JSON request and response types shared with the server.

# Client vs Session

Client covers the unauthenticated endpoints: registration, login, the OTP
flows, email verification and password reset.

	client := authsdk.NewClient("https://accounts.example.com")

	res, err := client.Login(ctx, authsdk.LoginRequest{Email: email, Password: pw, RememberMe: true})
	if err != nil {
		return err
	}
	if res.RequireOTP {
		// An unknown device: the code has been emailed.
		res, err = client.Login(ctx, authsdk.LoginRequest{Email: email, Password: pw, OTP: code, RememberMe: true})
	}

	session := client.NewSession(res.AccessToken, res.RefreshToken, res.ExpiresIn)

A Session carries the bearer token for authenticated calls and renews it
through the refresh endpoint shortly before it expires, when a refresh token
is available.

	me, err := session.Me(ctx)
	roles, err := session.ListRoles(ctx)
	err = session.Logout(ctx)

# Errors

Every non-success response is returned as *APIError:

	var apiErr *authsdk.APIError
	if errors.As(err, &apiErr) && apiErr.Code == authsdk.ErrorCodeRateLimited {
		// back off
	}
*/
package authsdk
