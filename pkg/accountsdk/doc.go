/*
Package accountsdk is the Go client for the Wellmeet accounts service.

# Client vs Session

The package is organized around two types:

  - Client: unauthenticated operations (register, login, health probes)
  - Session: operations that carry a bearer token

Create a Client for public endpoints and log in to obtain a Session:

	client := accountsdk.NewClient("https://accounts.example.com")

	user, err := client.Register(ctx, accountsdk.RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "P@ss1",
	})

	session, err := client.Authenticate(ctx, "alice", "P@ss1")
	me, err := session.Me(ctx)

Tokens are valid for four hours and are not refreshed. Once a Session reports
Expired, log in again.

# Errors

Every non-2xx response is returned as *APIError carrying the HTTP status and
the error code from the response body:

	_, err := session.GetUser(ctx, 42)
	var apiErr *accountsdk.APIError
	if errors.As(err, &apiErr) && apiErr.Code == accountsdk.ErrorCodeNotFound {
		// ...
	}
*/
package accountsdk
