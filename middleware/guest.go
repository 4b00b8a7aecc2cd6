package middleware

import (
	"net/http"

	"github.com/MrEthical07/authsession"
)

// GuestOnly sends signed-in visitors to the dashboard. Login, registration and
// login verification pages sit behind it.
func GuestOnly(client *authsession.Client) func(http.Handler) http.Handler {
	return Guard(client.Session(), ModeGuest, client.Config().Paths.Dashboard)
}
