package middleware

import (
	"net/http"

	"github.com/MrEthical07/authsession"
)

// RequireSession admits signed-in visitors and sends everyone else to the
// login path.
func RequireSession(client *authsession.Client) func(http.Handler) http.Handler {
	return Guard(client.Session(), ModePrivate, client.Config().Paths.Login)
}
