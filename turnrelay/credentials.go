// Package turnrelay hands out TURN relay credentials for
// CREATE_WEBRTC_TRANSPORT responses.
// reson8 does not run its own TURN server — it is self-hosted and expects
// operators to point it at an existing one — but when that TURN server is
// configured with a shared secret (the coturn REST-API convention) rather
// than a single static username/password, this package mints short-lived
// per-request credentials the way pion/turn's own server implementation
// validates them, instead of handing every client the same long-lived pair.
package turnrelay

import (
	"time"

	"github.com/pion/turn/v4"
)

// Credentials is the TURN relay info attached to a CREATE_WEBRTC_TRANSPORT
// response.
type Credentials struct {
	URL        string `json:"url"`
	Username   string `json:"username"`
	Credential string `json:"credential"`
}

// Static wraps a fixed username/credential pair as-is — used when the
// operator configured TURN_USERNAME/TURN_CREDENTIAL directly rather than a
// shared secret.
func Static(url, username, credential string) Credentials {
	return Credentials{URL: url, Username: username, Credential: credential}
}

// Ephemeral mints a time-boxed username/credential pair from a shared
// secret using pion/turn's long-term credential mechanism, valid for ttl.
func Ephemeral(url, sharedSecret string, ttl time.Duration) (Credentials, error) {
	username, password, err := turn.GenerateLongTermCredentials(sharedSecret, ttl)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{URL: url, Username: username, Credential: password}, nil
}
