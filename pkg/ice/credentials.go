package ice

import "github.com/webrtcstack/core/internal/randgen"

// Defaults from spec.md §4.2.
const (
	DefaultUfragLength    = 8
	DefaultPasswordLength = 24

	minUfragLength    = 4
	minPasswordLength = 22
)

// Credentials holds the local/remote ICE short-term credential pair
// (spec.md §3 "ICECredentials").
type Credentials struct {
	LocalUfrag     string
	LocalPassword  string
	RemoteUfrag    string
	RemotePassword string
}

// generateCredentials draws fresh local credentials from the CSPRNG using
// rejection sampling (spec.md §4.2), never falling below the RFC 8445
// minimum lengths even if the caller requests shorter ones.
func generateCredentials(ufragLen, passwordLen int) (Credentials, error) {
	if ufragLen < minUfragLength {
		ufragLen = minUfragLength
	}
	if passwordLen < minPasswordLength {
		passwordLen = minPasswordLength
	}
	ufrag, err := randgen.AlphaNumeric(ufragLen)
	if err != nil {
		return Credentials{}, err
	}
	password, err := randgen.AlphaNumeric(passwordLen)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{LocalUfrag: ufrag, LocalPassword: password}, nil
}
