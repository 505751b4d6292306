package stun

import "github.com/webrtcstack/core/internal/randgen"

// transactionIDSource is a var (not a direct call) so tests can substitute
// a deterministic generator without a build tag.
var transactionIDSource = randgen.TransactionID
