package api

import (
	"net/http"

	"github.com/siteroast/siteroast/internal/roast"
)

// Caller-visible messages for kinds that never pass their own text through.
const (
	msgNotPublic   = "URL is not publicly accessible"
	msgGeneration  = "analysis failed, please try again"
	msgUnexpected  = "an unexpected error occurred"
	msgRateLimited = "easy there - you have roasted enough for now, come back later"
)

type classification struct {
	status int
	msg    string
	// passthrough kinds surface the failure's own message verbatim; it is
	// fixed, backend-agnostic text by construction.
	passthrough bool
}

// classifyTable is the single mapping from failure kind to caller-visible
// response. Anything absent collapses to a generic 500.
var classifyTable = map[roast.Kind]classification{
	roast.KindInputValidation:     {status: http.StatusBadRequest, passthrough: true},
	roast.KindPrivacyViolation:    {status: http.StatusBadRequest, msg: msgNotPublic},
	roast.KindCaptureUnresolvable: {status: http.StatusBadRequest, passthrough: true},
	roast.KindCaptureTimeout:      {status: http.StatusBadRequest, passthrough: true},
	roast.KindCaptureBlocked:      {status: http.StatusBadRequest, passthrough: true},
	roast.KindGeneration:          {status: http.StatusInternalServerError, msg: msgGeneration},
	roast.KindStorage:             {status: http.StatusInternalServerError, msg: msgUnexpected},
	roast.KindPersistence:         {status: http.StatusInternalServerError, msg: msgUnexpected},
	roast.KindRateLimited:         {status: http.StatusTooManyRequests, msg: msgRateLimited},
}

// classify maps any pipeline error to an HTTP status and a safe message.
// The full cause is for the log only.
func classify(err error) (int, string) {
	c, ok := classifyTable[roast.KindOf(err)]
	if !ok {
		return http.StatusInternalServerError, msgUnexpected
	}
	if c.passthrough {
		if msg := roast.FailureMessage(err); msg != "" {
			return c.status, msg
		}
	}
	if c.msg == "" {
		return http.StatusInternalServerError, msgUnexpected
	}
	return c.status, c.msg
}
