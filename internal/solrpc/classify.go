// internal/solrpc/classify.go
package solrpc

import "strings"

// Transient upstream error codes: -32005 node unhealthy/behind,
// -32016 temporarily unavailable, -32603 internal error.
var transientCodes = map[int]bool{
	-32005: true,
	-32016: true,
	-32603: true,
}

var simulationOnlyMarkers = []string{
	"transaction simulation failed",
	"blockhashnotfound",
	"blockhash not found",
	"block height exceeded",
	"transaction expired",
}

var alreadyProcessedMarkers = []string{
	"already been processed",
	"alreadyprocessed",
}

var transientMarkers = []string{
	"rate limit",
	"too many requests",
	"temporarily unavailable",
	"timeout",
	"timed out",
	"connection reset",
	"connection refused",
	"no such host",
}

// classify tags an upstream RPC error once, so downstream policy is a switch
// over Class rather than repeated substring matching.
func classify(method string, code int, message string) *Error {
	e := &Error{Method: method, Code: code, Message: message}
	lower := strings.ToLower(message)

	switch {
	case containsAny(lower, alreadyProcessedMarkers):
		e.Class = ClassAmbiguous
	case containsAny(lower, simulationOnlyMarkers):
		e.Class = ClassSimulationOnly
	case transientCodes[code] || containsAny(lower, transientMarkers):
		e.Class = ClassTransient
	default:
		// The chain (or program) rejected the call; another provider would
		// return the same semantic error.
		e.Class = ClassChainRejected
	}
	return e
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
