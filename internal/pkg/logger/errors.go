package logger

import (
	"errors"

	"github.com/m-mizutani/goerr/v2"
)

// ErrorDetails merges err and its goerr values into a details map for ILogger.
func ErrorDetails(err error, details map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(details)+2)
	for k, v := range details {
		out[k] = v
	}
	if err == nil {
		return out
	}

	out["error"] = err.Error()
	var ge *goerr.Error
	if errors.As(err, &ge) {
		if values := ge.Values(); len(values) > 0 {
			out["values"] = values
		}
	}
	return out
}
