package client

import (
	"context"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/fieldsync/internal/common"
)

// IsTransient reports whether err is worth retrying later: transport
// failures, timeouts, throttling and server-side errors.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, common.ErrNetwork) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var rej *common.RemoteRejection
	if errors.As(err, &rej) {
		switch {
		case rej.Status >= http.StatusInternalServerError:
			return true
		case rej.Status == http.StatusRequestTimeout, rej.Status == http.StatusTooManyRequests:
			return true
		}
	}
	return false
}
