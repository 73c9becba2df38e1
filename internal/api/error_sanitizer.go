package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/ignite/guest-reconciler/internal/domain"
	"github.com/ignite/guest-reconciler/internal/pkg/httputil"
)

var errRouteNotFound = domain.NotFoundError("", "route not found")

// writeError maps the domain error kinds to HTTP status codes. Client-facing
// kinds carry their message; anything else is logged and answered with a
// generic 500 so driver details never reach the client.
func writeError(w http.ResponseWriter, err error) {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		httputil.BadRequest(w, err.Error())
	case domain.KindNotFound:
		httputil.NotFound(w, err.Error())
	case domain.KindConflict:
		httputil.Conflict(w, err.Error())
	case domain.KindCollaborator:
		log.Printf("[api] collaborator error: %v", err)
		httputil.BadGateway(w, collaboratorMessage(err))
	case domain.KindFatal:
		log.Printf("[api] store unavailable: %v", err)
		httputil.ServiceUnavailable(w, "store unavailable")
	default:
		httputil.InternalError(w, err)
	}
}

// collaboratorMessage keeps the operation name and the collaborator's own
// message, which the reviewer needs to fix credentials or labels.
func collaboratorMessage(err error) string {
	var de *domain.Error
	if errors.As(err, &de) && de.Err != nil {
		if de.Op != "" {
			return de.Op + ": " + de.Err.Error()
		}
		return de.Err.Error()
	}
	return "upstream service failed"
}
