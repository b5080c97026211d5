package httphandler

import (
	"errors"
	"net/http"
	"time"

	// Packages
	aitemplate "github.com/mutablelogic/go-aitemplate"
	schema "github.com/mutablelogic/go-aitemplate/pkg/schema"
	httprequest "github.com/mutablelogic/go-server/pkg/httprequest"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	openapi "github.com/mutablelogic/go-server/pkg/openapi/schema"
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// RegisterHandlers adds the backend routes to the mux under the prefix, and
// returns the path items keyed by the full path
func RegisterHandlers(mux *http.ServeMux, prefix string, b *Backend) map[string]*openapi.PathItem {
	prefix = types.NormalisePath(prefix)
	if prefix == "/" {
		prefix = ""
	}
	result := make(map[string]*openapi.PathItem)

	// Convenience function to register a handler at an access level
	register := func(level access) func(string, http.HandlerFunc, *openapi.PathItem) {
		return func(path string, handler http.HandlerFunc, spec *openapi.PathItem) {
			mux.HandleFunc(prefix+path, b.guard(level, handler))
			result[prefix+path] = spec
		}
	}

	// Public
	register(accessPublic)(ConfigHandler(b))
	register(accessPublic)(LoginHandler(b))
	register(accessPublic)(RefreshHandler(b))
	register(accessPublic)(LogoutHandler(b))

	// Users
	register(accessUser)(MeHandler(b))
	register(accessUser)(PasswordHandler(b))
	register(accessUser)(ModelListHandler(b))
	register(accessUser)(ToolListHandler(b))
	register(accessUser)(SkillListHandler(b))
	register(accessUser)(ChatHandler(b))
	register(accessUser)(StreamHandler(b))
	register(accessUser)(ConversationListHandler(b))
	register(accessUser)(ConversationHandler(b))
	register(accessUser)(MessageListHandler(b))

	// Administrators
	register(accessAdmin)(AdminModelHandler(b))
	register(accessAdmin)(AdminModelToggleHandler(b))
	register(accessAdmin)(AdminSkillHandler(b))
	register(accessAdmin)(AdminSkillScriptHandler(b))
	register(accessAdmin)(AdminSkillSourceHandler(b))

	return result
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// httpErr converts an aitemplate.Err to an httpresponse.Err, preserving the
// original error message. Unknown error codes map to 500.
func httpErr(err error) error {
	var code aitemplate.Err
	if !errors.As(err, &code) {
		return err
	}
	switch code {
	case aitemplate.ErrNotFound:
		return httpresponse.ErrNotFound.With(err)
	case aitemplate.ErrBadParameter:
		return httpresponse.ErrBadRequest.With(err)
	case aitemplate.ErrConflict:
		return httpresponse.ErrConflict.With(err)
	case aitemplate.ErrNotImplemented:
		return httpresponse.ErrNotImplemented.With(err)
	case aitemplate.ErrUnauthorized:
		return httpresponse.Err(http.StatusUnauthorized).With(err)
	default:
		return httpresponse.ErrInternalError.With(err)
	}
}

// apiError writes a rejected request as a 400 with an error code body
func apiError(w http.ResponseWriter, r *http.Request, code, message string, retryable bool) {
	_ = httpresponse.JSON(w, http.StatusBadRequest, httprequest.Indent(r), schema.ApiError{
		ErrorCode: code,
		Message:   message,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	})
}
