package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	apperrors "github.com/louisbranch/passwallet/internal/platform/errors"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	_ = encoder.Encode(payload)
}

// writeError renders err with the HTTP status of its code. Errors outside the
// domain taxonomy are logged and reported as internal.
func writeError(w http.ResponseWriter, err error) {
	domainErr, ok := apperrors.As(err)
	if !ok {
		log.Printf("internal error: %v", err)
		domainErr = apperrors.Wrap(apperrors.CodeInternal, "internal error", err)
	} else if domainErr.Code.Kind() == apperrors.KindInternal {
		log.Printf("internal error: %v", err)
	}
	writeJSON(w, domainErr.Code.HTTPStatus(), errorResponse{
		Error:   string(domainErr.Code),
		Message: domainErr.PublicMessage(),
	})
}

// decodeJSON reads a bounded JSON body into dest. An empty body leaves dest
// untouched.
func decodeJSON(r *http.Request, dest any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidArgument, "read request body", err)
	}
	if len(body) > maxBodyBytes {
		return apperrors.New(apperrors.CodeInvalidArgument, "request body too large")
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dest); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return apperrors.Wrap(apperrors.CodeInvalidArgument, "request body is not valid json", err)
		}
		return apperrors.Wrap(apperrors.CodeInvalidArgument, "request body has invalid fields", err)
	}
	return nil
}
