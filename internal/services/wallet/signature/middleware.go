package signature

import (
	"bytes"
	"io"
	"net/http"

	apperrors "github.com/louisbranch/passwallet/internal/platform/errors"
)

// MaxBodyBytes bounds the partner payloads read for verification.
const MaxBodyBytes = 1 << 20

// Middleware verifies the signature over the raw request body before the
// next handler runs. The body is restored for the next handler.
func Middleware(v *Verifier, writeError func(http.ResponseWriter, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
			if err != nil {
				writeError(w, apperrors.Wrap(apperrors.CodeInvalidArgument, "read request body", err))
				return
			}
			if len(body) > MaxBodyBytes {
				writeError(w, apperrors.New(apperrors.CodeInvalidArgument, "request body too large"))
				return
			}
			if err := v.Authorize(body, r.Header.Get(HeaderSignature)); err != nil {
				writeError(w, err)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}
