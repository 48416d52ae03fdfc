// Package validators decodes and checks request input.
package validators

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/validation"
)

// MaxBodyBytes caps request bodies. Product images travel inline as data
// URLs, so the cap sits above the 5MB image limit.
const MaxBodyBytes = 8 << 20

// DecodeJSONBody decodes r into dest, rejecting unknown fields, and runs the
// struct validation tags.
func DecodeJSONBody(r *http.Request, dest any) error {
	if err := DecodeJSONPayload(r, dest); err != nil {
		return err
	}
	return validation.Struct(dest)
}

// DecodeJSONPayload only decodes. Use it when the service validates the
// input itself.
func DecodeJSONPayload(r *http.Request, dest any) error {
	body := http.MaxBytesReader(nil, r.Body, MaxBodyBytes)
	defer func() {
		_, _ = io.Copy(io.Discard, body)
	}()

	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return pkgerrors.New(pkgerrors.CodeValidation, "request body required")
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").
			WithDetails(map[string]string{"body": err.Error()})
	}
	return nil
}
