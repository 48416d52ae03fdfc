package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-backend/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// DeviceIDHeader carries the browser-generated device identifier.
const DeviceIDHeader = "X-Device-Id"

const maxDeviceIDLength = 128

// DeviceID requires the device header on shopper routes and stores it on the
// request context.
func DeviceID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			deviceID := strings.TrimSpace(r.Header.Get(DeviceIDHeader))
			if deviceID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "device id required").
					WithDetails(map[string]string{DeviceIDHeader: "is required"}))
				return
			}
			if len(deviceID) > maxDeviceIDLength || strings.ContainsAny(deviceID, ": \t") {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid device id").
					WithDetails(map[string]string{DeviceIDHeader: "is invalid"}))
				return
			}

			ctx := WithDeviceID(r.Context(), deviceID)
			if logg != nil {
				ctx = logg.WithDeviceID(ctx, deviceID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
