// Package upload implements the vendor's two media upload flows: multipart
// photo posts and range-chunked video streaming, both finalized by a
// configure call.
package upload

import (
	"fmt"
	"time"

	"igclient/pkg/logger"
	"igclient/pkg/signature"
	"igclient/pkg/transport"
)

// imageCompression is the fixed compression descriptor the app reports
const imageCompression = `{"lib_name":"jt","lib_version":"1.3.0","quality":"87"}`

// Uploader drives media uploads over a transport client
type Uploader struct {
	client *transport.Client
	logger logger.Logger

	// sleep is swappable in tests; it honors configure_delay_ms
	sleep func(time.Duration)

	// Progress, when set, receives cumulative uploaded bytes and the total
	// during chunked uploads.
	Progress func(sent, total int64)
}

// New creates an uploader over a transport client
func New(client *transport.Client, log logger.Logger) *Uploader {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Uploader{
		client: client,
		logger: log,
		sleep:  time.Sleep,
	}
}

// newUploadID derives an upload id from the current time in milliseconds
func newUploadID() string {
	return fmt.Sprintf("%d", time.Now().UnixMilli())
}

// deviceParams is the device block configure payloads carry
func (u *Uploader) deviceParams() map[string]interface{} {
	profile := u.client.Session().Profile
	return map[string]interface{}{
		"manufacturer":    profile.Manufacturer,
		"model":           profile.Model,
		"android_version": profile.AndroidVersion,
		"android_release": profile.AndroidRelease,
	}
}

// authParams starts a parameter set with the session's authentication
// fields, in the order configure endpoints expect.
func (u *Uploader) authParams() *signature.Params {
	return signature.NewParams().
		Set("_csrftoken", u.client.CSRFToken()).
		Set("_uuid", u.client.Session().Identity.UUID).
		Set("_uid", u.client.AuthenticatedUserID())
}
