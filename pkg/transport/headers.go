package transport

import (
	"fmt"
	"math/rand"
	"net/http"

	"igclient/pkg/device"
)

// applyDefaultHeaders sets the headers the vendor expects on every app call
func (c *Client) applyDefaultHeaders(req *http.Request, isPost bool) {
	req.Header.Set("User-Agent", c.sess.UserAgent())
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US")
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	req.Header.Set("Connection", "close")
	req.Header.Set("X-IG-Capabilities", c.sess.Capabilities)
	req.Header.Set("X-IG-Connection-Type", "WIFI")
	req.Header.Set("X-IG-Connection-Speed", fmt.Sprintf("%dkbps", 1000+rand.Intn(4001)))
	req.Header.Set("X-IG-App-ID", device.AppID)
	req.Header.Set("X-IG-Bandwidth-Speed-KBPS", "-1.000")
	req.Header.Set("X-IG-Bandwidth-TotalBytes-B", "0")
	req.Header.Set("X-IG-Bandwidth-TotalTime-MS", "0")
	req.Header.Set("X-FB-HTTP-Engine", device.FBHTTPEngine)
	if isPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	}
}
