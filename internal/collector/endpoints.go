package collector

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	"certmap/internal/domain"
	"certmap/internal/logging"
)

// enrollmentPaths are the IIS virtual directories web enrollment and the
// certificate enrollment web services live under.
var enrollmentPaths = []string{"/certsrv/", "/ADPolicyProvider_CEP_Kerberos/service.svc", "/certsrv/mscep/"}

var probeClient = &http.Client{
	Timeout: 5 * time.Second,
	// Probing, not trusting: enrollment hosts frequently serve internal CA
	// certificates the prober has no chain for.
	Transport: &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}},
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

// ProbeEnrollmentEndpoints checks the well-known web enrollment paths on a
// CA host over both schemes. A 401/403 answer counts as an endpoint: the
// service is there and negotiating authentication.
func ProbeEnrollmentEndpoints(ctx context.Context, hostname string) []domain.EnrollmentEndpoint {
	var endpoints []domain.EnrollmentEndpoint
	for _, scheme := range []string{"http", "https"} {
		for _, path := range enrollmentPaths {
			url := fmt.Sprintf("%s://%s%s", scheme, hostname, path)
			auth, ok := probeOne(ctx, url)
			if !ok {
				continue
			}
			endpoints = append(endpoints, domain.EnrollmentEndpoint{URL: url, Auth: auth})
		}
	}
	return endpoints
}

func probeOne(ctx context.Context, url string) (auth string, ok bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false
	}
	resp, err := probeClient.Do(req)
	if err != nil {
		logging.LogDebug("Endpoint probe failed", map[string]interface{}{
			"object": url,
			"error":  err.Error(),
		})
		return "", false
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusUnauthorized, http.StatusForbidden:
	default:
		return "", false
	}

	for _, challenge := range resp.Header.Values("WWW-Authenticate") {
		scheme := strings.Fields(challenge)
		if len(scheme) > 0 {
			auth = scheme[0]
			break
		}
	}
	return auth, true
}
