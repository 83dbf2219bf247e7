package validation

import (
	"net/url"
	"strings"

	apperrors "github.com/teddyrendahl/psbeam/internal/errors"
)

// EndpointValidator handles endpoint URL validation for rig components
type EndpointValidator struct {
	allowedSchemes []string
	allowedHosts   []string
}

// NewEndpointValidator creates a new endpoint validator with default settings
func NewEndpointValidator() *EndpointValidator {
	return &EndpointValidator{
		allowedSchemes: []string{"http", "https"},
		allowedHosts:   []string{}, // empty means all hosts allowed
	}
}

// NewEndpointValidatorWithOptions creates an endpoint validator with custom options
func NewEndpointValidatorWithOptions(schemes []string, hosts []string) *EndpointValidator {
	return &EndpointValidator{
		allowedSchemes: schemes,
		allowedHosts:   hosts,
	}
}

// ValidateEndpoint validates an endpoint URL using default settings. It is
// the common path for rig specs that name a controller or camera URL.
func ValidateEndpoint(endpoint string) error {
	return NewEndpointValidator().ValidateEndpoint(endpoint)
}

// ValidateEndpoint validates if the provided URL is acceptable as a
// controller or camera endpoint
func (v *EndpointValidator) ValidateEndpoint(endpoint string) error {
	if strings.TrimSpace(endpoint) == "" {
		return apperrors.NewInvalidConfig("endpoint URL cannot be empty", nil)
	}

	parsedURL, err := url.Parse(endpoint)
	if err != nil {
		return apperrors.NewInvalidConfig("invalid endpoint URL format", err)
	}

	if !v.isSchemeAllowed(parsedURL.Scheme) {
		return apperrors.NewInvalidConfig("endpoint URL scheme not allowed", nil)
	}

	if parsedURL.Host == "" {
		return apperrors.NewInvalidConfig("endpoint URL must have a valid host", nil)
	}

	if len(v.allowedHosts) > 0 && !v.isHostAllowed(parsedURL.Host) {
		return apperrors.NewInvalidConfig("endpoint URL host not allowed", nil)
	}

	return nil
}

// isSchemeAllowed checks if the URL scheme is in the allowed list
func (v *EndpointValidator) isSchemeAllowed(scheme string) bool {
	for _, allowed := range v.allowedSchemes {
		if scheme == allowed {
			return true
		}
	}
	return false
}

// isHostAllowed checks if the URL host is in the allowed list
// Returns true if no host restrictions are set (empty allowedHosts)
func (v *EndpointValidator) isHostAllowed(host string) bool {
	if len(v.allowedHosts) == 0 {
		return true
	}
	for _, allowed := range v.allowedHosts {
		if host == allowed {
			return true
		}
	}
	return false
}
