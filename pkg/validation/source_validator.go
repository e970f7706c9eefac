package validation

import (
	"net/url"
	"strings"

	apperrors "go-rivermind/internal/errors"
	"go-rivermind/internal/storage"
)

// Frame source names accepted by Validate
const (
	SourceHTTP  = "http"
	SourceAzure = "azure"
)

// BlobHostSuffix is the host every Azure blob frame URL must end with
const BlobHostSuffix = ".blob.core.windows.net"

// FrameSourceValidator checks where a remote frame may be fetched from
type FrameSourceValidator struct {
	allowedSchemes []string
	allowedHosts   []string // empty allows every host
}

// NewFrameSourceValidator accepts http and https frame URLs from any host
func NewFrameSourceValidator() *FrameSourceValidator {
	return &FrameSourceValidator{allowedSchemes: []string{"http", "https"}}
}

// NewFrameSourceValidatorWithHosts restricts HTTP frames to the given schemes and hosts
func NewFrameSourceValidatorWithHosts(schemes []string, hosts []string) *FrameSourceValidator {
	return &FrameSourceValidator{allowedSchemes: schemes, allowedHosts: hosts}
}

// Validate checks location for the named source. An empty source means http.
func (v *FrameSourceValidator) Validate(source, location string) error {
	switch strings.ToLower(strings.TrimSpace(source)) {
	case SourceHTTP, "":
		return v.ValidateFrameURL(location)
	case SourceAzure:
		return ValidateBlobURL(location)
	default:
		return apperrors.NewValidationError("Unsupported frame source", nil).WithDetails("source %q", source)
	}
}

// ValidateFrameURL checks an HTTP(S) frame URL
func (v *FrameSourceValidator) ValidateFrameURL(frameURL string) error {
	u, err := parseLocation(frameURL)
	if err != nil {
		return err
	}
	if !containsFold(v.allowedSchemes, u.Scheme) {
		return apperrors.NewValidationError("URL scheme not allowed", nil).WithDetails("scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return apperrors.NewValidationError("URL must have a valid host", nil)
	}
	if u.User != nil {
		return apperrors.NewValidationError("URL must not embed credentials", nil)
	}
	if len(v.allowedHosts) > 0 && !containsFold(v.allowedHosts, u.Hostname()) {
		return apperrors.NewValidationError("URL host not allowed", nil).WithDetails("host %q", u.Hostname())
	}
	return nil
}

// ValidateBlobURL checks an Azure blob frame URL names a container and a blob
func ValidateBlobURL(blobURL string) error {
	u, err := parseLocation(blobURL)
	if err != nil {
		return err
	}
	if !strings.EqualFold(u.Scheme, "https") {
		return apperrors.NewValidationError("Blob URL must use https", nil).WithDetails("scheme %q", u.Scheme)
	}
	if !strings.HasSuffix(strings.ToLower(u.Hostname()), BlobHostSuffix) {
		return apperrors.NewValidationError("Blob URL host is not an Azure blob endpoint", nil).WithDetails("host %q", u.Hostname())
	}
	if _, _, err := storage.ParseBlobLocation(blobURL); err != nil {
		return apperrors.NewValidationError("Blob URL must name a container and a blob", err)
	}
	return nil
}

func parseLocation(location string) (*url.URL, error) {
	if strings.TrimSpace(location) == "" {
		return nil, apperrors.NewValidationError("URL cannot be empty", nil)
	}
	u, err := url.Parse(location)
	if err != nil {
		return nil, apperrors.NewValidationError("Invalid URL format", err)
	}
	return u, nil
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
