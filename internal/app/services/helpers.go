package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/orbitalhq/geosync/internal/app/ports"
)

func newResourceID(prefix string) (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate resource id: %w", err)
	}
	return prefix + "_" + hex.EncodeToString(buf), nil
}

func validateGeometry(geometry ports.Geometry) error {
	switch geometry.Type {
	case "Polygon", "MultiPolygon":
	default:
		return validationError("area of interest must be a Polygon or MultiPolygon, got %q", geometry.Type)
	}
	if len(geometry.Coordinates) == 0 || string(geometry.Coordinates) == "null" {
		return validationError("area of interest has no coordinates")
	}
	return nil
}

func validateWebhookURL(raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return validationError("invalid webhook url: %v", err)
	}
	switch parsed.Scheme {
	case "http", "https":
	default:
		return validationError("webhook url scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return validationError("webhook url has no host")
	}
	return nil
}

// NormalizeListWindow clamps paging parameters to the shared list policy:
// a default page of 50, a hard cap of 500, and a non-negative offset.
func NormalizeListWindow(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
