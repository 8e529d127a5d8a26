package probe

import (
	"fmt"
	"strings"
)

// AddressMode selects how a target identifier becomes a request URL.
type AddressMode string

const (
	// ModeSpace appends the identifier and "/runtime" to the API base.
	ModeSpace AddressMode = "space"
	// ModeURL uses the identifier as the address.
	ModeURL AddressMode = "url"
)

const (
	DefaultAPIBase   = "https://huggingface.co/api/spaces"
	DefaultUserAgent = "Mozilla/5.0"
)

func ParseMode(s string) (AddressMode, error) {
	switch m := AddressMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", ModeSpace:
		return ModeSpace, nil
	case ModeURL:
		return ModeURL, nil
	}
	return "", fmt.Errorf("unknown address mode %q", s)
}

// Address builds the probe URL for id.
func Address(mode AddressMode, apiBase, id string) string {
	if mode == ModeURL {
		return id
	}
	return strings.TrimRight(apiBase, "/") + "/" + strings.Trim(id, "/") + "/runtime"
}
