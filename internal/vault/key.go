package vault

import (
	"fmt"
	"path"
	"strings"
)

// cleanKey validates a slash-separated vault key and returns it in canonical form.
// Keys may not be absolute or escape the vault with "..".
func cleanKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty vault key")
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("vault key must be relative: %q", key)
	}
	cleaned := path.Clean(key)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("vault key escapes vault: %q", key)
	}
	return cleaned, nil
}
