package llm

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
)

// encodeImages turns image references into bare base64 payloads. A reference
// is either a data URI or a path to a file on disk.
func encodeImages(refs []string) ([]string, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		if strings.HasPrefix(ref, "data:") {
			comma := strings.Index(ref, ",")
			if comma < 0 {
				return nil, fmt.Errorf("malformed data URI")
			}
			out = append(out, ref[comma+1:])
			continue
		}
		data, err := os.ReadFile(ref)
		if err != nil {
			return nil, fmt.Errorf("read image %s: %w", ref, err)
		}
		out = append(out, base64.StdEncoding.EncodeToString(data))
	}
	return out, nil
}
