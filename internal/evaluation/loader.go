package evaluation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/domain"
)

// LoadDir reads every *.json transcript in a directory, in name order. A
// file that fails to parse becomes a transcript that will be reported as
// skipped rather than aborting the batch.
func LoadDir(dir string) ([]*domain.Transcript, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read transcript dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	out := make([]*domain.Transcript, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		var t domain.Transcript
		if err := json.Unmarshal(data, &t); err != nil {
			// Keep the placeholder so the batch records the bad file.
			out = append(out, &domain.Transcript{SessionID: name})
			continue
		}
		out = append(out, &t)
	}
	return out, nil
}
