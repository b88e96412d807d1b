package charts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aristath/frontier/internal/optimization"
)

// Artifact names the files one run produced under the data dir.
type Artifact struct {
	JSONPath   string `json:"json_path"`
	PNGPath    string `json:"png_path,omitempty"`
	LatestJSON string `json:"latest_json"`
	LatestPNG  string `json:"latest_png,omitempty"`
}

// LatestJSONPath returns where the most recent run's JSON lives.
func LatestJSONPath(dataDir string) string {
	return filepath.Join(dataDir, "frontier-latest.json")
}

// LatestPNGPath returns where the most recent run's chart lives.
func LatestPNGPath(dataDir string) string {
	return filepath.Join(dataDir, "frontier-latest.png")
}

// WriteArtifacts persists the run as frontier-<runID>.json/.png and
// refreshes the frontier-latest pair. Latest files are replaced via
// temp-file rename so readers never observe a partial write. An empty
// png skips the chart pair; the JSON result is still written.
func WriteArtifacts(dataDir string, result *optimization.FrontierResult, png []byte) (*Artifact, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal frontier result: %w", err)
	}

	artifact := &Artifact{
		JSONPath:   filepath.Join(dataDir, fmt.Sprintf("frontier-%s.json", result.RunID)),
		LatestJSON: LatestJSONPath(dataDir),
	}

	if err := os.WriteFile(artifact.JSONPath, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write run JSON: %w", err)
	}
	if err := writeAtomic(artifact.LatestJSON, data); err != nil {
		return nil, fmt.Errorf("failed to update latest JSON: %w", err)
	}

	if len(png) > 0 {
		artifact.PNGPath = filepath.Join(dataDir, fmt.Sprintf("frontier-%s.png", result.RunID))
		artifact.LatestPNG = LatestPNGPath(dataDir)

		if err := os.WriteFile(artifact.PNGPath, png, 0644); err != nil {
			return nil, fmt.Errorf("failed to write run chart: %w", err)
		}
		if err := writeAtomic(artifact.LatestPNG, png); err != nil {
			return nil, fmt.Errorf("failed to update latest chart: %w", err)
		}
	}

	return artifact, nil
}

// LoadLatest reads the most recent run back from the data dir.
func LoadLatest(dataDir string) (*optimization.FrontierResult, error) {
	data, err := os.ReadFile(LatestJSONPath(dataDir))
	if err != nil {
		return nil, err
	}

	var result optimization.FrontierResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse latest frontier result: %w", err)
	}
	return &result, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), path)
}
