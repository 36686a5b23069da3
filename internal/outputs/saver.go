package outputs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Artifact is one image ready to persist, with everything the sidecar
// records about it.
type Artifact struct {
	BatchID   string
	ItemIndex int
	Attempt   int
	Image     []byte
	Metadata  map[string]string
	Rejected  bool
	Score     float64
	Scored    bool
}

// SavedFile reports where an artifact landed.
type SavedFile struct {
	ImagePath    string
	MetadataPath string
}

type sidecar struct {
	BatchID   string            `json:"batch_id"`
	ItemIndex int               `json:"item_index"`
	Attempt   int               `json:"attempt"`
	Rejected  bool              `json:"rejected,omitempty"`
	Score     *float64          `json:"score,omitempty"`
	SavedAt   time.Time         `json:"saved_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Saver writes artifacts under a local output root.
type Saver struct {
	root string
}

func NewSaver(root string) *Saver {
	return &Saver{root: root}
}

// Save writes the image and its sidecar. Rejected artifacts go to a
// rejected subdirectory with the attempt number in the name so retries
// never clobber each other.
func (s *Saver) Save(artifact Artifact) (SavedFile, error) {
	var empty SavedFile
	if strings.TrimSpace(artifact.BatchID) == "" {
		return empty, fmt.Errorf("outputs save: batch id required")
	}
	if len(artifact.Image) == 0 {
		return empty, fmt.Errorf("outputs save: image required")
	}

	dir := filepath.Join(s.root, artifact.BatchID)
	name := fmt.Sprintf("item_%04d", artifact.ItemIndex)
	if artifact.Rejected {
		dir = filepath.Join(dir, "rejected")
		name = fmt.Sprintf("%s_attempt%d", name, artifact.Attempt)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return empty, fmt.Errorf("outputs save: create directory: %w", err)
	}

	imagePath := filepath.Join(dir, name+".png")
	if err := os.WriteFile(imagePath, artifact.Image, 0o644); err != nil {
		return empty, fmt.Errorf("outputs save: write image: %w", err)
	}

	record := sidecar{
		BatchID:   artifact.BatchID,
		ItemIndex: artifact.ItemIndex,
		Attempt:   artifact.Attempt,
		Rejected:  artifact.Rejected,
		SavedAt:   time.Now().UTC(),
		Metadata:  artifact.Metadata,
	}
	if artifact.Scored {
		score := artifact.Score
		record.Score = &score
	}
	encoded, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return empty, fmt.Errorf("outputs save: encode sidecar: %w", err)
	}
	metadataPath := filepath.Join(dir, name+".json")
	if err := os.WriteFile(metadataPath, encoded, 0o644); err != nil {
		return empty, fmt.Errorf("outputs save: write sidecar: %w", err)
	}
	return SavedFile{ImagePath: imagePath, MetadataPath: metadataPath}, nil
}
