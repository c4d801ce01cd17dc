package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ModelVersion is one trained vocabulary/model artifact pair.
type ModelVersion struct {
	Version        string       `json:"version"`
	VocabularyPath string       `json:"vocabulary_path"`
	ModelPath      string       `json:"model_path"`
	CreatedAt      time.Time    `json:"created_at"`
	Metrics        ModelMetrics `json:"metrics"`
	IsActive       bool         `json:"is_active"`
}

// ModelMetrics contains offline evaluation results reported by training.
type ModelMetrics struct {
	Accuracy        float64 `json:"accuracy"`
	F1Score         float64 `json:"f1_score"`
	Precision       float64 `json:"precision"`
	Recall          float64 `json:"recall"`
	TrainingSamples int     `json:"training_samples"`
}

// ModelManager tracks artifact versions in a models directory and which one the
// server should load.
type ModelManager struct {
	modelsDir    string
	versionsFile string
	versions     []ModelVersion
	currentModel *ModelVersion
}

// NewModelManager opens the registry in modelsDir, starting empty when none exists.
func NewModelManager(modelsDir string) (*ModelManager, error) {
	if err := os.MkdirAll(modelsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create models directory: %w", err)
	}

	mm := &ModelManager{
		modelsDir:    modelsDir,
		versionsFile: filepath.Join(modelsDir, "model_versions.json"),
		versions:     make([]ModelVersion, 0),
	}

	if err := mm.loadVersions(); err != nil {
		log.Warn().Err(err).Str("models_dir", modelsDir).Msg("Failed to load model versions, starting fresh")
		mm.versions = mm.versions[:0]
		mm.currentModel = nil
	}

	return mm, nil
}

// AddVersion registers a vocabulary/model pair. Relative paths are resolved against the
// models directory when the version is read back.
func (mm *ModelManager) AddVersion(vocabularyPath, modelPath string, metrics ModelMetrics) (string, error) {
	now := time.Now()
	version := ModelVersion{
		Version:        now.Format("20060102-150405") + "-" + uuid.NewString()[:8],
		VocabularyPath: vocabularyPath,
		ModelPath:      modelPath,
		CreatedAt:      now,
		Metrics:        metrics,
	}

	mm.versions = append(mm.versions, version)

	// newest first
	sort.SliceStable(mm.versions, func(i, j int) bool {
		return mm.versions[i].CreatedAt.After(mm.versions[j].CreatedAt)
	})
	mm.relinkCurrent()

	return version.Version, mm.saveVersions()
}

// ActivateVersion marks version as the one to serve.
func (mm *ModelManager) ActivateVersion(version string) error {
	found := false
	for i := range mm.versions {
		if mm.versions[i].Version == version {
			mm.versions[i].IsActive = true
			mm.currentModel = &mm.versions[i]
			found = true
		} else {
			mm.versions[i].IsActive = false
		}
	}

	if !found {
		return fmt.Errorf("version %s not found", version)
	}

	return mm.saveVersions()
}

// Rollback activates the version registered before the active one.
func (mm *ModelManager) Rollback() error {
	if len(mm.versions) < 2 {
		return fmt.Errorf("no previous version available for rollback")
	}

	currentIdx := -1
	for i, v := range mm.versions {
		if v.IsActive {
			currentIdx = i
			break
		}
	}

	if currentIdx == -1 {
		return fmt.Errorf("no active version found")
	}

	if currentIdx+1 < len(mm.versions) {
		return mm.ActivateVersion(mm.versions[currentIdx+1].Version)
	}

	return fmt.Errorf("no previous version available")
}

// GetCurrentVersion returns the active version, or nil.
func (mm *ModelManager) GetCurrentVersion() *ModelVersion {
	return mm.currentModel
}

// ListVersions returns all versions, newest first.
func (mm *ModelManager) ListVersions() []ModelVersion {
	return append([]ModelVersion(nil), mm.versions...)
}

// ActivePaths returns the artifact paths of the active version.
func (mm *ModelManager) ActivePaths() (vocabularyPath, modelPath string, err error) {
	if mm.currentModel == nil {
		return "", "", fmt.Errorf("no active model version in %s", mm.modelsDir)
	}
	return mm.resolve(mm.currentModel.VocabularyPath), mm.resolve(mm.currentModel.ModelPath), nil
}

func (mm *ModelManager) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(mm.modelsDir, p)
}

func (mm *ModelManager) relinkCurrent() {
	mm.currentModel = nil
	for i := range mm.versions {
		if mm.versions[i].IsActive {
			mm.currentModel = &mm.versions[i]
			return
		}
	}
}

func (mm *ModelManager) loadVersions() error {
	data, err := os.ReadFile(mm.versionsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := json.Unmarshal(data, &mm.versions); err != nil {
		return err
	}

	mm.relinkCurrent()
	return nil
}

func (mm *ModelManager) saveVersions() error {
	data, err := json.MarshalIndent(mm.versions, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(mm.versionsFile, data, 0o600)
}
