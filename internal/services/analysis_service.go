package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/solarscope/backend/internal/cache"
	"github.com/solarscope/backend/internal/metrics"
	"github.com/solarscope/backend/internal/models"
	"github.com/solarscope/backend/internal/providers/llm"
	"github.com/solarscope/backend/internal/storage"
	"github.com/solarscope/backend/internal/store"
	"github.com/solarscope/backend/internal/utils"
	"gorm.io/datatypes"
)

const MaxImageBytes = 8 << 20

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

type AnalyzeInput struct {
	Owner    Owner
	Type     models.AnalysisType
	Image    []byte
	Filename string
	Roof     RoofInput
}

// AnalyzeResult carries the provider output even when persisting it failed;
// Analysis is nil in that case.
type AnalyzeResult struct {
	Analysis *models.Analysis `json:"analysis"`
	Results  json.RawMessage  `json:"results"`
}

type AnalysisService interface {
	Analyze(ctx context.Context, in AnalyzeInput) (*AnalyzeResult, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Analysis, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.Analysis, error)
	Get(ctx context.Context, id int64) (*models.Analysis, error)
}

type analysisService struct {
	store     store.Store
	llm       llm.Provider
	uploader  storage.Uploader
	cache     cache.Cache
	uploadDir string
	log       logrus.FieldLogger
}

type AnalysisDeps struct {
	Store     store.Store
	LLM       llm.Provider
	Uploader  storage.Uploader // optional
	Cache     cache.Cache      // optional
	UploadDir string
	Logger    logrus.FieldLogger
}

func NewAnalysisService(d AnalysisDeps) AnalysisService {
	if d.Logger == nil {
		d.Logger = logrus.New()
	}
	if d.UploadDir == "" {
		d.UploadDir = filepath.Join(os.TempDir(), "solarscope")
	}
	return &analysisService{
		store:     d.Store,
		llm:       d.LLM,
		uploader:  d.Uploader,
		cache:     d.Cache,
		uploadDir: d.UploadDir,
		log:       d.Logger,
	}
}

func (s *analysisService) Analyze(ctx context.Context, in AnalyzeInput) (*AnalyzeResult, error) {
	const op = "AnalysisService.Analyze"

	if !in.Type.Valid() {
		return nil, utils.E(utils.CodeInvalidArgument, op, "unknown analysis type", nil)
	}
	if len(in.Image) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "No image uploaded", nil)
	}
	if len(in.Image) > MaxImageBytes {
		return nil, utils.E(utils.CodeInvalidArgument, op, "image exceeds 8MB limit", nil)
	}
	mimeType := http.DetectContentType(in.Image)
	if !allowedImageTypes[mimeType] {
		return nil, utils.E(utils.CodeInvalidArgument, op, "Invalid image format. Please upload JPG, PNG or WEBP files.", nil)
	}
	if s.llm == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "AI service not configured", nil)
	}

	var prompt string
	switch in.Type {
	case models.AnalysisInstallation:
		if err := in.Roof.Normalize(); err != nil {
			return nil, utils.E(utils.CodeInvalidArgument, op, err.Error(), nil)
		}
		prompt = installationPrompt(in.Roof)
	default:
		prompt = faultPrompt(filepath.Base(in.Filename))
	}

	imagePath, err := s.saveTemp(in.Image, in.Filename)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to store upload", err)
	}

	raw, err := s.llm.AnalyzeImage(ctx, prompt, in.Image, mimeType)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "Analysis failed", err)
	}
	results, err := parseResults(in.Type, raw)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "Analysis failed", err)
	}

	log := s.log.WithFields(logrus.Fields{"type": in.Type, "image_path": imagePath})
	originalURL := s.publish(ctx, log, in.Image, imagePath, mimeType)

	userID, sessionID := in.Owner.anchors()
	a, err := s.store.CreateAnalysis(ctx, models.NewAnalysis{
		UserID:           userID,
		SessionID:        sessionID,
		Type:             in.Type,
		ImagePath:        imagePath,
		Results:          datatypes.JSON(results),
		OriginalImageURL: originalURL,
	})
	if err != nil {
		// The AI work is done; return it even though it was not saved.
		log.WithError(err).Warn("analysis storage failed, returning results only")
		return &AnalyzeResult{Results: results}, nil
	}

	metrics.AnalysesCreated.WithLabelValues(string(in.Type), string(s.store.StorageStatus().Type)).Inc()
	log.WithField("analysis_id", a.ID).Info("analysis stored")
	return &AnalyzeResult{Analysis: a, Results: results}, nil
}

func (s *analysisService) saveTemp(data []byte, filename string) (string, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", err
	}
	name := filepath.Base(filename)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "image.jpg"
	}
	p := filepath.Join(s.uploadDir, "solarscope-"+uuid.NewString()+"-"+name)
	if err := os.WriteFile(p, data, 0o600); err != nil {
		return "", err
	}
	return p, nil
}

// publish uploads the original image when an uploader is configured. Failure
// only costs the URL.
func (s *analysisService) publish(ctx context.Context, log logrus.FieldLogger, data []byte, imagePath, mimeType string) *string {
	if s.uploader == nil {
		return nil
	}
	url, err := s.uploader.Upload(ctx, filepath.Base(imagePath), mimeType, bytes.NewReader(data))
	if err != nil {
		log.WithError(err).Warn("original image upload failed")
		return nil
	}
	return &url
}

func parseResults(typ models.AnalysisType, raw string) (json.RawMessage, error) {
	cleaned := llm.CleanJSON(raw)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		return nil, fmt.Errorf("provider returned invalid JSON: %w", err)
	}
	var missing []string
	for _, k := range requiredResultFields[typ] {
		if _, ok := fields[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("provider response missing %s", strings.Join(missing, ", "))
	}
	return json.RawMessage(cleaned), nil
}

func (s *analysisService) ListByUser(ctx context.Context, userID int64) ([]models.Analysis, error) {
	out, err := s.store.GetAnalysesByUser(ctx, userID)
	if err != nil {
		return nil, storeErr("AnalysisService.ListByUser", "Failed to fetch analyses", err)
	}
	return out, nil
}

func (s *analysisService) ListBySession(ctx context.Context, sessionID string) ([]models.Analysis, error) {
	out, err := s.store.GetAnalysesBySession(ctx, sessionID)
	if err != nil {
		return nil, storeErr("AnalysisService.ListBySession", "Failed to fetch session analyses", err)
	}
	return out, nil
}

// Get serves from cache when possible. Analyses never change after creation,
// so the only invalidation is deletion (clear-session, reset). Only database
// records are cached: memory ids restart at 1 with every process and would
// collide in a shared Redis.
func (s *analysisService) Get(ctx context.Context, id int64) (*models.Analysis, error) {
	const op = "AnalysisService.Get"

	key := cache.AnalysisKey(string(store.StorageDatabase), id)
	cached := s.cache != nil && s.durable()
	if cached {
		var a models.Analysis
		hit, err := s.cache.GetJSON(ctx, key, &a)
		if err != nil {
			s.log.WithError(err).Warn("analysis cache read failed")
		}
		if hit {
			metrics.CacheHits.WithLabelValues("analysis").Inc()
			return &a, nil
		}
		metrics.CacheMisses.WithLabelValues("analysis").Inc()
	}

	a, err := s.store.GetAnalysis(ctx, id)
	if err != nil {
		return nil, storeErr(op, "Failed to fetch analysis", err)
	}
	if a == nil {
		return nil, utils.E(utils.CodeNotFound, op, "Analysis not found", utils.ErrNotFound)
	}

	// A fallback during the read means a may have come from memory.
	if cached && s.durable() {
		if err := s.cache.SetJSON(ctx, key, a, cache.AnalysisTTL); err != nil {
			s.log.WithError(err).Warn("analysis cache write failed")
		}
	}
	return a, nil
}

func (s *analysisService) durable() bool {
	return s.store.StorageStatus().Type == store.StorageDatabase
}
