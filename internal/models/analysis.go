package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/solarscope/backend/internal/utils"
	"gorm.io/datatypes"
)

type AnalysisType string

const (
	AnalysisInstallation   AnalysisType = "installation"
	AnalysisFaultDetection AnalysisType = "fault-detection"
)

func (t AnalysisType) Valid() bool {
	return t == AnalysisInstallation || t == AnalysisFaultDetection
}

// Analysis is one completed AI analysis run. Exactly one of UserID and
// SessionID is set. Results is the provider's payload, stored as-is.
type Analysis struct {
	ID                 int64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID             *int64         `gorm:"column:user_id;index" json:"userId"`
	SessionID          *string        `gorm:"column:session_id;type:text;index" json:"sessionId"`
	UserSequenceNumber int            `gorm:"column:user_sequence_number;not null;default:1" json:"userSequenceNumber"`
	Type               AnalysisType   `gorm:"column:type;type:text;not null" json:"type"`
	ImagePath          string         `gorm:"column:image_path;type:text;not null" json:"imagePath"`
	Results            datatypes.JSON `gorm:"column:results;type:jsonb;not null" json:"results"`
	OriginalImageURL   *string        `gorm:"column:original_image_url;type:text" json:"originalImageUrl"`
	AnalysisImageURL   *string        `gorm:"column:analysis_image_url;type:text" json:"analysisImageUrl"`
	CreatedAt          time.Time      `gorm:"column:created_at;not null;autoCreateTime" json:"createdAt"`
}

func (Analysis) TableName() string { return "analyses" }

// NewAnalysis is the create payload. The sequence number is assigned by the store.
type NewAnalysis struct {
	UserID           *int64
	SessionID        *string
	Type             AnalysisType
	ImagePath        string
	Results          datatypes.JSON
	OriginalImageURL *string
	AnalysisImageURL *string
}

func (n NewAnalysis) Validate() error {
	if err := validateOwner(n.UserID, n.SessionID); err != nil {
		return err
	}
	if !n.Type.Valid() {
		return fmt.Errorf("%w: unknown analysis type %q", utils.ErrInvalidRecord, n.Type)
	}
	if strings.TrimSpace(n.ImagePath) == "" {
		return fmt.Errorf("%w: image path is required", utils.ErrInvalidRecord)
	}
	if len(n.Results) == 0 {
		return fmt.Errorf("%w: results are required", utils.ErrInvalidRecord)
	}
	return nil
}

// Record builds the row to insert with the given sequence number.
func (n NewAnalysis) Record(seq int) *Analysis {
	return &Analysis{
		UserID:             n.UserID,
		SessionID:          n.SessionID,
		UserSequenceNumber: seq,
		Type:               n.Type,
		ImagePath:          n.ImagePath,
		Results:            CloneJSON(n.Results),
		OriginalImageURL:   n.OriginalImageURL,
		AnalysisImageURL:   n.AnalysisImageURL,
	}
}

// NextSequenceNumber returns max(existing)+1, or 1 when none exist.
func NextSequenceNumber(existing []int) int {
	next := 1
	for _, n := range existing {
		if n >= next {
			next = n + 1
		}
	}
	return next
}

// CloneJSON returns a copy that shares no backing array with src.
func CloneJSON(src datatypes.JSON) datatypes.JSON {
	if src == nil {
		return nil
	}
	out := make(datatypes.JSON, len(src))
	copy(out, src)
	return out
}
