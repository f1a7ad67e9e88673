package services

import (
	"context"
	"time"

	"github.com/solarscope/backend/internal/providers/llm"
	"github.com/solarscope/backend/internal/store"
)

const (
	ServiceName    = "SolarScope AI"
	ServiceVersion = "1.0.0"
)

type Health struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Service   string         `json:"service"`
	Version   string         `json:"version"`
	AI        ComponentState `json:"ai"`
	Database  DatabaseState  `json:"database"`
}

type ComponentState struct {
	Status string  `json:"status"`
	Error  *string `json:"error"`
}

type DatabaseState struct {
	Status      string  `json:"status"`
	Error       *string `json:"error"`
	StorageType string  `json:"storage_type"`
}

type HealthService interface {
	Check(ctx context.Context) Health
}

type healthService struct {
	store              store.Store
	llm                llm.Provider
	databaseConfigured bool
	now                func() time.Time
}

func NewHealthService(s store.Store, p llm.Provider, databaseConfigured bool) HealthService {
	return &healthService{store: s, llm: p, databaseConfigured: databaseConfigured, now: time.Now}
}

// Check reports configuration state only; it never spends provider quota.
func (h *healthService) Check(ctx context.Context) Health {
	out := Health{
		Timestamp: h.now().UTC(),
		Service:   ServiceName,
		Version:   ServiceVersion,
	}

	if h.llm != nil {
		out.AI = ComponentState{Status: "online"}
	} else {
		out.AI = ComponentState{Status: "offline", Error: strPtr("AI provider not configured")}
	}

	switch {
	case !h.databaseConfigured:
		out.Database = DatabaseState{
			Status:      "not_configured",
			Error:       strPtr("DATABASE_URL not provided - using memory storage"),
			StorageType: string(store.StorageMemory),
		}
	default:
		// Round-trip through the store so a dead backend is noticed (and
		// demoted) here rather than on a user request.
		if _, err := h.store.GetChatMessages(ctx, 1); err != nil {
			out.Database = DatabaseState{Status: "error", Error: strPtr(err.Error()), StorageType: string(store.StorageMemory)}
			break
		}
		st := h.store.StorageStatus()
		out.Database = DatabaseState{Status: "connected", StorageType: string(st.Type)}
		if st.Type == store.StorageMemory {
			out.Database.Status = "fallback_to_memory"
			out.Database.Error = strPtr("Database connection failed - using memory storage fallback")
		}
	}

	out.Status = "degraded"
	if out.AI.Status == "online" && out.Database.Status != "error" {
		out.Status = "healthy"
	}
	return out
}

func strPtr(s string) *string { return &s }
