package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/overseer/internal/database"
	"github.com/aristath/overseer/internal/scheduler"
)

// ExecutionStatus reports live execution state for the status endpoint.
// Satisfied by the execution orchestrator.
type ExecutionStatus interface {
	InFlight() int
	EngineName() string
}

// SystemHandlers handles system monitoring and maintenance requests
type SystemHandlers struct {
	log       zerolog.Logger
	dataDir   string
	databases map[string]*database.DB
	scheduler *scheduler.Scheduler
	execution ExecutionStatus
	startedAt time.Time
}

// NewSystemHandlers creates system handlers
func NewSystemHandlers(
	log zerolog.Logger,
	dataDir string,
	databases map[string]*database.DB,
	sched *scheduler.Scheduler,
	execution ExecutionStatus,
) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("handler", "system").Logger(),
		dataDir:   dataDir,
		databases: databases,
		scheduler: sched,
		execution: execution,
		startedAt: time.Now(),
	}
}

// RegisterRoutes registers all system routes
func (h *SystemHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/system", func(r chi.Router) {
		r.Get("/status", h.HandleSystemStatus)
		r.Get("/jobs", h.HandleJobsStatus)
		r.Post("/jobs/{name}/run", h.HandleRunJob)
		r.Get("/database/stats", h.HandleDatabaseStats)
		r.Get("/disk", h.HandleDiskUsage)
	})
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPct, memPct := h.systemStats()

	h.writeJSON(w, map[string]interface{}{
		"data": map[string]interface{}{
			"status":         "ok",
			"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
			"cpu_percent":    cpuPct,
			"memory_percent": memPct,
			"engine":         h.execution.EngineName(),
			"in_flight":      h.execution.InFlight(),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleJobsStatus handles GET /api/system/jobs
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	jobs := h.scheduler.Jobs()

	h.writeJSON(w, map[string]interface{}{
		"data": map[string]interface{}{
			"jobs":  jobs,
			"count": len(jobs),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleRunJob handles POST /api/system/jobs/{name}/run
func (h *SystemHandlers) HandleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := h.scheduler.RunNow(name); err != nil {
		h.log.Error().Err(err).Str("job", name).Msg("Manual job run failed")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, map[string]interface{}{
		"data": map[string]interface{}{
			"job":    name,
			"status": "completed",
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleDatabaseStats handles GET /api/system/database/stats
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.databases))
	for name := range h.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	stats := make(map[string]interface{}, len(names))
	for _, name := range names {
		dbStats, err := h.databases[name].GetStats()
		if err != nil {
			h.log.Warn().Err(err).Str("database", name).Msg("Failed to get database stats")
			stats[name] = map[string]interface{}{"error": err.Error()}
			continue
		}

		stats[name] = map[string]interface{}{
			"size_mb":        float64(dbStats.SizeBytes) / 1024 / 1024,
			"wal_size_mb":    float64(dbStats.WALSizeBytes) / 1024 / 1024,
			"page_count":     dbStats.PageCount,
			"page_size":      dbStats.PageSize,
			"freelist_count": dbStats.FreelistCount,
		}
	}

	h.writeJSON(w, map[string]interface{}{
		"data": stats,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleDiskUsage handles GET /api/system/disk
func (h *SystemHandlers) HandleDiskUsage(w http.ResponseWriter, r *http.Request) {
	dataMB := h.dirSizeMB(h.dataDir)
	backupsMB := h.dirSizeMB(filepath.Join(h.dataDir, "backups"))

	h.writeJSON(w, map[string]interface{}{
		"data": map[string]interface{}{
			"data_dir_mb": dataMB,
			"backups_mb":  backupsMB,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// dirSizeMB calculates total size of a directory in MB
func (h *SystemHandlers) dirSizeMB(dirPath string) float64 {
	var totalSize int64

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})
	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}

	return float64(totalSize) / 1024 / 1024
}

// systemStats returns CPU and RAM usage percentages. The short sampling
// interval keeps the status endpoint responsive.
func (h *SystemHandlers) systemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
