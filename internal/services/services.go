package services

import (
	"gorm.io/gorm"

	"github.com/tracevine/tracevine-backend/internal/config"
	"github.com/tracevine/tracevine-backend/internal/drift"
	"github.com/tracevine/tracevine-backend/internal/gap"
	"github.com/tracevine/tracevine-backend/internal/jobs"
	"github.com/tracevine/tracevine-backend/internal/match"
	"github.com/tracevine/tracevine-backend/internal/pkg/logger"
	"github.com/tracevine/tracevine-backend/internal/report"
	"github.com/tracevine/tracevine-backend/internal/repos"
	"github.com/tracevine/tracevine-backend/internal/requirements"
)

// Services is the exposed operation surface. Every method takes a
// context.Context carrying the tenant; callers outside a job use
// ctxutil.Default.
type Services struct {
	db  *gorm.DB
	log *logger.Logger
	cfg *config.Store

	queue        *jobs.Queue
	repositories repos.RepositoryRepo

	requirements *requirements.Service
	engine       *match.Engine
	drift        *drift.Detector
	gaps         *gap.Analyzer
	reporter     *report.Reporter
}

func New(
	db *gorm.DB,
	baseLog *logger.Logger,
	cfg *config.Store,
	queue *jobs.Queue,
	repositories repos.RepositoryRepo,
	reqSvc *requirements.Service,
	engine *match.Engine,
	detector *drift.Detector,
	gaps *gap.Analyzer,
	reporter *report.Reporter,
) *Services {
	return &Services{
		db:           db,
		log:          baseLog.With("component", "Services"),
		cfg:          cfg,
		queue:        queue,
		repositories: repositories,
		requirements: reqSvc,
		engine:       engine,
		drift:        detector,
		gaps:         gaps,
		reporter:     reporter,
	}
}
