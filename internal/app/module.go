package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/ship-kit/billing/internal/app/api/server"
	"github.com/ship-kit/billing/internal/app/service/entitlement"
	"github.com/ship-kit/billing/internal/app/service/event_log"
	"github.com/ship-kit/billing/internal/app/service/ledger"
	"github.com/ship-kit/billing/internal/app/service/statistics"
	"github.com/ship-kit/billing/internal/app/service/users"
	"github.com/ship-kit/billing/internal/app/service/webhook_handler"
	"github.com/ship-kit/billing/internal/platform/db"
	"github.com/ship-kit/billing/pkg/config"
	"github.com/ship-kit/billing/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	server.Module,
	ledger.Module,
	users.Module,
	event_log.Module,
	entitlement.Module,
	statistics.Module,
	webhook_handler.Module,
)
