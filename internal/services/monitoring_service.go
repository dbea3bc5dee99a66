package services

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"bridge-backend/internal/bridge"
	"bridge-backend/internal/metrics"

	"github.com/ethereum/go-ethereum/common"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MonitoringReport result of one monitoring pass
type MonitoringReport struct {
	Pending       int
	OldestPending time.Duration
	Stale         []bridge.Transfer
	Locked        map[common.Address]string
}

// MonitoringService 监控服务，按 cron 计划更新 Prometheus metrics。
// Stale pending transfers are only reported, nothing is retried or failed automatically.
type MonitoringService struct {
	core     *bridge.Bridge
	db       *gorm.DB // optional
	schedule string
	staleAge time.Duration
	now      func() time.Time
	logger   *logrus.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// NewMonitoringService 创建监控服务
func NewMonitoringService(core *bridge.Bridge, db *gorm.DB, schedule string, staleAge time.Duration, logger *logrus.Logger) *MonitoringService {
	if schedule == "" {
		schedule = "@every 1m"
	}
	return &MonitoringService{
		core:     core,
		db:       db,
		schedule: schedule,
		staleAge: staleAge,
		now:      time.Now,
		logger:   logger,
	}
}

// Start 启动监控服务
func (m *MonitoringService) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cron != nil {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(m.schedule, func() { m.Check() }); err != nil {
		return fmt.Errorf("invalid monitoring schedule %q: %w", m.schedule, err)
	}
	m.logger.Infof("🚀 Starting monitoring service (schedule %s)", m.schedule)
	m.Check()
	c.Start()
	m.cron = c
	return nil
}

// Stop 停止监控服务, waits for a running pass to finish
func (m *MonitoringService) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cron == nil {
		return
	}
	<-m.cron.Stop().Done()
	m.cron = nil
	m.logger.Info("✅ Monitoring service stopped")
}

// Check runs one monitoring pass and publishes the gauges
func (m *MonitoringService) Check() MonitoringReport {
	now := m.now().UTC()
	pending := m.core.PendingTransfers()
	report := MonitoringReport{
		Pending: len(pending),
		Locked:  make(map[common.Address]string),
	}

	for _, t := range pending {
		age := now.Sub(t.CreatedAt)
		if age > report.OldestPending {
			report.OldestPending = age
		}
		if m.staleAge > 0 && age >= m.staleAge {
			report.Stale = append(report.Stale, t)
		}
	}
	metrics.PendingTransfers.Set(float64(report.Pending))
	metrics.OldestPendingAge.Set(report.OldestPending.Seconds())
	metrics.StalePendingTransfers.Set(float64(len(report.Stale)))

	for _, t := range report.Stale {
		m.logger.WithFields(logrus.Fields{
			"transfer_id":   t.ID,
			"initiator":     t.Initiator.Hex(),
			"confirmations": t.ConfirmationCount,
			"required":      m.core.RequiredConfirmations(),
			"age":           now.Sub(t.CreatedAt).Round(time.Second).String(),
		}).Warn("⏳ Transfer pending beyond stale age")
	}

	for _, route := range m.core.AssetRoutes() {
		if _, seen := report.Locked[route.Asset]; !seen {
			locked := m.core.CustodyBalance(route.Asset)
			report.Locked[route.Asset] = locked.Dec()
			metrics.CustodyLocked.WithLabelValues(route.Asset.Hex()).Set(locked.Float64())
		}
		used := 0.0
		if !route.DailyLimit.IsZero() {
			remaining := m.core.RemainingDailyCapacity(route.Asset, route.DestinationChain)
			usedAmount := route.DailyLimit.Clone()
			usedAmount.Sub(usedAmount, remaining)
			used = usedAmount.Float64() / route.DailyLimit.Float64()
		}
		metrics.RouteUtilisation.WithLabelValues(route.Asset.Hex(), strconv.FormatUint(route.DestinationChain, 10)).Set(used)
	}

	metrics.ValidatorCount.Set(float64(m.core.ValidatorCount()))
	metrics.BridgeAvailability.WithLabelValues("paused").Set(boolGauge(m.core.IsPaused()))
	metrics.BridgeAvailability.WithLabelValues("emergency_stop").Set(boolGauge(m.core.IsStopped()))

	m.updateDatabaseMetrics()
	return report
}

// updateDatabaseMetrics 更新数据库指标
func (m *MonitoringService) updateDatabaseMetrics() {
	if m.db == nil {
		return
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		metrics.DBConnectionStatus.Set(0)
		return
	}

	stats := sqlDB.Stats()
	metrics.DBConnectionActive.Set(float64(stats.InUse))
	metrics.DBConnectionIdle.Set(float64(stats.Idle))

	if err := sqlDB.Ping(); err != nil {
		metrics.DBConnectionStatus.Set(0)
		m.logger.WithError(err).Warn("⚠️ Database ping failed")
	} else {
		metrics.DBConnectionStatus.Set(1)
	}
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
