package container

import (
	"context"
	"fmt"
	"sync"

	"portal-agent/internal/config"
	"portal-agent/internal/domain"
	"portal-agent/internal/service"
	"portal-agent/internal/service/auth"
	"portal-agent/internal/service/backend"
	"portal-agent/internal/service/idempotency"
	"portal-agent/internal/service/notify"
	"portal-agent/internal/service/toast"
	"portal-agent/internal/service/vetting"
	"portal-agent/pkg/logger"
	"portal-agent/pkg/redis"
)

// Container holds all agent dependencies
type Container struct {
	Config      *config.Config
	Logger      *logger.Logger
	RedisClient *redis.Client
	Toasts      *toast.Feed
	Desktop     *notify.DesktopCenter
	Notifier    *notify.Client
	Vetting     *vetting.Registry

	mu       sync.RWMutex
	services *service.Services
	session  *domain.Session
}

// New creates the dependency injection container for the configured session
func New(cfg *config.Config, logger *logger.Logger) (*Container, error) {
	policy, err := vetting.ParseUnknownStatusPolicy(cfg.UnknownStatusPolicy)
	if err != nil {
		return nil, err
	}

	sessions := auth.NewService(logger)
	session, err := sessions.Parse(cfg.Token, cfg.TenantSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	// Redis is optional; without it duplicate transitions are only caught by
	// the backend
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		client, err := redis.NewClient(cfg.RedisURL, cfg.Environment, logger.Logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize Redis client, proceeding without action guard")
		} else {
			redisClient = client
			logger.Info("Redis client initialized successfully")
		}
	} else {
		logger.Info("Redis URL not configured, proceeding without action guard")
	}

	c := &Container{
		Config:      cfg,
		Logger:      logger,
		RedisClient: redisClient,
		Toasts:      toast.NewFeed(toast.DefaultCapacity, logger.Component("toast")),
		Desktop:     notify.NewDesktopCenter(domain.NotificationPermission(cfg.DesktopNotifications), logger.Component("desktop")),
		session:     session,
	}
	c.services = c.buildServices(sessions, session)

	c.Vetting = vetting.NewRegistry(c.services, session, policy, logger)
	c.Vetting.OnStatusChange(c.reloadParticipants)
	c.Notifier = notify.NewClient(notify.Options{
		URL: notify.URLOptions{
			APIURL:       cfg.APIURL,
			WSURL:        cfg.WSURL,
			AllowedHosts: cfg.WSAllowedHosts,
			Production:   cfg.IsProduction(),
		},
		Token:  session.Token,
		Tenant: session.TenantSlug,
	}, c.Toasts, c.Desktop, logger)

	logger.WithFields(map[string]interface{}{
		"user_id": session.UserID,
		"tenant":  session.TenantSlug,
		"roles":   session.Roles,
	}).Info("Session loaded")

	return c, nil
}

func (c *Container) buildServices(sessions service.SessionService, session *domain.Session) *service.Services {
	services := &service.Services{
		Session: sessions,
		Backend: backend.NewClient(backend.Options{
			BaseURL:    c.Config.APIURL,
			Token:      session.Token,
			TenantSlug: session.TenantSlug,
			Timeout:    c.Config.HTTPTimeout,
		}, c.Logger.Component("backend")),
		Toasts: c.Toasts,
	}
	if c.RedisClient != nil {
		services.Guard = idempotency.NewRedisGuard(c.RedisClient, session.TenantSlug, c.Logger.Component("guard"))
	}
	return services
}

// reloadParticipants refreshes a loaded participant list after a phase
// change so its rows reflect the new edit permission
func (c *Container) reloadParticipants(eventID int, status domain.CommitteeStatus) {
	ctrl, ok := c.Vetting.Lookup(eventID)
	if !ok || len(ctrl.Participants()) == 0 {
		return
	}
	if err := ctrl.LoadParticipants(context.Background()); err != nil {
		c.Logger.WithError(err).WithField("event_id", eventID).Warn("Failed to reload participants after status change")
	}
}

// Session returns the current session
func (c *Container) Session() *domain.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// GetServices returns the services bound to the current session
func (c *Container) GetServices() *service.Services {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.services
}

// UpdateSession switches the agent to another token or tenant. Vetting
// controllers are dropped and the notification socket reconnects.
func (c *Container) UpdateSession(ctx context.Context, token, tenant string) (*domain.Session, error) {
	c.mu.RLock()
	sessions := c.services.Session
	c.mu.RUnlock()

	session, err := sessions.Parse(token, tenant)
	if err != nil {
		return nil, err
	}

	services := c.buildServices(sessions, session)

	c.mu.Lock()
	c.session = session
	c.services = services
	c.mu.Unlock()

	c.Vetting.Reset(services, session)
	if err := c.Notifier.UpdateSession(ctx, session.Token, session.TenantSlug); err != nil {
		c.Logger.WithError(err).Warn("Failed to restart notification socket")
	}

	c.Logger.WithFields(map[string]interface{}{
		"user_id": session.UserID,
		"tenant":  session.TenantSlug,
	}).Info("Session updated")
	return session, nil
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.Logger
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.Config
}

// HasRedis returns true if Redis client is available
func (c *Container) HasRedis() bool {
	return c.RedisClient != nil
}
