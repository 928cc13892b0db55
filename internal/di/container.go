package di

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/bloom-bouquet/api/internal/platform/config"
	"github.com/bloom-bouquet/api/internal/platform/observability"
	"github.com/bloom-bouquet/api/internal/platform/requestctx"
	"github.com/bloom-bouquet/api/internal/repositories"
	"github.com/bloom-bouquet/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Orders        services.OrderService
	Notifications services.NotificationService
	History       services.HistoryService
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// ContainerOption customises container construction.
type ContainerOption func(*containerDeps)

type containerDeps struct {
	events services.OrderEventPublisher
	clock  func() time.Time
}

// WithEventPublisher attaches the order event publisher used after accepted
// transitions. Without one, events are silently dropped.
func WithEventPublisher(publisher services.OrderEventPublisher) ContainerOption {
	return func(deps *containerDeps) {
		deps.events = publisher
	}
}

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) ContainerOption {
	return func(deps *containerDeps) {
		if clock != nil {
			deps.clock = clock
		}
	}
}

// NewContainer constructs the runtime dependencies. Production wiring provides
// the Firestore-backed registry, while tests can supply in-memory ones.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, opts ...ContainerOption) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	deps := containerDeps{clock: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		if opt != nil {
			opt(&deps)
		}
	}

	svc, err := buildServices(reg, cfg, deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases repository clients and other held resources.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(reg repositories.Registry, cfg config.Config, deps containerDeps) (Services, error) {
	var svc Services

	logger := observability.EventLogger()

	svc.History = services.NewHistoryService(services.HistoryServiceDeps{
		History:     reg.StatusHistory(),
		IDGenerator: prefixedID("hist"),
		Clock:       deps.clock,
		Logger:      logger,
	})

	notifications, err := services.NewNotificationService(services.NotificationServiceDeps{
		Notifications: reg.Notifications(),
		Admins:        reg.Admins(),
		Customers:     reg.Customers(),
		AdminLocale:   cfg.Notifications.AdminLocale,
		IDGenerator:   prefixedID("ntf"),
		Clock:         deps.clock,
		Logger:        logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build notification service: %w", err)
	}
	svc.Notifications = notifications

	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:       reg.Orders(),
		UnitOfWork:   reg,
		History:      svc.History,
		Notifier:     svc.Notifications,
		Events:       deps.events,
		ResolveActor: requestctx.Actor,
		Clock:        deps.clock,
		Logger:       logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orders

	return svc, nil
}

func prefixedID(prefix string) func() string {
	return func() string {
		return prefix + "_" + strings.ToLower(ulid.Make().String())
	}
}
