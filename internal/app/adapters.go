package app

import (
	"fmt"

	"github.com/uniedit/checkout/internal/adapter/outbound/gateway"
	"github.com/uniedit/checkout/internal/adapter/outbound/memory"
	"github.com/uniedit/checkout/internal/adapter/outbound/postgres"
	redisstore "github.com/uniedit/checkout/internal/adapter/outbound/redis"
	"github.com/uniedit/checkout/internal/domain/checkout"
	"github.com/uniedit/checkout/internal/domain/payment"
	"github.com/uniedit/checkout/internal/infra/httpclient"
	"github.com/uniedit/checkout/internal/shared/config"
	"go.uber.org/zap"
)

// stores bundles the persistence adapters selected by store.driver.
type stores struct {
	sessions     checkout.SessionStore
	transactions payment.TransactionStore
}

func (a *App) buildStores() (*stores, error) {
	switch a.config.Store.Driver {
	case config.StoreMemory:
		return &stores{
			sessions:     memory.NewSessionStore(),
			transactions: memory.NewTransactionStore(),
		}, nil

	case config.StoreRedis:
		if a.redis == nil {
			return nil, fmt.Errorf("store driver %q requires redis", config.StoreRedis)
		}
		prefix := a.config.Redis.KeyPrefix
		return &stores{
			sessions:     redisstore.NewSessionStore(a.redis, prefix),
			transactions: redisstore.NewTransactionStore(a.redis, prefix),
		}, nil

	case config.StorePostgres:
		if a.db == nil {
			return nil, fmt.Errorf("store driver %q requires a database", config.StorePostgres)
		}
		if a.config.Database.AutoMigrate {
			if err := postgres.AutoMigrate(a.db); err != nil {
				return nil, fmt.Errorf("migrate database: %w", err)
			}
		}
		return &stores{
			sessions:     postgres.NewSessionStore(a.db),
			transactions: postgres.NewTransactionStore(a.db),
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", a.config.Store.Driver)
	}
}

func (a *App) buildGateway() payment.SettlementGateway {
	cfg := &a.config.Settlement

	var gw payment.SettlementGateway
	switch cfg.Gateway {
	case config.GatewayHTTP:
		gw = gateway.NewHTTP(cfg.Endpoint, httpclient.New(a.config.HTTPClient))
	default:
		gw = gateway.NewSimulated(cfg.SuccessRate, nil)
	}

	if cfg.Breaker.Enabled {
		gw = gateway.NewBreaker(gw, breakerConfig(&cfg.Breaker), a.logger)
	}

	a.logger.Info("settlement gateway configured",
		zap.String("gateway", gw.Name()),
		zap.Bool("breaker", cfg.Breaker.Enabled))
	return gw
}
