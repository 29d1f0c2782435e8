package app

import (
	"github.com/shopspring/decimal"
	"github.com/uniedit/checkout/internal/adapter/outbound/gateway"
	"github.com/uniedit/checkout/internal/adapter/outbound/kafka"
	"github.com/uniedit/checkout/internal/domain/checkout"
	"github.com/uniedit/checkout/internal/domain/payment"
	"github.com/uniedit/checkout/internal/domain/pricing"
	"github.com/uniedit/checkout/internal/infra/task"
	"github.com/uniedit/checkout/internal/shared/config"
)

// LoadConfig loads application configuration.
func LoadConfig() (*config.Config, error) {
	return config.Load()
}

func checkoutConfig(cfg *config.CheckoutConfig) checkout.Config {
	return checkout.Config{
		SessionTTL:      cfg.SessionTTL,
		SweepInterval:   cfg.SweepInterval,
		SweepBatchSize:  cfg.SweepBatchSize,
		DefaultCurrency: cfg.DefaultCurrency,
		Rules: pricing.Rules{
			TaxRate:                decimal.NewFromFloat(cfg.TaxRate),
			FreeShippingThreshold:  decimal.NewFromFloat(cfg.FreeShippingThreshold),
			FlatShippingFee:        decimal.NewFromFloat(cfg.FlatShippingFee),
			ExpeditedFreeThreshold: decimal.NewFromFloat(cfg.ExpeditedFreeThreshold),
		},
	}
}

func paymentConfig(cfg *config.SettlementConfig) payment.Config {
	return payment.Config{
		PaymentDelay: cfg.PaymentDelay,
		RefundDelay:  cfg.RefundDelay,
	}
}

func schedulerConfig(cfg *config.SettlementConfig) *task.Config {
	return &task.Config{
		Workers:    cfg.Workers,
		JobTimeout: cfg.JobTimeout,
	}
}

func breakerConfig(cfg *config.BreakerConfig) gateway.BreakerConfig {
	return gateway.BreakerConfig{
		FailureThreshold:    cfg.FailureThreshold,
		MaxHalfOpenRequests: cfg.MaxHalfOpenRequests,
		Interval:            cfg.Interval,
		Timeout:             cfg.Timeout,
	}
}

func kafkaConfig(cfg *config.KafkaConfig) kafka.Config {
	return kafka.Config{
		Brokers:      kafka.ParseBrokers(cfg.Brokers),
		Topic:        cfg.Topic,
		WriteTimeout: cfg.WriteTimeout,
		Async:        cfg.Async,
	}
}
