package backend

import (
	"context"
	"fmt"

	"trackme/internal/amqp"
	applog "trackme/internal/log"
	"trackme/internal/store"
	"trackme/internal/store/memory"
	"trackme/internal/store/postgres"
	"trackme/internal/store/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
	// dialAMQP is replaced in tests.
	dialAMQP func(url, exchange, queue string, logger *applog.Logger) (Publisher, error)
}

func NewFactory(logger *applog.Logger) *DefaultFactory {
	if logger == nil {
		logger = applog.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(applog.ComponentBackend),
		dialAMQP: func(url, exchange, queue string, logger *applog.Logger) (Publisher, error) {
			return amqp.NewClient(url, exchange, queue, logger)
		},
	}
}

// CreateBackend opens the configured store and, when AMQP is configured,
// wraps it so that every write is announced on the change queue. A broker
// that cannot be reached only disables publishing.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		st  store.DocumentStore
		err error
	)
	switch config.Type {
	case MemoryBackend:
		st = memory.New()
	case SQLiteBackend:
		st, err = sqlite.New(config.SQLiteDBPath, f.logger)
	case PostgresBackend:
		st, err = postgres.New(ctx, config.DatabaseURL, f.logger)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s store: %w", config.Type, err)
	}

	result := &BackendResult{Store: st, Cleanup: st.Close}

	if config.AMQPURL != "" {
		pub, err := f.dialAMQP(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without change publishing", applog.FieldError, err)
		} else {
			ps := NewPublishingStore(st, pub, f.logger)
			result.Store = ps
			result.Cleanup = ps.Close
			result.Publishing = true
		}
	}

	f.logger.Info("Initialized backend", "type", config.Type, "publishing", result.Publishing)
	return result, nil
}
