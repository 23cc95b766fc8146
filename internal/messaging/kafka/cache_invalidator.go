package kafka

import (
	"context"
	"fmt"
	"strconv"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/cache"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// NewCacheInvalidationHandler возвращает handler событий каталога, удаляющий товар из кэша.
// Нужен, когда несколько реплик делят один Redis, но инвалидацию выполнила только одна из них.
func NewCacheInvalidationHandler(productCache cache.ProductCache, logger *log.Entry) MessageHandler {
	if logger == nil {
		logger = log.WithField("component", "cache-invalidator")
	}

	return func(ctx context.Context, message *sarama.ConsumerMessage) error {
		envelope, err := ParseEnvelope(message)
		if err != nil {
			// Нераспознаваемое сообщение не станет валидным при повторе.
			logger.WithError(err).WithField("offset", message.Offset).Warn("skip malformed catalog event")
			return nil
		}
		if envelope.AggregateType != domain.AggregateProduct {
			return nil
		}

		id, err := strconv.ParseInt(envelope.AggregateID, 10, 64)
		if err != nil {
			logger.WithField("aggregate_id", envelope.AggregateID).Warn("skip catalog event with invalid product id")
			return nil
		}
		if envelope.EventType == domain.EventProductCreated {
			return nil
		}

		if err := productCache.Delete(ctx, id); err != nil {
			return fmt.Errorf("invalidate product %d: %w", id, err)
		}
		logger.WithFields(log.Fields{"product_id": id, "event_type": envelope.EventType}).Debug("product cache invalidated")
		return nil
	}
}
