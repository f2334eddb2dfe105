package notificator

import (
	"context"
	"fmt"

	"food-marketplace/internal/common/logger"
	"food-marketplace/internal/config"
	"food-marketplace/internal/connections/rabbitmq"
	"food-marketplace/internal/microservices/notificator/service"
)

func Start(ctx context.Context, cfg config.RabbitMQConfig, lg *logger.Logger) error {
	rmqClient, err := rabbitmq.Dial(cfg)
	if err != nil {
		return fmt.Errorf("rabbitmq connect: %w", err)
	}
	defer rmqClient.Close()

	return service.NewNotificatorService(rmqClient, lg).Notify(ctx)
}
