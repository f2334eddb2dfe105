package service

import (
	"food-marketplace/internal/microservices/order/repository"
)

type Service struct {
	OrderService OrderServiceInterface
}

func New(repo *repository.Repository, opts Options) *Service {
	return &Service{
		OrderService: NewOrderService(repo.OrderRepo, repo.CatalogRepo, opts),
	}
}
