package handlers

import (
	"context"

	"go.uber.org/zap"

	"resto-console/internal/config"
	"resto-console/internal/console"
	"resto-console/internal/order"
)

type ProductLister interface {
	Products(ctx context.Context) ([]order.Product, error)
}

type Handler struct {
	Logger   *zap.Logger
	Config   config.Config
	Sessions *console.Registry
	Catalog  ProductLister
}
