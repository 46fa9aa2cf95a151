package mocks

//go:generate mockgen -destination=./mock_evaluator.go -package=mocks github.com/rxtech-lab/moth-trading/internal/signal Evaluator
//go:generate mockgen -destination=./mock_provider.go -package=mocks github.com/rxtech-lab/moth-trading/pkg/marketdata/provider Provider
//go:generate mockgen -destination=./mock_datasource.go -package=mocks github.com/rxtech-lab/moth-trading/internal/backtest/engine/engine_v1/datasource DataSource
