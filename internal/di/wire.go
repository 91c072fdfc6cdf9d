//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"CoinPulse/pkg/server"
)

// InitializeApp builds the fully wired application.
func InitializeApp(configPath string) (*server.App, error) {
	wire.Build(ProviderSet)
	return nil, nil
}
