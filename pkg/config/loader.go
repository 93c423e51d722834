package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load parses environment variables into cfg using its `env` tags.
//
//	type Config struct {
//	    Port         int           `env:"CART_HTTP_PORT" envDefault:"8003"`
//	    StockTimeout time.Duration `env:"INVENTORY_TIMEOUT" envDefault:"5s"`
//	}
func Load(cfg any) error {
	return LoadWithPrefix(cfg, "")
}

// LoadWithPrefix is like Load but every variable name is looked up with the
// given prefix, e.g. "SHOPCART_" turns CART_HTTP_PORT into
// SHOPCART_CART_HTTP_PORT.
func LoadWithPrefix(cfg any, prefix string) error {
	opts := env.Options{Prefix: prefix}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
