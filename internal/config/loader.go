// STSERVER - SM2/SM3 Secure Channel Negotiation Server
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of STSERVER.
//
// STSERVER is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// STSERVER is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with STSERVER. If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads the TOML file at path over Default()'s values, loads a
// ".env" file from the working directory if present, and applies the STSERVER_* environment
// overrides. path == ""
// returns Default() with env overrides only, useful for tests and
// `config check` against no file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides layers STSERVER_* environment variables over the
// TOML-decoded config, highest priority, so secrets never need to be
// committed to the config file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STSERVER_APP_ADDR"); v != "" {
		cfg.App.Addr = v
	}
	if v := os.Getenv("STSERVER_PKCS12_PASSWORD"); v != "" {
		cfg.App.PKCS12Password = v
	}
	if v := os.Getenv("STSERVER_REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("STSERVER_REDIS_AUTH_PASSWD"); v != "" {
		cfg.Redis.AuthPasswd = v
	}
	if v := os.Getenv("STSERVER_MYSQL_HOST"); v != "" {
		cfg.MySQL.Host = v
	}
	if v := os.Getenv("STSERVER_MYSQL_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.MySQL.Port = p
		}
	}
	if v := os.Getenv("STSERVER_MYSQL_USER"); v != "" {
		cfg.MySQL.User = v
	}
	if v := os.Getenv("STSERVER_MYSQL_PASSWD"); v != "" {
		cfg.MySQL.Passwd = v
	}
	if v := os.Getenv("STSERVER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("STSERVER_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
}
