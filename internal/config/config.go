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

// Package config loads the process-wide TOML configuration: the app
// listener, Redis session store, MySQL key store, logging and metrics
// settings. Config is initialized once at startup by
// the program entrypoint and is read-only thereafter.
package config

import "time"

// Config mirrors the [app]/[redis]/[mysql]/[logging]/[metrics] TOML tables.
type Config struct {
	App     AppConfig     `toml:"app"`
	Redis   RedisConfig   `toml:"redis"`
	MySQL   MySQLConfig   `toml:"mysql"`
	Logging LoggingConfig `toml:"logging"`
	Metrics MetricsConfig `toml:"metrics"`
}

// Duration wraps time.Duration so TOML values like "60s" decode through
// encoding.TextUnmarshaler.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// AppConfig holds the handshake listener's own settings.
type AppConfig struct {
	Addr           string `toml:"addr"`
	PKCS12Password string `toml:"pkcs12_password"`
	TLSCert        string `toml:"tls_cert"`
	TLSKey         string `toml:"tls_key"`
}

// RedisConfig configures the SessionStore backend. A URL of "memory"
// selects the in-memory Store instead of dialing Redis, for local
// development.
type RedisConfig struct {
	URL        string   `toml:"url"`
	AuthPasswd string   `toml:"auth_passwd"`
	SessionTTL Duration `toml:"session_ttl"`
}

// MySQLConfig configures the KeyStore backend.
type MySQLConfig struct {
	Host   string `toml:"host"`
	Port   int    `toml:"port"`
	User   string `toml:"user"`
	Passwd string `toml:"passwd"`
	DBName string `toml:"dbname"`
}

// LoggingConfig configures internal/logger's level and output format.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig configures the optional health/metrics HTTP listener.
// Addr == "" disables it.
type MetricsConfig struct {
	Addr string `toml:"addr"`
}

// Default returns the built-in configuration a bare `stserverd serve`
// runs with.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Addr:           "0.0.0.0:4433",
			PKCS12Password: "123456",
		},
		Redis: RedisConfig{
			URL:        "redis://127.0.0.1:6379/0",
			SessionTTL: Duration{60 * time.Second},
		},
		MySQL: MySQLConfig{
			Host:   "127.0.0.1",
			Port:   3306,
			User:   "stserver",
			DBName: "stserver",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9090",
		},
	}
}
