package config

import "net"

type ServerConfig struct {
	Port        string `mapstructure:"port"`
	LiveEnabled bool   `mapstructure:"live_enabled"` // serve /ws/live
}

// Addr is the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort("", s.Port)
}
