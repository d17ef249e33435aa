package config

import "fmt"

// Addresses resolves the listener endpoints from the build section.
type Addresses struct {
	host          string
	servicePort   int
	grpcUIPort    int
	webSocketPort int
}

// NewAddresses derives the bound endpoints from cfg.
func NewAddresses(cfg *Config) *Addresses {
	return &Addresses{
		host:          cfg.Build.Host,
		servicePort:   cfg.Build.ServicePort,
		grpcUIPort:    cfg.Build.GrpcUIPort,
		webSocketPort: cfg.Build.WebSocketPort,
	}
}

// ServiceAddr is the request-reply listener address.
func (a *Addresses) ServiceAddr() string {
	return fmt.Sprintf("%s:%d", a.host, a.servicePort)
}

// GrpcUIAddr is the introspection UI address reported by the grpcui command.
func (a *Addresses) GrpcUIAddr() string {
	return fmt.Sprintf("%s:%d", a.host, a.grpcUIPort)
}

// WebSocketAddr is the live-edit listener address.
func (a *Addresses) WebSocketAddr() string {
	return fmt.Sprintf("%s:%d", a.host, a.webSocketPort)
}

// AllPorts lists the configured service, introspection UI and live-edit
// ports, in the order they are freed at shutdown.
func (a *Addresses) AllPorts() []int {
	return []int{a.servicePort, a.grpcUIPort, a.webSocketPort}
}
