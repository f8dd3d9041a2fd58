package model

import (
	"net"
	"strconv"
)

// ServiceConfig is what a node declares about one service it serves.
type ServiceConfig struct {
	Network string `json:"network,omitempty" yaml:"network,omitempty"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
	Scheme  string `json:"scheme,omitempty" yaml:"scheme,omitempty"`
	Port    int    `json:"port,omitempty" yaml:"port,omitempty"`
	Host    string `json:"host,omitempty" yaml:"host,omitempty"`
	URI     string `json:"uri,omitempty" yaml:"uri,omitempty"` // authoritative over host/scheme/port/path when set
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Endpoint describes where a service binds or can be reached.
type Endpoint struct {
	Host    string `json:"host,omitempty"`
	Port    int    `json:"port,omitempty"`
	Scheme  string `json:"scheme,omitempty"`
	Path    string `json:"path,omitempty"`
	URI     string `json:"uri,omitempty"`
	Network string `json:"network,omitempty"`
	Name    string `json:"name,omitempty"`
}

// IsEmpty reports whether nothing has been resolved into e.
func (e *Endpoint) IsEmpty() bool {
	return e == nil || *e == Endpoint{}
}

// ComposeURI builds scheme://host:port/path from the individual parts.
func (e *Endpoint) ComposeURI() string {
	return e.Scheme + "://" + net.JoinHostPort(e.Host, strconv.Itoa(e.Port)) + e.Path
}

// DatabaseConnection is what a client needs to reach a managed database.
type DatabaseConnection struct {
	Host      string `json:"host"`
	Port      int    `json:"port,omitempty"`
	Username  string `json:"username"`
	Password  string `json:"-"`
	Unmanaged bool   `json:"unmanaged,omitempty"`
}
