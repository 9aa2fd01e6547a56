// Package config provides configuration types for the DRES client.
//
// A Configuration describes how to reach a DRES evaluation server and which
// user to authenticate as. It is persisted in dresapi.json inside the
// application data directory; credentials live separately in
// credentials.json (or the environment) and are never written back by this
// package.
package config

import (
	"strconv"
)

const (
	// ConfigFile is the file name of the persisted configuration.
	ConfigFile = "dresapi.json"

	// CredentialsFile is the file name of the operator-provided credentials.
	CredentialsFile = "credentials.json"

	// DefaultHost is the host used when no configuration overrides it.
	DefaultHost = "localhost"

	// DefaultPort is the port used when no configuration overrides it.
	DefaultPort = 8080
)

// Configuration holds the connection and authentication settings for DRES.
type Configuration struct {
	// Host is the DRES host address, an IP or a name.
	// Default: "localhost".
	Host string `json:"host" mapstructure:"host" validate:"required"`

	// Port is the DRES port.
	// Default: 8080.
	Port int `json:"port" mapstructure:"port" validate:"gte=0,lte=65535"`

	// TLS selects https instead of http.
	// Default: false.
	TLS bool `json:"tls" mapstructure:"tls"`

	// User is the DRES username. Optional in the file, required to log in.
	User string `json:"user,omitempty" mapstructure:"user"`

	// Password is the DRES password. Optional in the file, required to log in.
	Password string `json:"password,omitempty" mapstructure:"password"`
}

// Credentials is the standalone username/password pair stored in
// credentials.json. Created and handed out by the DRES operator.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Default returns the built-in configuration: localhost:8080 without TLS
// and without credentials.
func Default() *Configuration {
	return &Configuration{
		Host: DefaultHost,
		Port: DefaultPort,
		TLS:  false,
	}
}

// HasCredentials reports whether both user and password are set.
func (c *Configuration) HasCredentials() bool {
	return c.User != "" && c.Password != ""
}

// Endpoint returns the base URL of the DRES server, always in the form
// scheme://host:port/.
func (c *Configuration) Endpoint() string {
	scheme := "http://"
	if c.TLS {
		scheme = "https://"
	}
	return scheme + c.Host + ":" + strconv.Itoa(c.Port) + "/"
}

// Clone returns a copy of the configuration.
func (c *Configuration) Clone() *Configuration {
	cp := *c
	return &cp
}

// Redacted returns a copy that is safe to print or log: the password is
// masked when set.
func (c *Configuration) Redacted() *Configuration {
	cp := c.Clone()
	if cp.Password != "" {
		cp.Password = "********"
	}
	return cp
}
