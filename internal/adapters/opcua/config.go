package opcua

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gopcua/opcua/ua"
)

// Config captures the runtime details required to open and keep an OPC UA session.
type Config struct {
	ServerURL       string `yaml:"server_url"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	SecurityMode    string `yaml:"security_mode"`
	SecurityPolicy  string `yaml:"security_policy"`
	CertificateFile string `yaml:"certificate_file"`
	PrivateKeyFile  string `yaml:"private_key_file"`
	ApplicationName string `yaml:"application_name"`

	ConnectTimeout    time.Duration `yaml:"connect_timeout"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	SessionTimeout    time.Duration `yaml:"session_timeout"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	KeepAliveInterval time.Duration `yaml:"keepalive_interval"`

	HistoryMaxValues    uint32        `yaml:"history_max_values"`
	HistoryMaxPages     int           `yaml:"history_max_pages"`
	HistoryReturnBounds *bool         `yaml:"history_return_bounds"`
	HistoryRetryDelay   time.Duration `yaml:"history_retry_delay"`
}

func (c *Config) ApplyDefaults() {
	if c.SecurityMode == "" {
		c.SecurityMode = "None"
	}
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = "None"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "OPC UA Client"
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 30 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 15 * time.Second
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = 60 * time.Second
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 5 * time.Second
	}
	if c.KeepAliveInterval <= 0 {
		c.KeepAliveInterval = 10 * time.Second
	}
	if c.HistoryMaxValues == 0 {
		c.HistoryMaxValues = 200
	}
	if c.HistoryMaxPages <= 0 {
		c.HistoryMaxPages = 1000
	}
	if c.HistoryReturnBounds == nil {
		bounds := true
		c.HistoryReturnBounds = &bounds
	}
	if c.HistoryRetryDelay <= 0 {
		c.HistoryRetryDelay = time.Second
	}
}

func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return errors.New("server_url is required")
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("server_url: %w", err)
	}
	if u.Scheme != "opc.tcp" {
		return fmt.Errorf("server_url %q: scheme must be opc.tcp", c.ServerURL)
	}
	if normalizeSecurityPolicy(c.SecurityPolicy) != ua.SecurityPolicyURINone &&
		(c.CertificateFile == "" || c.PrivateKeyFile == "") {
		return fmt.Errorf("security_policy %s requires certificate_file and private_key_file", c.SecurityPolicy)
	}
	return nil
}

func (c *Config) returnBounds() bool {
	return c.HistoryReturnBounds == nil || *c.HistoryReturnBounds
}

func normalizeSecurityMode(mode string) ua.MessageSecurityMode {
	switch strings.ToLower(mode) {
	case "sign":
		return ua.MessageSecurityModeSign
	case "signandencrypt", "signencrypt", "sign_and_encrypt", "sign+encrypt":
		return ua.MessageSecurityModeSignAndEncrypt
	default:
		return ua.MessageSecurityModeNone
	}
}

const securityPolicyURIPrefix = "http://opcfoundation.org/UA/SecurityPolicy#"

func normalizeSecurityPolicy(policy string) string {
	if policy == "" || strings.EqualFold(policy, "none") {
		return ua.SecurityPolicyURINone
	}
	if strings.HasPrefix(policy, securityPolicyURIPrefix) {
		return policy
	}
	return securityPolicyURIPrefix + policy
}
