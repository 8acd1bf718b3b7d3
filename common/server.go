package common

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"path"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sagernet/sing/common/json/badoption"
	"github.com/sethvargo/go-password/password"

	"github.com/getlantern/external-ip/auth"
)

const (
	serverConfigFile       = "server.json"
	DefaultRefreshInterval = 5 * time.Minute
)

var AdminExpirationTime = time.Date(2900, 1, 1, 0, 0, 0, 0, time.UTC)

type ServerConfig struct {
	Port            int                `json:"port"`
	AccessToken     string             `json:"access_token"`
	HMACSecret      []byte             `json:"hmac_secret"`
	RefreshInterval badoption.Duration `json:"refresh_interval,omitempty"`
}

// Refresh returns how often the served consensus is recomputed.
func (c *ServerConfig) Refresh() time.Duration {
	if c.RefreshInterval <= 0 {
		return DefaultRefreshInterval
	}
	return time.Duration(c.RefreshInterval)
}

func (c *ServerConfig) ServerURL(host string) string {
	return fmt.Sprintf("https://%s:%d/api/v1/ip?token=%s", host, c.Port, c.AccessToken)
}

func ReadServerConfig(dataDir string) (*ServerConfig, error) {
	data, err := os.ReadFile(path.Join(dataDir, serverConfigFile))
	if err != nil {
		return nil, err
	}
	var config ServerConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, err
	}
	if config.Port == 0 {
		return nil, fmt.Errorf("port not set")
	}
	if config.AccessToken == "" {
		return nil, fmt.Errorf("access token not set")
	}
	if len(config.HMACSecret) == 0 {
		return nil, fmt.Errorf("hmac secret not set")
	}
	return &config, nil
}

// GenerateServerConfig creates a config with a random port, secret and admin
// token and writes it to the data directory.
func GenerateServerConfig(dataDir string, port int) (*ServerConfig, error) {
	if port == 0 {
		// a valid non-privileged port
		port = rand.N(65535-1024) + 1024
	}
	hmacSecret, err := password.Generate(32, 10, 10, false, false)
	if err != nil {
		return nil, fmt.Errorf("failed to generate hmac secret: %w", err)
	}
	accessToken, err := auth.GenerateAccessToken([]byte(hmacSecret), auth.AdminSubject, AdminExpirationTime)
	if err != nil {
		return nil, err
	}
	conf := &ServerConfig{
		Port:            port,
		AccessToken:     accessToken,
		HMACSecret:      []byte(hmacSecret),
		RefreshInterval: badoption.Duration(DefaultRefreshInterval),
	}
	data, err := json.MarshalIndent(conf, "", "  ")
	if err != nil {
		return nil, err
	}
	log.Infof("Writing initial config to %s", serverConfigFile)
	return conf, os.WriteFile(path.Join(dataDir, serverConfigFile), data, 0600)
}
