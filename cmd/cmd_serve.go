package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/getlantern/external-ip/auth"
	"github.com/getlantern/external-ip/common"
	"github.com/getlantern/external-ip/consensus"
)

const ClientTokenExpiration = 30 * 24 * time.Hour

type ServeCmd struct {
	serverConfig *common.ServerConfig
	monitor      *consensus.Monitor
}

func (c *ServeCmd) readConfig() error {
	var err error
	c.serverConfig, err = common.ReadServerConfig(args.DataDir)
	if err != nil {
		log.Debug("no usable server config, generating one", "err", err)
		c.serverConfig, err = common.GenerateServerConfig(args.DataDir, 0)
		if err != nil {
			return fmt.Errorf("failed to init server: %w", err)
		}
	}
	return nil
}

func (c *ServeCmd) Run() error {
	if err := c.readConfig(); err != nil {
		return err
	}
	registry, opts, err := lookupSources()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	host, err := common.GetPublicIP(ctx, registry, opts)
	if err != nil {
		log.Warnf("Unable to determine public IP for the certificate: %v", err)
		host = "localhost"
	}
	printAdminToken(c.serverConfig, host)

	c.monitor = newMonitor(registry, opts, c.serverConfig.Refresh())
	go c.monitor.Run(ctx)

	return auth.ListenAndServeTLS(ctx, fmt.Sprintf(":%d", c.serverConfig.Port), host, c.routes())
}

func (c *ServeCmd) routes() http.Handler {
	secret := c.serverConfig.HMACSecret
	srv := http.NewServeMux()
	srv.Handle("GET /api/v1/health", http.HandlerFunc(c.healthCheckHandler))
	srv.Handle("GET /api/v1/ip", auth.Middleware(secret, http.HandlerFunc(c.getIPHandler)))
	srv.Handle("GET /api/v1/token/{name}", auth.Middleware(secret, auth.AdminOnly(http.HandlerFunc(c.getTokenHandler))))
	return srv
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("failed to write response: %v", err)
	}
}

func (c *ServeCmd) getIPHandler(w http.ResponseWriter, r *http.Request) {
	latest, ok := c.monitor.Latest()
	if !ok {
		http.Error(w, "external address not determined yet", http.StatusServiceUnavailable)
		return
	}
	log.Debug("serving external address", "client", auth.GetRequestSubject(r), "consensus", latest)
	writeJSON(w, http.StatusOK, latest)
}

func (c *ServeCmd) getTokenHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == auth.AdminSubject {
		http.Error(w, "reserved name", http.StatusBadRequest)
		return
	}
	token, err := auth.GenerateAccessToken(c.serverConfig.HMACSecret, name, time.Now().Add(ClientTokenExpiration))
	if err != nil {
		log.Errorf("failed to generate access token: %v", err)
		http.Error(w, "failed to generate access token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (c *ServeCmd) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
