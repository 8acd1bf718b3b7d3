package main

import (
	"github.com/charmbracelet/log"

	"github.com/getlantern/external-ip/common"
)

type InitCmd struct {
	Port int `arg:"--port" help:"API port (random when unset)"`
}

func (c InitCmd) Run() error {
	config, err := common.GenerateServerConfig(args.DataDir, c.Port)
	if err != nil {
		return err
	}
	printAdminToken(config, "<server-ip>")
	return nil
}

func printAdminToken(config *common.ServerConfig, host string) {
	log.Infof("Make sure that port %d is open", config.Port)
	log.Infof("Admin token:\n%s", config.AccessToken)
	log.Infof("Query the address with:\n%s", config.ServerURL(host))
}
