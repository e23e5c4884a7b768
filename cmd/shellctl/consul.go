package main

import (
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"strconv"

	consulapi "github.com/hashicorp/consul/api"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// findServer picks one of the instances of the name service registered in
// Consul with tag, and returns its HTTP URL.
func findServer(config *consulapi.Config, name, tag string) (string, error) {
	client, err := consulapi.NewClient(config)
	if err != nil {
		return "", err
	}
	services, _, err := client.Catalog().Service(name, tag, nil)
	if err != nil {
		return "", err
	}
	if len(services) == 0 {
		return "", errors.Errorf("no instance of service %q found in consul", name)
	}
	service := services[rand.Intn(len(services))]
	address := service.ServiceAddress
	if address == "" {
		address = service.Address
	}
	return fmt.Sprintf("http://%s", net.JoinHostPort(address, strconv.Itoa(service.ServicePort))), nil
}

func serverHost(config *viper.Viper) (string, error) {
	if !config.GetBool("use-consul") {
		return config.GetString("host"), nil
	}
	consulConfig := consulapi.DefaultConfig()
	consulConfig.HttpClient = http.DefaultClient
	return findServer(consulConfig, config.GetString("consul-service-name"), config.GetString("consul-service-tag"))
}

func mustClient(config *viper.Viper, l *zap.Logger) *client {
	host, err := serverHost(config)
	if err != nil {
		l.Fatal("failed to find shellstream server", zap.Error(err))
	}
	l.Debug("using shellstream server", zap.String("host", host))
	return newClient(host)
}
