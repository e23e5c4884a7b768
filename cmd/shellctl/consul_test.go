package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	consulapi "github.com/hashicorp/consul/api"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func newConsulCatalog(t *testing.T, body string) *consulapi.Config {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/catalog/service/shellstream" || r.URL.Query().Get("tag") != "http" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Consul-Index", "1")
		w.Header().Set("X-Consul-LastContact", "0")
		w.Header().Set("X-Consul-KnownLeader", "true")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	config := consulapi.DefaultConfig()
	config.Address = strings.TrimPrefix(server.URL, "http://")
	config.Scheme = "http"
	config.Token = ""
	return config
}

func TestFindServer(t *testing.T) {
	t.Run("should use the service address", func(t *testing.T) {
		config := newConsulCatalog(t, `[{"Address":"10.0.0.1","ServiceAddress":"10.0.0.2","ServicePort":3000}]`)
		host, err := findServer(config, "shellstream", "http")
		require.NoError(t, err)
		require.Equal(t, "http://10.0.0.2:3000", host)
	})
	t.Run("should fall back on the node address", func(t *testing.T) {
		config := newConsulCatalog(t, `[{"Address":"10.0.0.1","ServiceAddress":"","ServicePort":3001}]`)
		host, err := findServer(config, "shellstream", "http")
		require.NoError(t, err)
		require.Equal(t, "http://10.0.0.1:3001", host)
	})
	t.Run("should fail when no instance is registered", func(t *testing.T) {
		config := newConsulCatalog(t, `[]`)
		_, err := findServer(config, "shellstream", "http")
		require.Error(t, err)
	})
}

func TestServerHost(t *testing.T) {
	config := viper.New()
	config.Set("host", "http://127.0.0.1:3000")
	host, err := serverHost(config)
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:3000", host)
}
