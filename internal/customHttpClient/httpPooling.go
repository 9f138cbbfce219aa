package customHttpClient

import (
	"net/http"
	"sync"
	"time"

	"github.com/akolanti/rightsbot/internal/config"
)

var customTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        config.MaxIdleConns,
	MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
	IdleConnTimeout:     config.IdleConnTimeout,
	ForceAttemptHTTP2:   true,
}

var (
	pooledClient *http.Client
	once         sync.Once
)

// GetPooledClient is shared by every hosted model client so they reuse connections
func GetPooledClient() *http.Client {
	once.Do(func() {
		pooledClient = &http.Client{
			Transport: customTransport,
			Timeout:   config.RAGRequestTimeout + 30*time.Second,
		}
	})
	return pooledClient
}
