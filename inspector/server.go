package inspector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/urfave/negroni"

	"github.com/afzaal-28/rn-inspector/hub"
	"github.com/afzaal-28/rn-inspector/metrics"
)

const readHeaderTimeout = 10 * time.Second

type healthResponse struct {
	OK                 bool                   `json:"ok"`
	ObserverChannelURL string                 `json:"observerChannelURL"`
	Channels           map[hub.Channel]string `json:"channels"`
}

// listen binds host:port and serves handler behind the recovery middleware.
// The bound address is returned so ephemeral ports can be reported.
func (i *Inspector) listen(name string, host string, port int, handler http.Handler) (net.Addr, error) {
	listener, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("failed to listen for %v: %w", name, err)
	}

	n := negroni.New()
	n.Use(negroni.NewRecovery())
	n.UseHandler(handler)

	srv := &http.Server{
		Handler:           n,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	i.serversMu.Lock()
	i.servers = append(i.servers, srv)
	i.serversMu.Unlock()

	i.logger.Infof("%v listening on: %v", name, listener.Addr())

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			i.logger.Errorf("%v server error: %v", name, err)
		}
	}()

	return listener.Addr(), nil
}

func (i *Inspector) startChannelServers() error {
	for _, ch := range hub.Channels {
		router := mux.NewRouter()
		router.HandleFunc(i.config.ChannelPath, i.hub.HandleWebSocket(ch))

		addr, err := i.listen(string(ch)+" channel", i.config.Host, i.config.ChannelPort(ch), router)
		if err != nil {
			return err
		}

		i.channelAddrs[ch] = addr.String()
	}

	return nil
}

func (i *Inspector) startHealthServer() error {
	router := mux.NewRouter()
	router.HandleFunc("/", i.handleHealth).Methods(http.MethodGet)

	addr, err := i.listen("health", i.config.Host, i.config.HealthPort, router)
	if err != nil {
		return err
	}

	i.healthAddr = addr.String()

	return nil
}

func (i *Inspector) startMetricsServer() error {
	if i.config.MetricsPort == 0 {
		return nil
	}

	_, err := i.listen("metrics", i.config.MetricsBind, i.config.MetricsPort, metrics.Handler())

	return err
}

func (i *Inspector) handleHealth(w http.ResponseWriter, _ *http.Request) {
	channels := make(map[hub.Channel]string, len(hub.Channels))
	for _, ch := range hub.Channels {
		channels[ch] = i.ChannelURL(ch)
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(&healthResponse{
		OK:                 true,
		ObserverChannelURL: i.ChannelURL(hub.ChannelConsole),
		Channels:           channels,
	}); err != nil {
		i.logger.Debugf("failed writing health response: %v", err)
	}
}

// ChannelURL is the websocket URL observers use for ch.
func (i *Inspector) ChannelURL(ch hub.Channel) string {
	return fmt.Sprintf("ws://%v%v", i.channelAddrs[ch], i.config.ChannelPath)
}

// HealthAddr is the bound address of the health endpoint.
func (i *Inspector) HealthAddr() string {
	return i.healthAddr
}

func (i *Inspector) shutdownServers(ctx context.Context) error {
	i.serversMu.Lock()
	servers := i.servers
	i.servers = nil
	i.serversMu.Unlock()

	var errs []error

	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
