// Package simulator wires components B through I into the single
// aggregate spec.md §9's design notes call for, replacing the source's
// process-wide globals with one owned unit the launcher constructs and
// runs.
package simulator

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
	"k8s.io/klog"

	"cwmpcpe/internal/auth"
	"cwmpcpe/internal/config"
	"cwmpcpe/internal/connreq"
	"cwmpcpe/internal/datamodel"
	"cwmpcpe/internal/download"
	"cwmpcpe/internal/session"
	"cwmpcpe/internal/transport"
)

// Simulator owns every component and the one session goroutine that
// drives them.
type Simulator struct {
	store   *datamodel.Store
	client  *transport.Client
	worker  *download.Worker
	engine  *session.Engine
	connReq *connreq.Server
}

// New builds a Simulator from cfg: seeds the parameter store, discovers
// the connection-request listener's local address, and wires the
// transport/download/session/connreq components together.
func New(cfg config.Config) (*Simulator, error) {
	identity := cfg.Identity()

	acsPort, err := portOf(cfg.ACSURL)
	if err != nil {
		return nil, errors.Wrap(err, "simulator: parse ACS URL")
	}

	localIP, err := connreq.DiscoverLocalAddress(cfg.ACSURL)
	if err != nil {
		return nil, errors.Wrap(err, "simulator: discover local address")
	}
	connReqURL := fmt.Sprintf("http://%s/connectionRequest", net.JoinHostPort(localIP, strconv.Itoa(acsPort+1)))

	store := datamodel.New(identity)
	store.Seed(datamodel.DefaultSeed(identity, connReqURL))

	if cfg.DataModelFile != "" {
		override, err := datamodel.LoadOverride(cfg.DataModelFile)
		if err != nil {
			return nil, errors.Wrapf(err, "simulator: load data-model override %s", cfg.DataModelFile)
		}
		store.Seed(override)
		klog.Infof("simulator: loaded data-model override from %s", cfg.DataModelFile)
	}

	applyCredentialOverride(store)

	client := transport.New(cfg.ACSURL, cfg.SessionTimeout)
	authState := &transport.AuthState{Credentials: auth.Credentials{
		Username: store.Identity().Username,
		Password: store.Identity().Password,
	}}

	worker := download.New(nil, cfg.DownloadTimeout)
	engine := session.New(store, client, worker, authState)
	worker.SetSink(engine)

	connReqServer := connreq.New(engine, store.Identity(), localIP, acsPort)

	return &Simulator{
		store:   store,
		client:  client,
		worker:  worker,
		engine:  engine,
		connReq: connReqServer,
	}, nil
}

// Run starts the connection-request listener and the session engine,
// blocking until ctx is cancelled or the listener fails.
func (s *Simulator) Run(ctx context.Context) error {
	listenErr := make(chan error, 1)
	go func() {
		listenErr <- s.connReq.ListenAndServe()
	}()

	go s.engine.Run(ctx)

	select {
	case <-ctx.Done():
		_ = s.connReq.Close()
		return nil
	case err := <-listenErr:
		return errors.Wrap(err, "simulator: connection-request listener")
	}
}

// applyCredentialOverride implements spec.md §6.3's rule that
// ManagementServer.Username/Password in the data model win over the
// launcher's defaults.
func applyCredentialOverride(store *datamodel.Store) {
	for _, root := range []string{"InternetGatewayDevice.", "Device."} {
		username := store.GetValue(root + "ManagementServer.Username")
		password := store.GetValue(root + "ManagementServer.Password")
		if username != "" || password != "" {
			id := store.Identity()
			if username == "" {
				username = id.Username
			}
			if password == "" {
				password = id.Password
			}
			store.SetIdentityCredentials(username, password)
			return
		}
	}
}

func portOf(rawURL string) (int, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, err
	}
	if p := u.Port(); p != "" {
		return strconv.Atoi(p)
	}
	if u.Scheme == "https" {
		return 443, nil
	}
	return 80, nil
}
