package main

import (
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/verte-zerg/typerace/internal/api"
	"github.com/verte-zerg/typerace/internal/bus"
	"github.com/verte-zerg/typerace/internal/model"
	"github.com/verte-zerg/typerace/internal/room"
	"github.com/verte-zerg/typerace/internal/words"
)

const (
	supplierLocal = "local"
	supplierHTTP  = "http"
	supplierNATS  = "nats"

	transportNATS = "nats"
)

// backend owns the remote clients shared by practice and rooms.
type backend struct {
	srv      model.ServerConfig
	api      *api.Client
	nc       *nats.Conn
	supplier words.Supplier
}

func newBackend(supplier, wordListPath string, srv model.ServerConfig) (*backend, error) {
	b := &backend{srv: srv, api: api.NewClient(srv.APIURL)}
	if srv.RequestTimeout > 0 {
		b.api.SetTimeout(srv.RequestTimeout)
	}

	switch supplier {
	case supplierHTTP:
		b.supplier = b.api
	case supplierNATS:
		nc, err := bus.Connect(srv.NATSURL)
		if err != nil {
			return nil, err
		}
		b.nc = nc
		b.supplier = words.NewNATSSupplier(nc)
	default:
		list := words.Default()
		if wordListPath != "" {
			loaded, err := words.LoadWords(wordListPath)
			if err != nil {
				return nil, fmt.Errorf("failed to load word list: %w", err)
			}
			list = loaded
		}
		b.supplier = words.NewLocalSupplier(list)
	}
	log.Debug().Str("supplier", supplier).Str("api", srv.APIURL).Msg("backend ready")
	return b, nil
}

// newTransport returns a fresh room transport for the configured protocol.
func (b *backend) newTransport() room.Transport {
	if b.srv.Transport == transportNATS {
		if b.nc != nil {
			return room.NewNATSTransportConn(b.nc)
		}
		return room.NewNATSTransport(b.srv.NATSURL)
	}
	return room.NewWebSocketTransport(b.srv.WSURL)
}

func (b *backend) Close() {
	if b.nc != nil {
		b.nc.Close()
	}
}
