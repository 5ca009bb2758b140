package cacheapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dekarrin/gentab/internal/project"
)

// Server wraps API with an http.Server ready to listen, the same thin
// wrapper shape the teacher uses over its own API struct.
type Server struct {
	api API
	srv *http.Server
}

// NewServer opens storeFile as a sqlite-backed Store and wires it into a
// Server bound to addr, ready for ListenAndServe.
func NewServer(addr, storeFile string, secret []byte, opts project.Options) (*Server, error) {
	store, err := NewSQLiteStore(storeFile)
	if err != nil {
		return nil, err
	}

	api := API{
		Store:       store,
		Secret:      secret,
		UnauthDelay: time.Second,
		Opts:        opts,
	}

	return &Server{
		api: api,
		srv: &http.Server{
			Addr:    addr,
			Handler: api.Router(),
		},
	}, nil
}

// RegisterOwner hashes key with bcrypt and stores it as owner's credential,
// for provisioning an API caller before they can /login.
func (s *Server) RegisterOwner(ctx context.Context, owner, key string) error {
	hash, err := hashAPIKey(key)
	if err != nil {
		return err
	}
	_, err = s.api.Store.CreateAPIKey(ctx, owner, hash)
	return err
}

// ListenAndServe runs the HTTP server until it errors or is shut down.
func (s *Server) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

// Shutdown gracefully stops the server and closes the underlying store.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return err
	}
	return s.api.Store.Close()
}
