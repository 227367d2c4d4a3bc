// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package backend provides a standard way to construct an upload handle
// store based on command-line flags.
package backend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/diffeo/go-visionclient/postgres"
	"github.com/diffeo/go-visionclient/redisstore"
	"github.com/diffeo/go-visionclient/store"
)

// Backend describes user-visible parameters to store upload handles.
// This implements the flag.Value interface, and so a typical use is
//
//     func main() {
//         backend := backend.Backend{"file", "uploads.yaml"}
//         flag.Var(&backend, "store", "impl:address of upload handle storage")
//         flag.Parse()
//         store, err := backend.Store()
//     }
//
// The implementations are:
//
//     none                 do not save handles
//     memory               save handles for the life of the process
//     file:path            a YAML file
//     postgres:connection  a PostgreSQL database
//     redis:address        a Redis server, host:port or a redis:// URL
type Backend struct {
	// Implementation holds the name of the implementation; for
	// instance, "memory".
	Implementation string

	// Address holds some backend-specific address, such as a
	// database connect string.
	Address string
}

var implementations = map[string]bool{
	"none":     true,
	"memory":   true,
	"file":     true,
	"postgres": true,
	"redis":    true,
}

// Store creates a new store.  This generally should be only called
// once.  If the backend has in-process state, such as a database
// connection pool or an in-memory store, calling this multiple times
// will create multiple copies of that state.
//
// If b.Implementation is "none", returns a nil store and no error.
func (b *Backend) Store() (store.Store, error) {
	switch b.Implementation {
	case "none", "":
		return nil, nil
	case "memory":
		return store.NewMemory(), nil
	case "file":
		if b.Address == "" {
			return nil, errors.New("file store requires a path")
		}
		return store.NewFile(b.Address), nil
	case "postgres":
		return postgres.New(b.Address)
	case "redis":
		return redisstore.New(b.Address)
	default:
		return nil, fmt.Errorf("unknown store backend %q", b.Implementation)
	}
}

// String renders a backend description as a string.
func (b *Backend) String() string {
	if b.Address == "" {
		return b.Implementation
	}
	return b.Implementation + ":" + b.Address
}

// Set parses a string into an existing backend description.  The
// string should be of the form "implementation:address", where
// address can be any string.  Set checks to see if the provided
// implementation is any of the known implementations, and returns an
// appropriate error if not.
//
// This is part of the flag.Value interface.  Note that neither Set nor
// String attempts to validate the b.Address part of the string or
// attempts to actually make a connection.
func (b *Backend) Set(param string) error {
	if param == "" {
		return errors.New("must specify a backend type")
	}
	parts := strings.SplitN(param, ":", 2)
	if !implementations[parts[0]] {
		return fmt.Errorf("unknown store backend %q", parts[0])
	}
	b.Implementation = parts[0]
	b.Address = ""
	if len(parts) == 2 {
		b.Address = parts[1]
	}
	return nil
}
