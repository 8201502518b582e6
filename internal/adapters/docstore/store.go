// Package docstore keeps JSON array documents addressed by namespace and name.
//
// The engine treats it as a durable key to document map. Two backends exist:
// plain files under a root directory and a single SQLite table.
package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/okian/waypoint/pkg/logger"
)

// Key addresses one document.
type Key struct {
	Namespace string
	Name      string
}

func (k Key) String() string {
	return k.Namespace + "/" + k.Name
}

// ConfigKey addresses the variant document of an event type.
func ConfigKey(eventType string) Key {
	return Key{Namespace: "config", Name: eventType}
}

// PlayersNamespace holds one progress document per player of an event type.
func PlayersNamespace(eventType string) string {
	return "players/" + eventType
}

// PlayerKey addresses the progress document of one player.
func PlayerKey(eventType, player string) Key {
	return Key{Namespace: PlayersNamespace(eventType), Name: player}
}

// Store reads and writes whole documents.
type Store interface {
	// Load returns the document, or an empty array when none was saved.
	Load(ctx context.Context, key Key) (json.RawMessage, error)
	// Save replaces the whole document.
	Save(ctx context.Context, key Key, doc json.RawMessage) error
	// Keys lists document names in a namespace, sorted.
	Keys(ctx context.Context, namespace string) ([]string, error)
	Close() error
}

var emptyDocument = json.RawMessage("[]")

func validateKey(k Key) error {
	if err := validateNamespace(k.Namespace); err != nil {
		return err
	}
	if k.Name == "" || strings.ContainsAny(k.Name, `/\`) || k.Name == "." || k.Name == ".." {
		return fmt.Errorf("%w: name %q", ErrInvalidKey, k.Name)
	}
	return nil
}

func validateNamespace(ns string) error {
	if ns == "" || strings.Contains(ns, `\`) || path.IsAbs(ns) || path.Clean(ns) != ns || strings.HasPrefix(ns, "..") {
		return fmt.Errorf("%w: namespace %q", ErrInvalidKey, ns)
	}
	return nil
}

func validateDocument(doc json.RawMessage) error {
	var arr []json.RawMessage
	if err := json.Unmarshal(doc, &arr); err != nil {
		return fmt.Errorf("%w: document is not a JSON array: %w", ErrInvalidDocument, err)
	}
	return nil
}

// Option configures a backend.
type Option func(*options)

type options struct {
	log logger.Logger
}

// WithLogger sets the backend logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{log: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Backends accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Open builds the backend named by backend.
func Open(ctx context.Context, backend, dir, sqlitePath string, opts ...Option) (Store, error) {
	switch backend {
	case BackendFile, "":
		return NewFileStore(dir, opts...)
	case BackendSQLite:
		return NewSQLiteStore(ctx, sqlitePath, opts...)
	}
	return nil, fmt.Errorf("%w: unknown backend %q", ErrStorage, backend)
}
