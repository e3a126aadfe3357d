package witsml

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var (
	globalEnv     Environment
	globalEnvLock sync.RWMutex
)

// GetEnvironment returns the global application level environment. This
// implementation is thread safe, but must be configured before use.
//
// In general you should call this operation once per process execution and
// pass the Environment interface through your application like a context,
// although model packages access the global environment for their database
// handle.
func GetEnvironment() Environment {
	globalEnvLock.RLock()
	defer globalEnvLock.RUnlock()

	return globalEnv
}

func SetEnvironment(env Environment) {
	globalEnvLock.Lock()
	defer globalEnvLock.Unlock()

	globalEnv = env
}

// Environment provides application-level services during runtime: the
// process settings and handles to the backing document store.
type Environment interface {
	// Settings returns the settings the environment was built with.
	Settings() *Settings

	// Client returns the connected document store client.
	Client() *mongo.Client

	// DB returns the application database.
	DB() *mongo.Database
}

// NewEnvironment constructs an Environment instance from the given settings,
// connecting to the document store and verifying the connection.
func NewEnvironment(ctx context.Context, settings *Settings) (Environment, error) {
	if err := settings.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating settings")
	}

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(settings.Database.URL))
	if err != nil {
		return nil, errors.Wrap(err, "connecting to the document store")
	}
	if err = client.Ping(connectCtx, readpref.Primary()); err != nil {
		return nil, errors.Wrap(err, "pinging the document store")
	}

	return &envState{
		settings: settings,
		client:   client,
	}, nil
}

type envState struct {
	settings *Settings
	client   *mongo.Client
}

func (e *envState) Settings() *Settings   { return e.settings }
func (e *envState) Client() *mongo.Client { return e.client }

func (e *envState) DB() *mongo.Database {
	return e.client.Database(e.settings.Database.DB)
}
