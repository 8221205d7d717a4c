package main

import (
	"fmt"

	"github.com/coldforge/shepherd/internal/config"
	"github.com/coldforge/shepherd/internal/eventbus"
	objectstore "github.com/coldforge/shepherd/internal/objectStore"
	boltobjects "github.com/coldforge/shepherd/internal/objectStore/bolt"
	"github.com/coldforge/shepherd/internal/scheduler"
	"github.com/coldforge/shepherd/internal/scheduler/docker"
	secretstore "github.com/coldforge/shepherd/internal/secretStore"
	boltsecrets "github.com/coldforge/shepherd/internal/secretStore/bolt"
	"github.com/coldforge/shepherd/internal/shepherd"
	"github.com/coldforge/shepherd/internal/storage"
	"github.com/rs/zerolog/log"
)

// core wires every collaborator the run execution core needs from a resolved configuration,
// mirroring the reference service's own startup sequence (storage, object store, scheduler, then
// the core itself) but stopping short of standing up an HTTP/RPC surface.
func core(configPath string) (*shepherd.Shepherd, error) {
	conf, err := config.InitConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("could not load configuration: %w", err)
	}

	db, err := initStorage(conf.Database)
	if err != nil {
		return nil, fmt.Errorf("could not init storage: %w", err)
	}
	log.Info().Str("engine", "sqlite").Msg("storage engine initialized")

	objects, err := initObjectStore(conf.ObjectStore)
	if err != nil {
		return nil, fmt.Errorf("could not init object store: %w", err)
	}
	log.Info().Str("engine", conf.ObjectStore.Engine).Msg("object store engine initialized")

	secrets, err := initSecretStore(conf.SecretStore)
	if err != nil {
		return nil, fmt.Errorf("could not init secret store: %w", err)
	}
	log.Info().Str("engine", conf.SecretStore.Engine).Msg("secret store engine initialized")

	sched, err := initScheduler(conf.Scheduler)
	if err != nil {
		return nil, fmt.Errorf("could not init scheduler: %w", err)
	}
	log.Info().Str("engine", conf.Scheduler.Engine).Msg("scheduler engine initialized")

	bus := eventbus.New()

	return shepherd.New(db, objects, secrets, sched, bus, conf.Shepherd), nil
}

func initStorage(conf *config.Database) (storage.DB, error) {
	return storage.New(conf.Path, conf.MaxResultsLimit)
}

func initObjectStore(conf *config.ObjectStore) (objectstore.Engine, error) {
	switch conf.Engine {
	case "bolt":
		store, err := boltobjects.New(conf.BoltDB.Path)
		if err != nil {
			return nil, err
		}
		return &store, nil
	default:
		return nil, fmt.Errorf("object store backend %q not implemented", conf.Engine)
	}
}

func initSecretStore(conf *config.SecretStore) (secretstore.Engine, error) {
	switch conf.Engine {
	case "bolt":
		store, err := boltsecrets.New(conf.BoltDB.Path, conf.BoltDB.EncryptionKey)
		if err != nil {
			return nil, err
		}
		return &store, nil
	default:
		return nil, fmt.Errorf("secret store backend %q not implemented", conf.Engine)
	}
}

func initScheduler(conf *config.Scheduler) (scheduler.Engine, error) {
	switch conf.Engine {
	case "docker":
		engine, err := docker.New(conf.Docker.PruneInterval)
		if err != nil {
			return nil, err
		}
		return &engine, nil
	default:
		return nil, fmt.Errorf("scheduler backend %q not implemented", conf.Engine)
	}
}
