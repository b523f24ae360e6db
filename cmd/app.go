package main

import (
	"context"
	"fmt"
	"log"

	"github.com/Shivanand-hulikatti/dorm-allocation/internal/allocation"
	"github.com/Shivanand-hulikatti/dorm-allocation/internal/catalog"
	"github.com/Shivanand-hulikatti/dorm-allocation/internal/config"
	"github.com/Shivanand-hulikatti/dorm-allocation/internal/database"
	"github.com/Shivanand-hulikatti/dorm-allocation/internal/repository"
	"github.com/Shivanand-hulikatti/dorm-allocation/internal/reservation"
	"github.com/Shivanand-hulikatti/dorm-allocation/internal/service"
)

// app is the wired service graph.
type app struct {
	service *service.DormService
	// overbooked lists days found over capacity while loading persisted data
	overbooked []*allocation.CapacityError
	close      func()
}

// newApp wires the layers for the configured storage backend. With
// Postgres it also applies the schema and loads every table into memory.
func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	limits := service.WithLimits(service.Limits{MaxStayDays: cfg.MaxStayDays, MaxQueryDays: cfg.MaxQueryDays})

	if cfg.Storage == config.StorageMemory {
		alloc := allocation.New(allocation.WithLogger(log.Default()))
		return &app{
			service: service.NewDormService(catalog.New(nil), alloc, reservation.New(alloc), limits),
			close:   func() {},
		}, nil
	}

	pool, err := database.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	repos := repository.New(pool)
	snap, err := repos.Load(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("load state: %w", err)
	}

	buildings := catalog.New(repos.Buildings)
	buildings.Restore(snap.Buildings)

	alloc := allocation.New(
		allocation.WithStore(repos.AllocationStore()),
		allocation.WithLogger(log.Default()),
	)
	over, err := alloc.Restore(snap.Rooms, snap.Assignments)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("rebuild ledger: %w", err)
	}

	workflow := reservation.New(alloc, reservation.WithStore(repos.Requests))
	workflow.Restore(snap.Requests)

	log.Printf("✓ Loaded %d buildings, %d rooms, %d assignments, %d requests",
		len(snap.Buildings), len(snap.Rooms), len(snap.Assignments), len(snap.Requests))

	return &app{
		service:    service.NewDormService(buildings, alloc, workflow, limits),
		overbooked: over,
		close:      pool.Close,
	}, nil
}
