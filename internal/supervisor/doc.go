// Stellar Spire - Story Recommendation Service
// Copyright 2026 The Stellar Spire Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/carlulsoe/stellar-spire

/*
Package supervisor runs the long-lived services under a suture v4 tree.

	stellar-spire
	├── data-layer
	│   ├── PopularityWarmService (when Redis counters are enabled)
	│   └── BackfillService       (cron-scheduled embedding backfill)
	└── api-layer
	    └── HTTPServerService

Crashed services restart with suture's backoff; supervisor events are logged
through sutureslog, which writes to zerolog via logging.NewSlogHandler.

	tree, err := supervisor.NewSupervisorTree(slog.New(logging.NewSlogHandler(logger)), supervisor.DefaultTreeConfig())
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second, logger))
	tree.AddDataService(backfill)
	err = tree.Serve(ctx)

Service wrappers live in the services subpackage.
*/
package supervisor
