package main

import "time"

// Operational defaults for the server binary.
const (
	// defaultWorkers is the size of the processing worker pool when the
	// -workers flag is not set. Processing is CPU-bound, so more workers
	// than cores buys nothing.
	defaultWorkers = 4

	// metricsInterval is how often the periodic metrics logger reports
	// service throughput.
	metricsInterval = 30 * time.Second

	// maxJobsListed is the maximum number of rows printed by the jobs
	// subcommand.
	maxJobsListed = 20
)
