package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Hallelua/Blind-adaptive-echo-cancellation-final/internal/pipeline"
	"github.com/Hallelua/Blind-adaptive-echo-cancellation-final/internal/store"
	"github.com/Hallelua/Blind-adaptive-echo-cancellation-final/internal/wav"
)

// RunCLI handles subcommand execution. Returns true if a subcommand was handled.
func RunCLI(args []string, dbPath string) bool {
	if len(args) == 0 {
		return false
	}

	subcmd := args[0]
	switch subcmd {
	case "version":
		fmt.Printf("echocancel server %s\n", Version)
		return true
	case "status":
		return cliStatus(dbPath)
	case "jobs":
		return cliJobs(dbPath)
	case "process":
		return cliProcess(args[1:])
	default:
		return false
	}
}

func cliStatus(dbPath string) bool {
	st, err := store.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	n, err := st.JobCount(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Database: %s\n", dbPath)
	fmt.Printf("Jobs: %d\n", n)
	fmt.Printf("Version: %s\n", Version)
	return true
}

func cliJobs(dbPath string) bool {
	st, err := store.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	jobs, err := st.RecentJobs(context.Background(), maxJobsListed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if len(jobs) == 0 {
		fmt.Println("No jobs found.")
		return true
	}
	for _, j := range jobs {
		fmt.Printf("  %s  %-14s  %8d samples  erle=%6.2f dB  latency=%7.2f ms  %s\n",
			j.ID, j.Op, j.NumSamples, j.ERLE, j.LatencyMs,
			j.CreatedAt.Local().Format(time.DateTime))
	}
	return true
}

// cliProcess runs one operation over a WAV file without starting the server.
func cliProcess(args []string) bool {
	if len(args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: echocancel process <add_echo|remove_echo|noise_and_echo> <in.wav> <out.wav>\n")
		os.Exit(1)
	}
	op := pipeline.Op(args[0])
	if !op.Valid() {
		fmt.Fprintf(os.Stderr, "unknown operation %q\n", args[0])
		os.Exit(1)
	}

	in, err := os.Open(args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening input: %v\n", err)
		os.Exit(1)
	}
	defer in.Close()

	signal, sampleRate, err := wav.Decode(in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error decoding wav: %v\n", err)
		os.Exit(1)
	}

	params := pipeline.DefaultParams()
	params.SampleRate = sampleRate
	proc := pipeline.New(params.Normalized())

	processed, rep, err := proc.Run(op, signal)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error processing: %v\n", err)
		os.Exit(1)
	}

	out, err := os.Create(args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating output: %v\n", err)
		os.Exit(1)
	}
	defer out.Close()

	if err := wav.Encode(out, processed, sampleRate); err != nil {
		fmt.Fprintf(os.Stderr, "error encoding wav: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Processed %d samples (%s, %d Hz) in %.2f ms\n",
		len(signal), op, sampleRate, float64(rep.Latency)/float64(time.Millisecond))
	if rep.HasERLE {
		fmt.Printf("ERLE: %.2f dB\n", rep.ERLE)
	}
	if rep.HasREA {
		fmt.Printf("REA:  %.2f dB\n", rep.REA)
	}
	if rep.HasSNR {
		fmt.Printf("SNR:  %.2f dB\n", rep.SNR)
	}
	if rep.HasConvergence {
		fmt.Printf("Convergence: %.2f ms\n", float64(rep.Convergence)/float64(time.Millisecond))
	}
	return true
}
