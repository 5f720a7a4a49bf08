// Command conzonesim drives the ConZone device model from the command line:
// it loads a geometry config, opens one or more namespaces against a shared
// Device, replays a synthetic write/read workload across them concurrently,
// and optionally dumps a pprof latency profile of the run.
package main

import (
	"flag"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/dingcuiyu/conzone-go/internal/config"
	"github.com/dingcuiyu/conzone-go/internal/ftl"
	"github.com/dingcuiyu/conzone-go/internal/geom"
	"github.com/dingcuiyu/conzone-go/internal/logx"
	"github.com/dingcuiyu/conzone-go/internal/profile"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to a TOML geometry config (defaults to the compiled-in geometry)")
		dumpConfig  = flag.String("dump-config", "", "write the default config to this path and exit")
		logLevel    = flag.String("log-level", "info", "log level: panic|fatal|error|warn|info|debug|trace")
		nBlockNS    = flag.Int("block-ns", 1, "number of conzone_block namespaces to open")
		nZonedNS    = flag.Int("zoned-ns", 1, "number of conzone_zoned namespaces to open")
		zonesPerNS  = flag.Int("zones-per-ns", 4, "zones carved per zoned namespace")
		maxOpenZone = flag.Int("max-open-zones", 2, "max simultaneously open zones per zoned namespace")
		maxActZone  = flag.Int("max-active-zones", 2, "max simultaneously active zones per zoned namespace")
		lpnsPerNS   = flag.Int64("lpns-per-ns", 256, "logical pages each namespace writes during the run")
		profileOut  = flag.String("profile-out", "", "write a pprof latency profile to this path")
	)
	flag.Parse()

	if err := logx.SetLevel(*logLevel); err != nil {
		fmt.Fprintln(os.Stderr, "conzonesim:", err)
		os.Exit(1)
	}

	if *dumpConfig != "" {
		if err := runDumpConfig(*dumpConfig); err != nil {
			fmt.Fprintln(os.Stderr, "conzonesim:", err)
			os.Exit(1)
		}
		return
	}

	geo, err := loadGeometry(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "conzonesim:", err)
		os.Exit(1)
	}

	log := logx.New(os.Stderr)
	dev := ftl.NewDevice(geo, log)
	rec := profile.NewRecorder()

	var namespaces []*ftl.Namespace
	nsID := 0
	for i := 0; i < *nBlockNS; i++ {
		nsID++
		namespaces = append(namespaces, ftl.NewNamespace(nsID, ftl.Block, dev, 0, 0, 0))
	}
	for i := 0; i < *nZonedNS; i++ {
		nsID++
		namespaces = append(namespaces, ftl.NewNamespace(nsID, ftl.Zoned, dev, *zonesPerNS, *maxOpenZone, *maxActZone))
	}

	var g errgroup.Group
	for _, ns := range namespaces {
		ns := ns
		g.Go(func() error {
			return runWorkload(dev, ns, *lpnsPerNS, rec)
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintln(os.Stderr, "conzonesim:", err)
		os.Exit(1)
	}

	log.Info().Int("samples", rec.Len()).Msg("run complete")

	if *profileOut != "" {
		if err := writeProfile(*profileOut, rec); err != nil {
			fmt.Fprintln(os.Stderr, "conzonesim:", err)
			os.Exit(1)
		}
	}
}

func loadGeometry(path string) (*geom.Params, error) {
	if path == "" {
		return config.LoadDefault(), nil
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return config.Load(src)
}

func runDumpConfig(path string) error {
	out, err := config.MarshalDefault()
	if err != nil {
		return fmt.Errorf("marshaling default config: %w", err)
	}
	return os.WriteFile(path, out, 0o644)
}

// runWorkload writes lpns sequential logical pages through ns (one at a
// time, so a zoned namespace exercises its append path), flushes any
// buffered tail, reads every page back, and records each write/read
// completion latency under rec.
func runWorkload(dev *ftl.Device, ns *ftl.Namespace, lpns int64, rec *profile.Recorder) error {
	kind := ns.Kind.String()
	var lastCompletion int64
	for lpn := int64(0); lpn < lpns; lpn++ {
		isAppend := ns.Kind == ftl.Zoned
		before := lastCompletion
		_, completion, err := ns.Write(lastCompletion, lpn, 1, isAppend)
		if err != nil {
			return fmt.Errorf("namespace %d (%s): write lpn %d: %w", ns.ID, kind, lpn, err)
		}
		rec.Record("write:"+kind, completion-before)
		lastCompletion = completion

		dev.RunGC(lastCompletion, false)
	}
	if _, err := ns.Flush(lastCompletion); err != nil {
		return fmt.Errorf("namespace %d (%s): flush: %w", ns.ID, kind, err)
	}

	for lpn := int64(0); lpn < lpns; lpn++ {
		before := lastCompletion
		completion, err := ns.Read(lastCompletion, lpn)
		if err != nil {
			continue // page never landed (e.g. overwritten zone tail); not a run failure
		}
		rec.Record("read:"+kind, completion-before)
		lastCompletion = completion
	}
	return nil
}

func writeProfile(path string, rec *profile.Recorder) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating profile output: %w", err)
	}
	defer f.Close()
	if err := rec.WriteTo(f); err != nil {
		return fmt.Errorf("writing profile: %w", err)
	}
	return nil
}
