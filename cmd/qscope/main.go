// qscope - floor mapping and value analysis for quest script assembly
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"

	"github.com/chazu/questscope/area"
	"github.com/chazu/questscope/asm"
	"github.com/chazu/questscope/flow"
	"github.com/chazu/questscope/manifest"
	"github.com/chazu/questscope/quest"
	"github.com/chazu/questscope/server"
	"github.com/chazu/questscope/store"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	blocks := flag.Bool("blocks", false, "Print the control flow graph instead of floor mappings")
	disasm := flag.Bool("disasm", false, "Print the assembled listing with stack arguments expanded")
	query := flag.String("query", "", "Print the values of a register or stack slot (LINE:rN or LINE:sN)")
	output := flag.String("o", "", "Write the report as CBOR to this file")
	noCache := flag.Bool("no-cache", false, "Bypass the report cache")
	lspMode := flag.Bool("lsp", false, "Start language server on stdio")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: qscope [options] <file.qasm>\n\n")
		fmt.Fprintf(os.Stderr, "Extracts the floor-to-area mapping of a quest script.\n")
		fmt.Fprintf(os.Stderr, "Settings are read from the nearest %s.\n\n", manifest.FileName)
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  qscope quest.qasm               # Print floor mappings\n")
		fmt.Fprintf(os.Stderr, "  qscope -blocks quest.qasm       # Print basic blocks\n")
		fmt.Fprintf(os.Stderr, "  qscope -disasm quest.qasm       # Print expanded listing\n")
		fmt.Fprintf(os.Stderr, "  qscope -query 42:r10 quest.qasm # Values of r10 before line 42\n")
		fmt.Fprintf(os.Stderr, "  qscope -query 42:s0 quest.qasm  # Top stack argument before line 42\n")
		fmt.Fprintf(os.Stderr, "  qscope -lsp                     # Start language server\n")
	}
	flag.Parse()

	m, err := loadManifest()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	verbosity := m.Log.Verbosity
	if *verbose && verbosity < 2 {
		verbosity = 2
	}
	commonlog.Configure(verbosity, m.LogFile())
	log := commonlog.GetLogger("questscope")

	if *lspMode {
		if err := server.NewLSP(m.QuestOptions()).Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	segments, err := asm.Assemble(string(src))
	if err != nil {
		var list asm.ErrorList
		if errors.As(err, &list) {
			for _, e := range list {
				fmt.Fprintf(os.Stderr, "%s:%s\n", path, e)
			}
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
	log.Debugf("assembled %s: %d segments", path, len(segments))

	switch {
	case *disasm:
		fmt.Print(asm.Format(segments))
		os.Exit(0)
	case *blocks:
		fmt.Print(flow.Build(segments).String())
		os.Exit(0)
	case *query != "":
		q, err := parseQuery(*query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}
		out, err := q.run(segments, m, log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(out)
		os.Exit(0)
	}

	report, err := analyze(segments, m, !*noCache, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for _, d := range report.Diagnostics {
		fmt.Fprintf(os.Stderr, "%s: %s\n", path, d)
	}
	printReport(report)

	if *output != "" {
		data, err := quest.MarshalReport(report)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*output, data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if *verbose {
			fmt.Printf("Wrote %s (%d bytes)\n", *output, len(data))
		}
	}
}

// loadManifest finds questscope.toml from the working directory upward.
func loadManifest() (*manifest.Manifest, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	m, err := manifest.FindAndLoad(wd)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = manifest.Default(wd)
	}
	return m, nil
}

// analyze extracts the report, consulting the cache when it is enabled.
// Cache failures are logged and fall back to a fresh analysis.
func analyze(segments []*asm.Segment, m *manifest.Manifest, useCache bool, log commonlog.Logger) (*quest.Report, error) {
	opts := m.QuestOptions()
	if !useCache || !m.Cache.Enabled {
		return quest.Analyze(segments, nil, opts), nil
	}

	fp, err := store.Fingerprint(segments, opts)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(m.CachePath())
	if err != nil {
		log.Warningf("report cache unavailable: %s", err)
		return quest.Analyze(segments, nil, opts), nil
	}
	defer st.Close()

	report, err := st.Get(fp)
	if err == nil {
		log.Debugf("cache hit %016x", fp)
		return report, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		log.Warningf("reading report cache: %s", err)
	}

	report = quest.Analyze(segments, nil, opts)
	if err := st.Put(fp, report); err != nil {
		log.Warningf("writing report cache: %s", err)
	}
	return report, nil
}

func printReport(r *quest.Report) {
	fmt.Printf("Episode: %s\n", r.Episode)
	if len(r.Floors) == 0 {
		fmt.Println("No floor mappings found")
		return
	}
	for _, f := range r.Floors {
		name := "?"
		if a, ok := area.ByIndex(r.Episode, f.Area); ok {
			name = a.Name
		}
		fmt.Printf("  floor %2d -> area %2d variant %d  %s\n", f.Floor, f.Area, f.Variant, name)
	}
}
