// Package main provides a command line tool for inspecting and exporting
// nuScenes-format datasets: "info" summarises a dataset version, "export"
// writes the metadata into a SQLite database.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/nuscenes-go/internal/sqlexport"
	"github.com/banshee-data/nuscenes-go/nuscenes"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: %s <command> [flags]

Commands:
  info      print a summary of a dataset version
  export    export the metadata tables into a SQLite database

Run "%s <command> -h" for command flags.
`, os.Args[0], os.Args[0])
	os.Exit(2)
}

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		usage()
	}
	switch os.Args[1] {
	case "info":
		runInfo(os.Args[2:])
	case "export":
		runExport(os.Args[2:])
	default:
		usage()
	}
}

func loadFlags(fs *flag.FlagSet) (version, dataroot *string, check *bool) {
	version = fs.String("version", "v1.0-mini", "dataset version directory name")
	dataroot = fs.String("dataroot", ".", "dataset root directory")
	check = fs.Bool("check", true, "verify referential and chain integrity while loading")
	return version, dataroot, check
}

func runInfo(args []string) {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	version, dataroot, check := loadFlags(fs)
	fs.Parse(args)

	d, err := nuscenes.Loader{Check: *check}.Load(*version, *dataroot)
	if err != nil {
		log.Fatalf("load dataset: %v", err)
	}

	fmt.Printf("dataset %s at %s\n", d.Version(), d.Dir())
	fmt.Printf("  scenes:             %d\n", len(d.Scenes()))
	fmt.Printf("  samples:            %d\n", len(d.Samples()))
	fmt.Printf("  sample annotations: %d\n", len(d.SampleAnnotations()))
	fmt.Printf("  sample data:        %d\n", len(d.SampleDatas()))
	fmt.Printf("  instances:          %d\n", len(d.Instances()))
	fmt.Printf("  ego poses:          %d\n", len(d.EgoPoses()))
	fmt.Printf("  logs:               %d\n", len(d.Logs()))
	fmt.Printf("  maps:               %d\n", len(d.Maps()))
	fmt.Println()

	for _, sc := range d.ScenesChrono() {
		samples := sc.Samples()
		first := samples[0].Timestamp
		last := samples[len(samples)-1].Timestamp
		fmt.Printf("%s  %-12s  %3d samples  %s  %s\n",
			sc.Token, sc.Name, len(samples),
			first.Format("2006-01-02 15:04:05"),
			last.Sub(first.Time))
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	version, dataroot, check := loadFlags(fs)
	dbPath := fs.String("db", "nuscenes.db", "path of the SQLite database to write")
	fs.Parse(args)

	d, err := nuscenes.Loader{Check: *check}.Load(*version, *dataroot)
	if err != nil {
		log.Fatalf("load dataset: %v", err)
	}

	db, err := sqlexport.Open(*dbPath)
	if err != nil {
		log.Fatalf("open export database: %v", err)
	}
	defer db.Close()

	runID, err := db.Export(d)
	if err != nil {
		log.Fatalf("export dataset: %v", err)
	}
	log.Printf("exported %s (%d samples) to %s as run %s", d.Version(), len(d.Samples()), *dbPath, runID)
}
