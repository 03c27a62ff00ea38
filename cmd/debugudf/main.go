package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/s0up4200/go-dvdread/internal/fs"
	"github.com/s0up4200/go-dvdread/internal/fs/udf"
	"github.com/s0up4200/go-dvdread/internal/ifo"
)

func main() {
	iso := flag.String("iso", "", "path to UDF ISO")
	flag.Parse()
	if *iso == "" {
		log.Fatal("-iso required")
	}

	r, err := udf.NewReader(*iso)
	if err != nil {
		log.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	fmt.Printf("label=%q partitionStart=%d fileSetLocation=%d\n", r.VolumeLabel(), r.PartitionStart(), r.FileSetLocation())

	root, err := r.ReadDir("/")
	if err != nil {
		fmt.Printf("ReadDir(/) err: %v\n", err)
		return
	}
	fmt.Printf("root entries (%d):\n", len(root))
	for _, f := range root {
		fmt.Printf("- %q dir=%t\n", f.Name, f.IsDir)
	}

	files, err := r.ReadDir("/VIDEO_TS")
	if err != nil {
		fmt.Printf("ReadDir(/VIDEO_TS) err: %v\n", err)
		return
	}
	fmt.Printf("VIDEO_TS files (%d):\n", len(files))
	for _, f := range files {
		head := make([]byte, 12)
		n, _ := f.Open().Read(head)
		if strings.HasSuffix(strings.ToUpper(f.Name), ".IFO") {
			fmt.Printf("- %q sector=%d size=%d head=%q\n", f.Name, f.FirstSector(), f.Size(), head[:n])
			continue
		}
		fmt.Printf("- %q sector=%d size=%d head=% x\n", f.Name, f.FirstSector(), f.Size(), head[:min(n, 4)])
	}

	src, err := fs.Open(*iso)
	if err != nil {
		fmt.Printf("fs.Open err: %v\n", err)
		return
	}
	defer src.Close()

	vmg, err := ifo.ReadVMG(src)
	if err != nil {
		fmt.Printf("ReadVMG err: %v\n", err)
		return
	}
	fmt.Printf("VMG provider=%q titleSets=%d titles=%d\n", vmg.ProviderID, vmg.TitleSets, len(vmg.Titles))
	for i, t := range vmg.Titles {
		fmt.Printf("- title %d: vts=%d ttn=%d parts=%d angles=%d\n", i+1, t.VTS, t.VTSTitle, t.Parts, t.Angles)
	}
}
