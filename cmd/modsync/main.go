package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/jgivc/modsync/internal/app"
	"github.com/jgivc/modsync/internal/storage/mods"
	"github.com/spf13/afero"
)

func main() {
	cfgFileName := flag.String("c", "config.yml", "Path to config file")
	hashFile := flag.String("hash", "", "Print the SHA256 digest of a file and exit")
	modsFile := flag.String("modsfile", "", "Local manifest file (overrides config)")
	modsURL := flag.String("modsurl", "", "Remote manifest URL (overrides config)")
	dir := flag.String("dir", "", "Modpack root directory (overrides config)")
	flag.Parse()

	// Digest utility mode for authoring manifest entries.
	if *hashFile != "" {
		digest, err := mods.DigestFile(afero.NewOsFs(), *hashFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		fmt.Println(digest)

		return
	}

	a := app.New(*cfgFileName, app.Overrides{
		ManifestFile: *modsFile,
		ManifestURL:  *modsURL,
		TargetDir:    *dir,
	})

	if err := a.Run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
