package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/daemon"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/library"
	"go.uber.org/fx"
)

func main() {
	// A .env can set WEV_LIBRARY before the flag default is resolved.
	_ = godotenv.Load(".env")

	libraryFlag := flag.String("library", "", "library name (overrides config default)")
	flag.Parse()

	libraryName := library.Resolve(*libraryFlag)
	if err := library.ValidateName(libraryName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{LibraryName: libraryName}),
	)

	app.Run()
}
