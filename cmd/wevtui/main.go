package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/williamdwatson/whatsapp-export-viewer/internal/library"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/tui"
	"github.com/williamdwatson/whatsapp-export-viewer/internal/tui/client"
)

func main() {
	libraryFlag := flag.String("library", "", "library name (overrides config default)")
	flag.Parse()

	libraryName := library.Resolve(*libraryFlag)
	if err := library.ValidateName(libraryName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	socketPath := library.SocketPath(libraryName)

	// Probe daemon health; auto-start if needed.
	if !probeDaemon(socketPath) {
		fmt.Fprintf(os.Stderr, "daemon not running for library %q, starting...\n", libraryName)
		if err := startDaemon(libraryName); err != nil {
			fmt.Fprintf(os.Stderr, "failed to start daemon: %v\n", err)
			os.Exit(1)
		}
		if !waitForDaemon(socketPath, 10*time.Second) {
			fmt.Fprintf(os.Stderr, "daemon did not become ready\n")
			os.Exit(1)
		}
	}

	c := client.New(socketPath)
	defer c.Close()

	app := tui.NewApp(c, libraryName)
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// probeDaemon checks if a daemon is running and responsive on the socket.
func probeDaemon(socketPath string) bool {
	c := client.New(socketPath)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return c.Health(ctx) == nil
}

func startDaemon(libraryName string) error {
	executable, err := os.Executable()
	if err != nil {
		return err
	}
	wevd := filepath.Join(filepath.Dir(executable), "wevd")

	if _, err := os.Stat(wevd); err != nil {
		wevd = "wevd"
	}

	cmd := exec.Command(wevd, "--library", libraryName)
	// Inherit stderr so daemon startup errors are visible.
	cmd.Stderr = os.Stderr
	return cmd.Start()
}

// waitForDaemon polls the daemon with a real health request, not just a
// socket connect.
func waitForDaemon(socketPath string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if probeDaemon(socketPath) {
			return true
		}
		time.Sleep(300 * time.Millisecond)
	}
	return false
}
