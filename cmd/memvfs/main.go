// Command memvfs is the CLI tool for working with memvfs database dumps.
// It provides commands for verifying, inspecting, digesting, and
// recompressing dump files.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/memvfs/core/dump"
	"github.com/FocuswithJustin/memvfs/core/memvfs"
	"github.com/FocuswithJustin/memvfs/internal/logging"
	"github.com/FocuswithJustin/memvfs/internal/sqlite"
)

const version = "0.1.0"

// CLI defines the command-line interface for memvfs.
var CLI struct {
	// Global flags
	Debug bool `help:"Enable debug logging"`

	Verify     VerifyCmd     `cmd:"" help:"Open a dump with the bundled SQLite driver and run an integrity check"`
	Info       InfoCmd       `cmd:"" help:"Print the database header of a dump"`
	Digest     DigestCmd     `cmd:"" help:"Print the blake3 digest of a dump's uncompressed content"`
	Compress   CompressCmd   `cmd:"" help:"Rewrite a dump with xz compression"`
	Decompress DecompressCmd `cmd:"" help:"Rewrite a compressed dump as raw bytes"`
	Version    VersionCmd    `cmd:"" help:"Print version information"`
}

// VerifyCmd runs PRAGMA integrity_check against a dump.
type VerifyCmd struct {
	Path string `arg:"" help:"Dump file to verify" type:"existingfile"`
}

func (c *VerifyCmd) Run() error {
	// The driver needs a real file; route compressed dumps through a
	// scratch copy.
	tmpDir, err := os.MkdirTemp("", "memvfs-verify-*")
	if err != nil {
		return fmt.Errorf("create scratch directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	v := memvfs.New(memvfs.Options{})
	if err := dump.RestoreFile(v, "verify.db", c.Path); err != nil {
		return err
	}
	scratch := filepath.Join(tmpDir, "verify.db")
	if _, err := dump.WriteFile(v, "verify.db", scratch, dump.Options{}); err != nil {
		return err
	}

	results, err := sqlite.IntegrityCheck(scratch)
	if err != nil {
		return err
	}
	if len(results) == 1 && results[0] == "ok" {
		fmt.Printf("%s: ok (driver %s)\n", c.Path, sqlite.DriverType())
		return nil
	}
	for _, line := range results {
		fmt.Println(line)
	}
	return fmt.Errorf("%s: integrity check failed", c.Path)
}

// InfoCmd prints the database header fields of a dump.
type InfoCmd struct {
	Path string `arg:"" help:"Dump file to inspect" type:"existingfile"`
}

func (c *InfoCmd) Run() error {
	v := memvfs.New(memvfs.Options{})
	if err := dump.RestoreFile(v, "info.db", c.Path); err != nil {
		return err
	}
	cr, err := v.Serialize("info.db")
	if err != nil {
		return err
	}
	defer cr.Close()

	head := make([]byte, 0, sqlite.HeaderSize)
	for len(head) < sqlite.HeaderSize {
		chunk, err := cr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		head = append(head, chunk...)
	}

	h, err := sqlite.ParseHeader(head)
	if err != nil {
		return err
	}

	fmt.Printf("Page size:      %d\n", h.PageSize)
	fmt.Printf("Page count:     %d\n", h.PageCount)
	fmt.Printf("Size:           %d bytes\n", h.SizeBytes())
	fmt.Printf("Change counter: %d\n", h.ChangeCounter)
	fmt.Printf("Freelist pages: %d\n", h.FreelistCount)
	fmt.Printf("Schema cookie:  %d\n", h.SchemaCookie)
	fmt.Printf("Text encoding:  %s\n", h.EncodingName())
	fmt.Printf("User version:   %d\n", h.UserVersion)
	fmt.Printf("Application ID: %d\n", h.ApplicationID)
	return nil
}

// DigestCmd prints the content digest of a dump.
type DigestCmd struct {
	Path string `arg:"" help:"Dump file to digest" type:"existingfile"`
}

func (c *DigestCmd) Run() error {
	digest, err := dump.Digest(c.Path)
	if err != nil {
		return err
	}
	fmt.Printf("%s  %s\n", digest, c.Path)
	return nil
}

// CompressCmd rewrites a dump with xz compression.
type CompressCmd struct {
	Path string `arg:"" help:"Dump file to compress" type:"existingfile"`
	Out  string `required:"" help:"Output path" type:"path"`
}

func (c *CompressCmd) Run() error {
	v := memvfs.New(memvfs.Options{})
	if err := dump.RestoreFile(v, "pack.db", c.Path); err != nil {
		return err
	}
	digest, err := dump.WriteFile(v, "pack.db", c.Out, dump.Options{Compress: true})
	if err != nil {
		return err
	}
	fmt.Printf("%s  %s\n", digest, c.Out)
	return nil
}

// DecompressCmd rewrites a compressed dump as raw bytes.
type DecompressCmd struct {
	Path string `arg:"" help:"Dump file to decompress" type:"existingfile"`
	Out  string `required:"" help:"Output path" type:"path"`
}

func (c *DecompressCmd) Run() error {
	v := memvfs.New(memvfs.Options{})
	if err := dump.RestoreFile(v, "unpack.db", c.Path); err != nil {
		return err
	}
	digest, err := dump.WriteFile(v, "unpack.db", c.Out, dump.Options{})
	if err != nil {
		return err
	}
	fmt.Printf("%s  %s\n", digest, c.Out)
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("memvfs %s\n", version)
	fmt.Printf("sqlite driver: %s (%s)\n", sqlite.DriverName(), sqlite.DriverType())
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("memvfs"),
		kong.Description("In-memory SQLite VFS dump tools"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	if CLI.Debug {
		logging.InitLogger(logging.LevelDebug, logging.FormatText)
	} else {
		logging.InitLogger(logging.LevelInfo, logging.FormatText)
	}
	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
