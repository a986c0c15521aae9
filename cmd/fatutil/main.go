// Command fatutil inspects and edits FAT12/16/32 disk images from the
// command line: list a directory, print a file's contents, write a file,
// or format a fresh image.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	fatfs "github.com/go-fatfs/fatfs"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "fatutil",
		Usage: "inspect and edit FAT12/16/32 disk images",
		Commands: []*cli.Command{
			{
				Name:      "ls",
				Usage:     "list a directory's contents",
				ArgsUsage: "IMAGE [PATH]",
				Action:    runLs,
			},
			{
				Name:      "cat",
				Usage:     "print a file's contents to stdout",
				ArgsUsage: "IMAGE PATH",
				Action:    runCat,
			},
			{
				Name:      "write",
				Usage:     "write stdin to a file, creating it if necessary",
				ArgsUsage: "IMAGE PATH",
				Action:    runWrite,
			},
			{
				Name:      "format",
				Usage:     "format a new FAT volume",
				ArgsUsage: "IMAGE",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "label", Usage: "volume label"},
					&cli.StringFlag{Name: "type", Usage: "fat12, fat16, or fat32 (default: auto)"},
				},
				Action: runFormat,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatutil: %s", err)
	}
}

// imageDevice adapts an *os.File to fatfs.Device.
type imageDevice struct{ *os.File }

func (d imageDevice) Flush() error { return d.Sync() }

func (d imageDevice) Size() int64 {
	fi, err := d.Stat()
	if err != nil {
		return 0
	}
	return fi.Size()
}

func openImage(path string) (imageDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	return imageDevice{f}, err
}

func runLs(c *cli.Context) error {
	if c.Args().Len() < 1 {
		return cli.Exit("usage: fatutil ls IMAGE [PATH]", 1)
	}
	img, err := openImage(c.Args().Get(0))
	if err != nil {
		return err
	}
	defer img.Close()

	fs, warnings, err := fatfs.Mount(img, fatfs.MountOptions{ReadOnly: true})
	if err != nil {
		return err
	}
	if warnings != nil {
		fmt.Fprintln(os.Stderr, warnings.Error())
	}
	defer fs.Unmount()

	root, err := fs.RootDir()
	if err != nil {
		return err
	}
	dir := root
	if path := c.Args().Get(1); path != "" && path != "." {
		entry, err := root.FindPath(path)
		if err != nil {
			return err
		}
		if !entry.IsDir {
			return cli.Exit(fmt.Sprintf("%s is not a directory", path), 1)
		}
		dir, err = root.OpenSubdir(entry)
		if err != nil {
			return err
		}
	}

	return dir.ForEach(func(e fatfs.DirEntry) bool {
		kind := "F"
		if e.IsDir {
			kind = "D"
		}
		fmt.Printf("%s %10d  %s  %s\n", kind, e.Size, e.ModTime.Format("2006-01-02 15:04:05"), e.Name)
		return true
	})
}

func runCat(c *cli.Context) error {
	if c.Args().Len() < 2 {
		return cli.Exit("usage: fatutil cat IMAGE PATH", 1)
	}
	img, err := openImage(c.Args().Get(0))
	if err != nil {
		return err
	}
	defer img.Close()

	fs, _, err := fatfs.Mount(img, fatfs.MountOptions{ReadOnly: true})
	if err != nil {
		return err
	}
	defer fs.Unmount()

	f, err := fs.OpenFile(c.Args().Get(1), false)
	if err != nil {
		return err
	}
	_, err = io.Copy(os.Stdout, f)
	return err
}

func runWrite(c *cli.Context) error {
	if c.Args().Len() < 2 {
		return cli.Exit("usage: fatutil write IMAGE PATH", 1)
	}
	img, err := openImage(c.Args().Get(0))
	if err != nil {
		return err
	}
	defer img.Close()

	fs, _, err := fatfs.Mount(img, fatfs.MountOptions{})
	if err != nil {
		return err
	}
	defer fs.Unmount()

	f, err := fs.OpenFile(c.Args().Get(1), true)
	if err != nil {
		return err
	}
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := io.Copy(f, os.Stdin); err != nil {
		return err
	}
	return f.Close()
}

func runFormat(c *cli.Context) error {
	if c.Args().Len() < 1 {
		return cli.Exit("usage: fatutil format IMAGE", 1)
	}
	img, err := os.OpenFile(c.Args().Get(0), os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	defer img.Close()

	opts := fatfs.FormatOptions{VolumeLabel: c.String("label")}
	switch c.String("type") {
	case "fat12":
		opts.FATType = fatfs.FAT12
	case "fat16":
		opts.FATType = fatfs.FAT16
	case "fat32":
		opts.FATType = fatfs.FAT32
	case "":
	default:
		return cli.Exit("type must be one of: fat12, fat16, fat32", 1)
	}
	return fatfs.Format(imageDevice{img}, opts)
}
