// cmd/tools/qrcard/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"qrcode-workers/internal/common/config"
	"qrcode-workers/internal/common/logger"
	"qrcode-workers/internal/contact"
	"qrcode-workers/internal/photo"
	"qrcode-workers/internal/qrrender"
)

const usage = `Usage:
  qrcard vcard [flags]   encode a contact card
  qrcard link  [flags]   encode a URL

Run "qrcard <command> -h" for the flags of each command.
`

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("missing command")
	}

	fs := flag.NewFlagSet("qrcard "+args[0], flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		fields   contact.Fields
		rawURL   string
		photoArg string
		photoURL string
		colorArg string
		out      string
		format   string
		size     int
		verbose  bool
	)
	fs.StringVar(&colorArg, "color", "black", "foreground color: black, red, blue or #RRGGBB")
	fs.StringVar(&out, "out", qrrender.ExportFilename, "output file, - for stdout")
	fs.StringVar(&format, "format", "svg", "output format: svg or png")
	fs.IntVar(&size, "size", qrrender.DefaultSize, "rendered size in pixels")
	fs.BoolVar(&verbose, "v", false, "debug logging")

	var mode contact.Mode
	switch args[0] {
	case "vcard":
		mode = contact.ModeVCard
		fs.StringVar(&fields.Name, "name", "", "full name")
		fs.StringVar(&fields.JobTitle, "title", "", "job title")
		fs.StringVar(&fields.Phone, "phone", "", "phone number")
		fs.StringVar(&fields.Email, "email", "", "email address")
		fs.StringVar(&fields.Website, "website", "", "website")
		fs.StringVar(&photoArg, "photo", "", "photo file to embed")
		fs.StringVar(&photoURL, "photo-url", "", "photo URL to fetch and embed")
	case "link":
		mode = contact.ModeURL
		fs.StringVar(&rawURL, "url", "", "URL to encode")
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}

	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	color, err := qrrender.ParseColor(colorArg)
	if err != nil {
		return err
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	log := logger.NewStructured(level, "console", "stderr")

	source, err := photoSource(photoArg, photoURL)
	if err != nil {
		return err
	}

	photoCfg := config.PhotoConfig{FetchTimeout: 10000, UserAgent: "qrcard/1.0"}
	builder := contact.NewBuilder(photo.NewNormalizer(photoCfg, log), contact.NewHTTPFetcher(photoCfg, log), log)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	value, err := builder.Value(ctx, mode, fields, source, rawURL)
	if err != nil {
		return fmt.Errorf("build payload: %w", err)
	}
	if value == "" {
		return fmt.Errorf("nothing to encode")
	}

	renderer := qrrender.NewRenderer(config.RenderConfig{Size: size}, log)
	in := qrrender.RenderInput{Value: value.String(), Color: color}

	var data []byte
	switch format {
	case "svg":
		markup, err := renderer.SVGSize(in, size)
		if err != nil {
			return err
		}
		doc, err := qrrender.Export(markup)
		if err != nil {
			return err
		}
		data = []byte(doc)
	case "png":
		data, err = renderer.PNG(in, size)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported format %q", format)
	}

	if out == "-" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(stderr, "✅ Wrote %s (%d bytes, photo: %v)\n", out, len(data), contact.HasPhoto(value))
	return nil
}

func photoSource(file, url string) (contact.PhotoSource, error) {
	switch {
	case file != "" && url != "":
		return nil, fmt.Errorf("-photo and -photo-url are mutually exclusive")
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read photo: %w", err)
		}
		return contact.LocalFile{Data: data}, nil
	case url != "":
		return contact.RemoteURL{URL: url}, nil
	default:
		return contact.NoPhoto{}, nil
	}
}
