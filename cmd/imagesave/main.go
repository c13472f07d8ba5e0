// Command imagesave shares one image reference with the saver and saves it,
// the way a share sheet hands an image to the app.
//
//	imagesave [-api-level 28] [-grant] https://example.com/cat.png
//	imagesave -audit
//
// With -audit it instead checks that every entry of the media index in the
// -status status (ready by default) can still be read from storage.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/tendant/image-saver/pkg/mediasaver"
	"github.com/tendant/image-saver/pkg/mediasaver/config"
	"github.com/tendant/image-saver/pkg/mediasaver/scan"
)

type options struct {
	envPrefix string
	apiLevel  int
	mimeType  string
	grant     bool
	audit     bool
	status    string
	verbose   bool
}

var errAuditFailed = errors.New("unreadable entries found")

// sourceRef turns a bare path into a file reference.
func sourceRef(arg string) (mediasaver.ImageRef, error) {
	if strings.Contains(arg, "://") {
		return mediasaver.ImageRef(arg), nil
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", err
	}
	return mediasaver.FileRef(abs), nil
}

func buildService(opts options) (mediasaver.Service, *config.ServerConfig, error) {
	configOpts := []config.Option{config.WithEnv(opts.envPrefix)}
	if opts.apiLevel > 0 {
		configOpts = append(configOpts, config.WithAPILevel(opts.apiLevel))
	}
	serverConfig, err := config.Load(configOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}

	svc, err := serverConfig.BuildService()
	if err != nil {
		return nil, nil, fmt.Errorf("build service: %w", err)
	}
	return svc, serverConfig, nil
}

// audit checks entries in status. Failed saves never wrote their bytes, so an
// empty status sweeps them too and always reports them.
func audit(ctx context.Context, svc mediasaver.Service, status string, stdout io.Writer) error {
	result, err := scan.New(svc).Scan(ctx, scan.ScanOptions{
		Status:    status,
		Processor: &scan.IntegrityProcessor{Opener: svc},
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	if result.TotalFailed > 0 {
		return fmt.Errorf("%w: %d of %d", errAuditFailed, result.TotalFailed, result.TotalFound)
	}
	return nil
}

func run(ctx context.Context, opts options, arg string, stdout io.Writer) error {
	svc, serverConfig, err := buildService(opts)
	if err != nil {
		return err
	}
	if opts.audit {
		return audit(ctx, svc, opts.status, stdout)
	}

	ref, err := sourceRef(arg)
	if err != nil {
		return err
	}
	err = svc.ReceiveShare(ctx, mediasaver.ShareIntent{
		Action: mediasaver.ActionSend,
		Type:   opts.mimeType,
		Stream: ref,
	})
	if err != nil {
		return err
	}

	entry, err := svc.Save(ctx)
	if errors.Is(err, mediasaver.ErrPermissionRequired) {
		if !opts.grant {
			return fmt.Errorf("%w: rerun with -grant to allow writing to %s", err, serverConfig.Platform.ExternalDir)
		}
		if err := svc.PermissionResult(ctx, mediasaver.PermissionWriteExternalStorage, true); err != nil {
			return err
		}
		entry, err = svc.Save(ctx)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(entry)
}

func main() {
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.envPrefix, "env-prefix", "", "prefix of configuration environment variables")
	flag.IntVar(&opts.apiLevel, "api-level", 0, "platform API level (overrides API_LEVEL)")
	flag.StringVar(&opts.mimeType, "type", "image/*", "MIME type announced by the share")
	flag.BoolVar(&opts.grant, "grant", false, "grant the write permission when the legacy strategy asks for it")
	flag.BoolVar(&opts.audit, "audit", false, "check every indexed entry instead of saving")
	flag.StringVar(&opts.status, "status", string(mediasaver.EntryStatusReady), "entry status checked by -audit (empty for all)")
	flag.BoolVar(&opts.verbose, "v", false, "log at debug level")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <image-ref>\n       %s -audit\n", filepath.Base(os.Args[0]), filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if (opts.audit && flag.NArg() != 0) || (!opts.audit && flag.NArg() != 1) {
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(context.Background(), opts, flag.Arg(0), os.Stdout); err != nil {
		slog.Error("imagesave failed", "source", flag.Arg(0), "audit", opts.audit, "err", err)
		os.Exit(1)
	}
}
