// cmd/variantctl/main.go
//
// variantctl – one-off variant surgery against the Lightspeed API.
//
// Context
// -------
// The sync pipeline is read-only toward the API; corrections flow the
// other way through this tool.  Two fixes come up in practice: a variant
// title that needs rewording, and a stale variant image that must be
// cleared so the product image shows again.
//
// Usage
//
//	variantctl -tld be -lang nl -id 12345 title "Size 42 / Black"
//	variantctl -tld be -lang nl -id 12345 clear-image
//
// Credentials come from the same layered config as the sync run, so a
// LIGHTSPEED_API_KEY_BE / LIGHTSPEED_API_SECRET_BE pair in the
// environment is enough.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/anas-farooq8/Lightspeed-ShopSync/internal/config"
	"github.com/anas-farooq8/Lightspeed-ShopSync/internal/lightspeed"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage:
  variantctl -tld <tld> -lang <code> -id <variant-id> title <new title>
  variantctl -tld <tld> -lang <code> -id <variant-id> clear-image
`)
	os.Exit(2)
}

func main() {
	var (
		tld  = flag.String("tld", "", "shop TLD the credentials are keyed on (e.g. be)")
		lang = flag.String("lang", "", "language code of the variant record")
		id   = flag.Int64("id", 0, "variant id")
	)
	flag.Usage = usage
	flag.Parse()

	if *tld == "" || *lang == "" || *id == 0 || flag.NArg() < 1 {
		usage()
	}

	log, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start logger: %v\n", err)
		os.Exit(1)
	}
	sugar := log.Sugar()
	zap.ReplaceGlobals(log)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cfg, err := config.Load(ctx)
	if err != nil {
		sugar.Fatalw("load config", "err", err)
	}
	creds, err := cfg.CredentialsFor(*tld)
	if err != nil {
		sugar.Fatalw("resolve credentials", "tld", *tld, "err", err)
	}

	client := lightspeed.New(creds,
		lightspeed.WithBaseURL(cfg.API.BaseURL),
		lightspeed.WithLogger(sugar))

	var fields map[string]any
	switch cmd := flag.Arg(0); cmd {
	case "title":
		if flag.NArg() != 2 {
			usage()
		}
		fields = map[string]any{"title": flag.Arg(1)}
	case "clear-image":
		fields = map[string]any{"image": nil}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		usage()
	}

	before, err := client.Variant(ctx, *lang, *id)
	if err != nil {
		sugar.Fatalw("fetch variant", "id", *id, "err", err)
	}
	sugar.Infow("variant before update",
		"id", before.ID, "title", deref(before.Title), "has_image", before.Image != nil)

	after, err := client.UpdateVariant(ctx, *lang, *id, fields)
	if err != nil {
		sugar.Fatalw("update variant", "id", *id, "err", err)
	}
	sugar.Infow("variant updated",
		"id", after.ID, "title", deref(after.Title), "has_image", after.Image != nil)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
