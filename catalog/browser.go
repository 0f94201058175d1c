package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// Vehicle selector elements.
const (
	yearSelect  = "select#afmkt-year"
	makeSelect  = "select#afmkt-make"
	modelSelect = "select#afmkt-model"
	partSelect  = "select#afmkt-parttype"
)

const pollInterval = 250 * time.Millisecond

var errSelectorTimeout = errors.New("catalog: selector did not load")

// BrowserOptions configure the headless browser session.
type BrowserOptions struct {
	SiteURL   string
	UserAgent string
	Headless  bool
	Timeout   time.Duration
	Logger    *slog.Logger
}

// BrowserSource drives the site's select2 vehicle selector in headless
// Chrome. It is not safe for concurrent use: selections are stateful.
type BrowserSource struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	opts          BrowserOptions
	loaded        bool
}

// NewBrowserSource starts a browser. Close releases it.
func NewBrowserSource(ctx context.Context, opts BrowserOptions) (*BrowserSource, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)

	logger := opts.Logger
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		logger.Debug(fmt.Sprintf(format, args...))
	}))
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return &BrowserSource{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		opts:          opts,
	}, nil
}

// Close shuts the browser down.
func (b *BrowserSource) Close() error {
	b.browserCancel()
	b.allocCancel()
	return nil
}

// Years loads the site and lists the year options.
func (b *BrowserSource) Years(ctx context.Context) ([]string, error) {
	if !b.loaded {
		if err := b.run(ctx, chromedp.Navigate(b.opts.SiteURL), chromedp.WaitReady(yearSelect)); err != nil {
			return nil, fmt.Errorf("open %s: %w", b.opts.SiteURL, err)
		}
		b.loaded = true
	}
	return b.waitOptions(ctx, yearSelect)
}

// Makes selects year and lists its makes.
func (b *BrowserSource) Makes(ctx context.Context, year string) ([]string, error) {
	if err := b.choose(ctx, yearSelect, year); err != nil {
		return nil, err
	}
	return b.waitOptions(ctx, makeSelect)
}

// Models selects the make and lists its models. The year is already chosen
// by the preceding Makes call.
func (b *BrowserSource) Models(ctx context.Context, _, vehicleMake string) ([]string, error) {
	if err := b.choose(ctx, makeSelect, vehicleMake); err != nil {
		return nil, err
	}
	return b.waitOptions(ctx, modelSelect)
}

// Parts selects the model and lists its part types once they finish loading.
func (b *BrowserSource) Parts(ctx context.Context, _, _, model string) ([]Part, error) {
	if err := b.choose(ctx, modelSelect, model); err != nil {
		return nil, err
	}

	var parts []Part
	err := b.poll(ctx, func(tctx context.Context) (bool, error) {
		var raw []struct {
			Text  string `json:"text"`
			Value string `json:"value"`
		}
		js := fmt.Sprintf(`(function(){
			const el = document.querySelector(%s);
			if (!el || el.options.length === 0) return null;
			const first = el.options[0].textContent.trim().toLowerCase();
			if (first === "loading" || first === "loading...") return null;
			return Array.from(el.options).map(o => ({text: o.textContent.trim(), value: o.value}));
		})()`, jsString(partSelect))
		if err := chromedp.Run(tctx, chromedp.Evaluate(js, &raw)); err != nil {
			return false, err
		}
		if raw == nil {
			return false, nil
		}
		parts = parts[:0]
		for _, o := range raw {
			if o.Value == "" {
				continue
			}
			parts = append(parts, Part{Name: o.Text, Slug: o.Value})
		}
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("part types: %w", err)
	}
	return parts, nil
}

// choose selects the option whose visible text equals text and fires the
// change event select2 listens for.
func (b *BrowserSource) choose(ctx context.Context, selector, text string) error {
	js := fmt.Sprintf(`(function(){
		const el = document.querySelector(%s);
		if (!el) return false;
		const opt = Array.from(el.options).find(o => o.textContent.trim() === %s);
		if (!opt) return false;
		el.value = opt.value;
		if (window.jQuery) { window.jQuery(el).trigger("change"); }
		else { el.dispatchEvent(new Event("change", {bubbles: true})); }
		return true;
	})()`, jsString(selector), jsString(text))

	var ok bool
	if err := b.run(ctx, chromedp.WaitReady(selector), chromedp.Evaluate(js, &ok)); err != nil {
		return fmt.Errorf("select %q in %s: %w", text, selector, err)
	}
	if !ok {
		return fmt.Errorf("select %q in %s: option not found", text, selector)
	}
	return nil
}

// waitOptions returns the visible text of every valued option of selector
// once at least one is present.
func (b *BrowserSource) waitOptions(ctx context.Context, selector string) ([]string, error) {
	js := fmt.Sprintf(`Array.from(document.querySelectorAll(%s)).filter(o => o.value).map(o => o.textContent.trim())`,
		jsString(selector+" option"))

	var options []string
	err := b.poll(ctx, func(tctx context.Context) (bool, error) {
		if err := chromedp.Run(tctx, chromedp.Evaluate(js, &options)); err != nil {
			return false, err
		}
		return len(options) > 0, nil
	})
	if errors.Is(err, errSelectorTimeout) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("options of %s: %w", selector, err)
	}
	return options, nil
}

// poll runs check until it reports done, fails, or the timeout elapses.
func (b *BrowserSource) poll(ctx context.Context, check func(context.Context) (bool, error)) error {
	deadline := time.Now().Add(b.opts.Timeout)
	for {
		tctx, cancel := b.taskContext(ctx)
		done, err := check(tctx)
		cancel()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if time.Now().After(deadline) {
			return errSelectorTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (b *BrowserSource) run(ctx context.Context, actions ...chromedp.Action) error {
	tctx, cancel := b.taskContext(ctx)
	defer cancel()
	return chromedp.Run(tctx, actions...)
}

// taskContext derives a per-action context from the browser that also ends
// when ctx does.
func (b *BrowserSource) taskContext(ctx context.Context) (context.Context, context.CancelFunc) {
	tctx, cancel := context.WithTimeout(b.browserCtx, b.opts.Timeout)
	stop := context.AfterFunc(ctx, cancel)
	return tctx, func() {
		stop()
		cancel()
	}
}

func jsString(s string) string {
	data, _ := json.Marshal(strings.TrimSpace(s))
	return string(data)
}
