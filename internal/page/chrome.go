package page

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// BindingName is the page function the match button calls on click.
const BindingName = "nightcrawlerAnalyze"

// ButtonLabel is the injected button's text.
const ButtonLabel = "See Match"

var measureScript = fmt.Sprintf(`(() => {
	const els = document.querySelectorAll(%q);
	for (const el of els) {
		el.setAttribute(%q, String(el.offsetWidth));
		el.setAttribute(%q, String(el.offsetHeight));
	}
	return els.length;
})()`, DescriptionSelector+", "+CompanySelector, WidthAttr, HeightAttr)

var injectScript = fmt.Sprintf(`(() => {
	const stale = document.getElementById(%[1]q);
	if (stale) stale.remove();
	const layout = document.querySelector(%[2]q);
	const anchor = layout && layout.querySelector(%[3]q);
	if (!anchor || !anchor.parentElement) return false;
	const container = document.createElement("div");
	container.id = %[1]q;
	container.style.cssText = "display: inline-block; margin-left: 8px;";
	const button = document.createElement("button");
	button.type = "button";
	button.textContent = %[4]q;
	button.style.cssText = "display: inline-flex; align-items: center; padding: 8px 16px; margin-left: 8px; font-size: 14px; font-weight: 500; color: white; background-color: #16a34a; border: none; border-radius: 6px; cursor: pointer; position: relative; z-index: 9999; font-family: system-ui, -apple-system, sans-serif;";
	button.addEventListener("mouseenter", () => { button.style.backgroundColor = "#15803d"; });
	button.addEventListener("mouseleave", () => { button.style.backgroundColor = "#16a34a"; });
	button.addEventListener("click", () => { window[%[5]q](""); });
	container.appendChild(button);
	anchor.parentElement.appendChild(container);
	return true;
})()`, ContainerID, LayoutSelector, AnchorSelector, ButtonLabel, BindingName)

var teardownScript = fmt.Sprintf(`(() => {
	const el = document.getElementById(%q);
	if (el) el.remove();
	return true;
})()`, ContainerID)

// ChromeSurface drives a page in a chromedp browser context.
type ChromeSurface struct {
	ctx    context.Context
	clicks chan struct{}
	logger logrus.FieldLogger
}

// NewChromeSurface wraps a chromedp context created with chromedp.NewContext.
func NewChromeSurface(browserCtx context.Context, logger logrus.FieldLogger) *ChromeSurface {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ChromeSurface{
		ctx:    browserCtx,
		clicks: make(chan struct{}, 1),
		logger: logger,
	}
}

// Attach enables request events, exposes the click binding and feeds every
// outgoing request to idle.
func (s *ChromeSurface) Attach(idle *IdleTracker) error {
	chromedp.ListenTarget(s.ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			if idle != nil {
				idle.Observe()
			}
		case *runtime.EventBindingCalled:
			if e.Name != BindingName {
				return
			}
			select {
			case s.clicks <- struct{}{}:
			default:
			}
		}
	})
	err := chromedp.Run(s.ctx,
		network.Enable(),
		runtime.AddBinding(BindingName),
	)
	return errors.Wrap(err, "attaching to browser")
}

// Clicks delivers one value per match button click. Clicks that arrive while
// one is pending are dropped.
func (s *ChromeSurface) Clicks() <-chan struct{} {
	return s.clicks
}

// Navigate loads url in the page.
func (s *ChromeSurface) Navigate(ctx context.Context, url string) error {
	return errors.Wrapf(s.run(ctx, chromedp.Navigate(url)), "navigating to %s", url)
}

// URL implements Surface.
func (s *ChromeSurface) URL(ctx context.Context) (string, error) {
	var url string
	if err := s.run(ctx, chromedp.Location(&url)); err != nil {
		return "", errors.Wrap(err, "reading location")
	}
	return url, nil
}

// Snapshot implements Surface.
func (s *ChromeSurface) Snapshot(ctx context.Context) (string, error) {
	var (
		measured int
		html     string
	)
	err := s.run(ctx,
		chromedp.Evaluate(measureScript, &measured),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", errors.Wrap(err, "capturing page")
	}
	s.logger.WithField("measured", measured).Debug("page snapshot taken")
	return html, nil
}

// Inject implements Surface.
func (s *ChromeSurface) Inject(ctx context.Context) error {
	var injected bool
	if err := s.run(ctx, chromedp.Evaluate(injectScript, &injected)); err != nil {
		return errors.Wrap(err, "injecting button")
	}
	if !injected {
		return errors.New("save button disappeared before injection")
	}
	return nil
}

// Teardown implements Surface.
func (s *ChromeSurface) Teardown(ctx context.Context) error {
	var ok bool
	return errors.Wrap(s.run(ctx, chromedp.Evaluate(teardownScript, &ok)), "removing button")
}

// Alert implements Surface. The dialog is opened asynchronously so the
// evaluation does not block on the user dismissing it.
func (s *ChromeSurface) Alert(ctx context.Context, message string) error {
	literal, err := json.Marshal(message)
	if err != nil {
		return errors.Wrap(err, "encoding alert")
	}
	var ok bool
	script := fmt.Sprintf(`(() => { setTimeout(() => alert(%s), 0); return true; })()`, literal)
	return errors.Wrap(s.run(ctx, chromedp.Evaluate(script, &ok)), "showing alert")
}

// run executes actions in the browser context while honouring ctx.
func (s *ChromeSurface) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := linkContext(s.ctx, ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

// linkContext derives a context from browserCtx, keeping its chromedp
// values, that is also cancelled when ctx is done.
func linkContext(browserCtx, ctx context.Context) (context.Context, context.CancelFunc) {
	linked, cancel := context.WithCancel(browserCtx)
	stop := context.AfterFunc(ctx, cancel)
	return linked, func() {
		stop()
		cancel()
	}
}
