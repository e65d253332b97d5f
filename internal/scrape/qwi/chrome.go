package qwi

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"econstats-engine/internal/config"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

const (
	stateTabs     = "#dijit_layout_ContentPane_2 li.vtab > div"
	stateList     = "#dijit_layout_ContentPane_2"
	metroBoxes    = "input[type='checkbox'][name='areas_list_M']"
	metroList     = "details[data-source-name='areas_list_M']"
	availability  = "table.CheckGrid"
	selectAllGeo  = "input[type='checkbox'][name='areas_list_all']"
	selectAllAges = "input[type='checkbox'][name='firmage_all']"
)

var ErrDownloadCanceled = errors.New("download canceled by browser")

// ChromeDriver drives the LED extraction form in a single Chrome tab.
type ChromeDriver struct {
	url     string
	wait    time.Duration
	export  time.Duration
	dlDir   string
	ctx     context.Context
	cancel  context.CancelFunc
	release context.CancelFunc

	done chan string
}

// NewChromeDriver starts a browser. parent bounds the browser's lifetime;
// Close releases it earlier.
func NewChromeDriver(parent context.Context, cfg config.QWI, downloadDir string) (*ChromeDriver, error) {
	dir, err := filepath.Abs(downloadDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.WindowSize(1920, 1080),
	)
	allocCtx, release := chromedp.NewExecAllocator(parent, opts...)
	ctx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(log.Printf))

	d := &ChromeDriver{
		url:     cfg.URL,
		wait:    cfg.Wait(),
		export:  cfg.ExportTimeout(),
		dlDir:   dir,
		ctx:     ctx,
		cancel:  cancel,
		release: release,
		done:    make(chan string, 1),
	}
	chromedp.ListenTarget(ctx, d.onEvent)

	if err := chromedp.Run(ctx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(dir).
			WithEventsEnabled(true),
	); err != nil {
		d.Close()
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	return d, nil
}

func (d *ChromeDriver) Close() error {
	d.cancel()
	d.release()
	return nil
}

func (d *ChromeDriver) onEvent(ev any) {
	e, ok := ev.(*browser.EventDownloadProgress)
	if !ok {
		return
	}
	var guid string
	switch e.State {
	case browser.DownloadProgressStateCompleted:
		guid = e.GUID
	case browser.DownloadProgressStateCanceled:
		guid = ""
	default:
		return
	}
	select {
	case d.done <- guid:
	default:
	}
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx.
func (d *ChromeDriver) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	tctx, cancel := context.WithTimeout(d.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(tctx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func click(sel string) chromedp.Action { return chromedp.Click(sel, chromedp.ByQuery) }

func clickText(tag, text string) chromedp.Action {
	return chromedp.Click(fmt.Sprintf("//%s[text()='%s']", tag, text), chromedp.BySearch)
}

func checkbox(name, value string) string {
	return fmt.Sprintf("input[type='checkbox'][name='%s'][value='%s']", name, value)
}

func radio(name, value string) string {
	return fmt.Sprintf("input[type='radio'][name='%s'][value='%s']", name, value)
}

func (d *ChromeDriver) Open(ctx context.Context) error {
	return d.run(ctx, d.wait,
		chromedp.Navigate(d.url),
		chromedp.WaitVisible("#tabs_tablist_firm_char_tab", chromedp.ByQuery),
	)
}

func (d *ChromeDriver) ApplyFilters(ctx context.Context) error {
	return d.run(ctx, d.wait,
		click("#tabs_tablist_firm_char_tab"),
		click(radio("fas", "fa")),
		// toggling "all ages" twice leaves every age unchecked
		click(selectAllAges),
		click(selectAllAges),
		click(checkbox("firmage", "1")),
		click(checkbox("firmage", "2")),
		click(checkbox("firmage", "3")),

		click("#tabs_tablist_worker_char_tab"),
		click(radio("worker_xing", "se")),
		click(checkbox("worker_se_education", "E0")),
		click(checkbox("worker_se_education", "E1")),
		click(checkbox("worker_se_education", "E2")),
		click(checkbox("worker_se_education", "E3")),
		click(checkbox("worker_se_education", "E4")),

		click("#tabs_tablist_area_tab"),
		click(selectAllGeo),
		click(selectAllGeo),
	)
}

func (d *ChromeDriver) States(ctx context.Context) ([]string, error) {
	var html string
	if err := d.run(ctx, d.wait, chromedp.OuterHTML(stateList, &html, chromedp.ByQuery)); err != nil {
		return nil, err
	}
	return StateLabels(html), nil
}

func (d *ChromeDriver) clickStateTab(ctx context.Context, index int) error {
	var nodes []*cdp.Node
	if err := d.run(ctx, d.wait, chromedp.Nodes(stateTabs, &nodes, chromedp.ByQueryAll)); err != nil {
		return err
	}
	if index >= len(nodes) {
		return fmt.Errorf("state tab %d of %d", index, len(nodes))
	}
	return d.run(ctx, d.wait, chromedp.MouseClickNode(nodes[index]))
}

func (d *ChromeDriver) SelectState(ctx context.Context, index int) error {
	return d.clickStateTab(ctx, index)
}

// visibleMetroCount counts the metro checkboxes shown for the current
// state. Hidden boxes belong to other states and stay in the DOM after a
// geography reset.
var visibleMetroCount = fmt.Sprintf(`Array.from(document.querySelectorAll(%q)).filter(b => b.offsetParent !== null).length`, metroBoxes)

// selectVisibleMetros ticks every visible, enabled metro checkbox.
var selectVisibleMetros = fmt.Sprintf(`(() => {
	let n = 0;
	for (const box of document.querySelectorAll(%q)) {
		if (box.offsetParent !== null && !box.disabled) { box.click(); n++; }
	}
	return n;
})()`, metroBoxes)

func (d *ChromeDriver) SelectMetros(ctx context.Context) error {
	var (
		shown bool
		n     int
	)
	err := d.run(ctx, d.wait,
		clickText("div", "Metro/Micropolitan Areas"),
		chromedp.Poll(visibleMetroCount+" > 0", &shown, chromedp.WithPollingInterval(250*time.Millisecond)),
		chromedp.Evaluate(selectVisibleMetros, &n),
	)
	if err == nil && n == 0 {
		return errors.New("no metro checkboxes visible")
	}
	return err
}

func (d *ChromeDriver) OpenQuarters(ctx context.Context) error {
	return d.run(ctx, d.wait,
		click("#tabs_tablist_quarters_tab"),
		chromedp.WaitVisible(availability, chromedp.ByQuery),
	)
}

func (d *ChromeDriver) MetroListHTML(ctx context.Context) (string, error) {
	var html string
	err := d.run(ctx, d.wait, chromedp.OuterHTML(metroList, &html, chromedp.ByQuery))
	return html, err
}

func (d *ChromeDriver) AvailabilityHTML(ctx context.Context) (string, error) {
	var html string
	err := d.run(ctx, d.wait, chromedp.OuterHTML(availability, &html, chromedp.ByQuery))
	return html, err
}

func (d *ChromeDriver) ResetGeography(ctx context.Context) error {
	if err := d.run(ctx, d.wait,
		clickText("button", "Geography"),
		clickText("button", "Reset"),
	); err != nil {
		return err
	}
	if err := d.clickStateTab(ctx, 0); err != nil {
		return err
	}
	return d.run(ctx, d.wait, click(selectAllGeo), click(selectAllGeo))
}

func (d *ChromeDriver) LoadSettings(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	return d.run(ctx, d.wait,
		click("#show_load_settings"),
		chromedp.SetUploadFiles("#load_settings_input", []string{abs}, chromedp.ByQuery),
		click("#load_settings"),
		chromedp.WaitVisible("#tabs_tablist_worker_char_tab", chromedp.ByQuery),
	)
}

// ensureChecked ticks E0 only if the loaded settings left it unchecked.
const ensureChecked = `(() => {
	const box = document.querySelector("input[type='checkbox'][name='worker_se_education'][value='E0']");
	if (!box) return false;
	if (!box.checked) box.click();
	return true;
})()`

func (d *ChromeDriver) ReapplyWorkerFilters(ctx context.Context) error {
	var found bool
	err := d.run(ctx, d.wait,
		click("#tabs_tablist_worker_char_tab"),
		click(radio("worker_xing", "se")),
		chromedp.WaitVisible(checkbox("worker_se_education", "E0"), chromedp.ByQuery),
		chromedp.Evaluate(ensureChecked, &found),
	)
	if err == nil && !found {
		return errors.New("education checkbox E0 missing")
	}
	return err
}

func (d *ChromeDriver) SubmitExport(ctx context.Context) error {
	return d.run(ctx, d.wait,
		click("#tabs_tablist_export_tab"),
		clickText("b", "Submit Request"),
	)
}

func (d *ChromeDriver) DownloadCSV(ctx context.Context) (string, string, error) {
	// drop a completion left over from an earlier, abandoned export
	select {
	case <-d.done:
	default:
	}

	var id string
	if err := d.run(ctx, d.export,
		chromedp.WaitVisible("//a[text()='CSV']", chromedp.BySearch),
		chromedp.Text("#export_request_id", &id, chromedp.ByQuery),
		chromedp.Click("//a[text()='CSV']", chromedp.BySearch),
	); err != nil {
		return "", "", err
	}
	id = strings.TrimSpace(id)

	timer := time.NewTimer(d.export)
	defer timer.Stop()
	select {
	case guid := <-d.done:
		if guid == "" {
			return "", id, ErrDownloadCanceled
		}
		return filepath.Join(d.dlDir, guid), id, nil
	case <-timer.C:
		return "", id, fmt.Errorf("download of export %s did not finish in %s", id, d.export)
	case <-ctx.Done():
		return "", id, ctx.Err()
	}
}

var _ Driver = (*ChromeDriver)(nil)
