package probe

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ramohamadh/V2rayClient/internal/config"

	"github.com/xtls/xray-core/core"
)

// Prober measures share links by tunnelling a real HTTP request through an
// embedded core instance, without touching the installed engine binary.
type Prober struct {
	timeout     time.Duration
	testURL     string
	concurrency int
}

// Result is the outcome of probing a single link. Latency is only
// meaningful when Err is nil.
type Result struct {
	Link    string
	Latency time.Duration
	Err     error
}

func New(cfg config.ProbeConfig) *Prober {
	return &Prober{
		timeout:     cfg.Timeout(),
		testURL:     cfg.TestURL,
		concurrency: cfg.Concurrency,
	}
}

// Check probes a single link.
func (p *Prober) Check(link string) Result {
	return p.checkBatch([]string{link})[0]
}

// CheckAll probes every link, at most concurrency at a time. onResult is
// invoked once per link as its probe completes and may be nil. The returned
// slice preserves the input order.
func (p *Prober) CheckAll(links []string, onResult func(Result)) []Result {
	step := p.concurrency
	if step < 1 {
		step = 1
	}

	all := make([]Result, 0, len(links))
	for start := 0; start < len(links); start += step {
		end := start + step
		if end > len(links) {
			end = len(links)
		}

		batch := p.checkBatch(links[start:end])
		for _, r := range batch {
			if onResult != nil {
				onResult(r)
			}
		}
		all = append(all, batch...)
	}
	return all
}

func (p *Prober) checkBatch(links []string) []Result {
	results := make([]Result, len(links))

	portMap, skipped, instance, err := startBatch(links)
	if err != nil {
		for i, link := range links {
			results[i] = Result{Link: link, Err: err}
		}
		return results
	}

	var wg sync.WaitGroup
	for i, link := range links {
		if skipErr, ok := skipped[link]; ok {
			results[i] = Result{Link: link, Err: skipErr}
			continue
		}

		wg.Add(1)
		go func(i int, link string, port int) {
			defer wg.Done()
			latency, err := p.measure(port)
			results[i] = Result{Link: link, Latency: latency, Err: err}
		}(i, link, portMap[link])
	}
	wg.Wait()

	if instance != nil {
		instance.Close()
	}
	return results
}

// First races every link and returns the first one to answer along with
// its local socks port and the running instance. The caller owns the
// instance and must Close it eventually.
func (p *Prober) First(links []string) (string, int, *core.Instance, error) {
	portMap, _, instance, err := startBatch(links)
	if err != nil {
		return "", 0, nil, err
	}
	if instance == nil {
		return "", 0, nil, fmt.Errorf("no usable links in batch")
	}

	linkByPort := make(map[int]string, len(portMap))
	for link, port := range portMap {
		linkByPort[port] = link
	}

	winChan := make(chan int, 1)
	doneChan := make(chan struct{})
	var once sync.Once

	var wg sync.WaitGroup
	for _, link := range links {
		port, ok := portMap[link]
		if !ok {
			continue
		}

		wg.Add(1)
		go func(port int) {
			defer wg.Done()

			// Check if the race is already over
			select {
			case <-doneChan:
				return
			default:
			}

			if _, err := p.measure(port); err == nil {
				select {
				case winChan <- port:
					once.Do(func() { close(doneChan) })
				default:
				}
			}
		}(port)
	}

	// Closer routine: winChan closes once every worker has reported.
	go func() {
		wg.Wait()
		close(winChan)
	}()

	winnerPort, ok := <-winChan
	if ok {
		return linkByPort[winnerPort], winnerPort, instance, nil
	}

	instance.Close()
	return "", 0, nil, fmt.Errorf("no reachable proxy in batch")
}

// Baseline measures the test URL over the direct uplink, giving proxy
// latencies a reference point.
func (p *Prober) Baseline() (time.Duration, error) {
	client := &http.Client{Timeout: p.timeout}
	defer client.CloseIdleConnections()
	return p.fetch(client)
}

func (p *Prober) measure(port int) (time.Duration, error) {
	client := p.makeClient(port)
	defer client.CloseIdleConnections()
	return p.fetch(client)
}

func (p *Prober) fetch(client *http.Client) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.testURL, nil)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	latency := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return 0, fmt.Errorf("probe failed with status: %d", resp.StatusCode)
	}
	return latency, nil
}

func (p *Prober) makeClient(port int) *http.Client {
	proxyURL, _ := url.Parse(fmt.Sprintf("socks5://127.0.0.1:%d", port))

	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyURL(proxyURL),
			DialContext: (&net.Dialer{
				Timeout:   p.timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ResponseHeaderTimeout: p.timeout,
		},
		Timeout: p.timeout,
	}
}
