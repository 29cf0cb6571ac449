package view

import (
	"time"
)

// ViewExporter receives a ViewData snapshot of every registered,
// currently-reporting view on a periodic schedule. Exporting to an
// external backend (Stackdriver Monitoring, Prometheus, ...) is out of
// scope for this module: ViewExporter is the seam where such a thing
// would attach; none ship here.
type ViewExporter interface {
	ExportView(data ViewData)
}

// RegisterExporter adds exporter to the set polled every interval,
// starting the background goroutine on first registration. The
// goroutine polls with a plain time.Ticker rather than through the
// injected clock, since a test using a Fake clock to pin span and
// bucket timestamps has no reason to also drive wall-clock scheduling.
func (e *Engine) RegisterExporter(exporter ViewExporter, interval time.Duration) {
	e.exportersMu.Lock()
	defer e.exportersMu.Unlock()

	e.exporters = append(e.exporters, exporter)
	if e.exportStop == nil {
		stop := make(chan struct{})
		e.exportStop = stop
		e.exportWG.Add(1)
		go e.runExportLoop(interval, stop)
	}
}

// UnregisterExporter removes exporter from the polled set. The
// background goroutine keeps running until StopExporters is called, so
// a later RegisterExporter call reuses it.
func (e *Engine) UnregisterExporter(exporter ViewExporter) {
	e.exportersMu.Lock()
	defer e.exportersMu.Unlock()
	for i, x := range e.exporters {
		if x == exporter {
			e.exporters = append(e.exporters[:i], e.exporters[i+1:]...)
			break
		}
	}
}

// StopExporters halts the periodic export goroutine, if one was
// started. Safe to call more than once.
func (e *Engine) StopExporters() {
	e.exportersMu.Lock()
	stop := e.exportStop
	e.exportStop = nil
	e.exportersMu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	e.exportWG.Wait()
}

func (e *Engine) runExportLoop(interval time.Duration, stop <-chan struct{}) {
	defer e.exportWG.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.exportAll()
		}
	}
}

func (e *Engine) exportAll() {
	for _, v := range e.GetAllExportedViews() {
		data, err := e.GetView(v.Name)
		if err != nil {
			continue
		}
		e.exportersMu.RLock()
		exporters := make([]ViewExporter, len(e.exporters))
		copy(exporters, e.exporters)
		e.exportersMu.RUnlock()
		for _, x := range exporters {
			x.ExportView(data)
		}
	}
}
