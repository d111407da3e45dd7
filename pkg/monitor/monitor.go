package monitor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"scanrecon/internal/models"
	"scanrecon/pkg/acquisition"
	"scanrecon/pkg/logging"
	"scanrecon/pkg/metadata"
	"scanrecon/pkg/records"
	"scanrecon/pkg/timeutil"
)

// maxWarnings bounds the warnings kept for snapshots.
const maxWarnings = 100

// Monitor is the live reconstruction of one running scan.
//
// All buffer mutation happens inside a pass, and passes never overlap: a tick
// that arrives while a pass is running is dropped. Cancellation is executed
// between passes by the goroutine running Run.
type Monitor struct {
	cfg       Config
	meta      *metadata.ScanMetadata
	proc      acquisition.Process
	clock     timeutil.Clock
	sink      Sink
	canceller *acquisition.Canceller
	display   Display
	session   string
	cancelReq chan struct{}

	// pass guards everything below it up to mu
	pass    sync.Mutex
	tail    *records.Tailer
	layout  *records.Layout
	plane   int
	cameras []string
	buffers map[string]*buffer
	series  map[string]map[string]*seriesBuffer
	seen    int
	logged  map[string]bool

	mu       sync.RWMutex
	state    State
	snapshot *Snapshot
	warnings []string
	err      error
}

// buffer holds the display images of one camera.
type buffer struct {
	frames [][]float64
	extremes
}

type seriesBuffer struct {
	times, values []float64
	extremes
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock replaces the real clock, for tests.
func WithClock(c timeutil.Clock) Option {
	return func(m *Monitor) { m.clock = c }
}

// WithSink sets the consumer of published snapshots.
func WithSink(s Sink) Option {
	return func(m *Monitor) { m.sink = s }
}

// New creates a monitor for a running acquisition process. Every
// configuration problem is reported here, before any buffer is allocated.
func New(meta *metadata.ScanMetadata, proc acquisition.Process, cfg Config, opts ...Option) (*Monitor, error) {
	cfg = cfg.withDefaults()
	if _, err := ParseMode(string(cfg.Mode)); err != nil {
		return nil, err
	}
	if cfg.RecordsPath == "" {
		return nil, &models.ConfigurationError{Reason: "no record file to monitor"}
	}
	cancelDir, err := resolveCancelDir(meta, cfg)
	if err != nil {
		return nil, err
	}

	m := &Monitor{
		cfg:       cfg,
		meta:      meta,
		proc:      proc,
		clock:     timeutil.RealClock{},
		session:   uuid.NewString(),
		cancelReq: make(chan struct{}, 1),
		tail:      records.NewTailer(cfg.RecordsPath),
		logged:    make(map[string]bool),
	}
	for _, o := range opts {
		o(m)
	}
	m.canceller = &acquisition.Canceller{Dir: cancelDir, GracePeriod: cfg.GracePeriod, Clock: m.clock}

	if cfg.Mode != ModeTimeGraph {
		d, err := SelectDisplay(meta, cfg.Mode, cfg.SliceAxis, cfg.DisplayAxes)
		if err != nil {
			return nil, err
		}
		m.display = d
		logging.Infof("Monitor %s: %s mode, %s x %s image, plane axis %s, %s voxels expected",
			m.session, cfg.Mode, d.Horizontal.Label(), d.Vertical.Label(), d.Plane.Label(),
			humanize.Comma(int64(meta.TotalVoxels())))
	} else {
		logging.Infof("Monitor %s: timegraph of %s for %d cameras x %d images",
			m.session, cfg.GraphChannel, len(meta.CameraIDs), meta.NumImages)
	}
	m.resetBuffers()
	return m, nil
}

func resolveCancelDir(meta *metadata.ScanMetadata, cfg Config) (string, error) {
	dir := cfg.CancelDir
	if dir == "" {
		dir = meta.LocalScanDataDir
	}
	if dir == "" {
		return "", &models.ConfigurationError{Reason: "no local scan data directory for the cancel marker"}
	}
	return dir, nil
}

// ClearStaleCancel removes a cancel marker left behind by a previous scan in
// the directory a new session would use. It must run before the acquisition
// process starts, otherwise the process stops on its first check.
func ClearStaleCancel(meta *metadata.ScanMetadata, cfg Config) error {
	dir, err := resolveCancelDir(meta, cfg)
	if err != nil {
		return err
	}
	c := &acquisition.Canceller{Dir: dir}
	if !c.Requested() {
		return nil
	}
	logging.Warningf("Removing stale cancel marker %s", c.MarkerPath())
	return c.Clear()
}

// Session returns the unique id of this monitoring session.
func (m *Monitor) Session() string { return m.session }

// Display returns the display geometry.
func (m *Monitor) Display() Display { return m.display }

// State returns the current lifecycle state.
func (m *Monitor) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Err returns the fatal error that finished the session, if any.
func (m *Monitor) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

// Snapshot returns the most recently published snapshot, or nil before the
// first pass.
func (m *Monitor) Snapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// Warnings returns the malformed record warnings of the session.
func (m *Monitor) Warnings() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.warnings...)
}

// Cancel requests cooperative cancellation. It returns immediately; Run
// performs the cancel protocol between passes.
func (m *Monitor) Cancel() {
	select {
	case m.cancelReq <- struct{}{}:
	default:
	}
}

// Run drives the monitor until the acquisition process exits, cancellation
// completes or ctx is done. It returns the fatal reconstruction error of the
// session, a *models.TimeoutError when the process had to be terminated, or
// nil.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := m.clock.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.Tick()
	for m.State() != Finished {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.cancelReq:
			return m.runCancel(ctx)
		case <-ticker.C():
			m.Tick()
		}
	}
	return m.Err()
}

func (m *Monitor) runCancel(ctx context.Context) error {
	cerr := m.canceller.Cancel(ctx, m.proc)

	m.pass.Lock()
	defer m.pass.Unlock()
	if m.State() != Finished {
		m.drain()
	}
	if cerr != nil {
		return cerr
	}
	return m.Err()
}

// Tick runs one read and update pass. It reports false when the tick was
// dropped because another pass was in flight. Once the acquisition process
// has exited, a final pass runs and the monitor finishes.
func (m *Monitor) Tick() bool {
	if !m.pass.TryLock() {
		return false
	}
	defer m.pass.Unlock()

	if m.State() == Finished {
		return true
	}
	m.update(false)
	if m.State() != Finished && m.proc.Exited() {
		m.drain()
	}
	return true
}

// drain runs the final pass. The caller holds m.pass.
func (m *Monitor) drain() {
	m.setState(Draining)
	m.update(true)
	if m.State() == Finished {
		return
	}
	m.setState(Finished)
	m.publish()
	logging.Infof("Monitor %s finished after %s records", m.session, humanize.Comma(int64(m.seen)))
}

// update reads whatever was appended since the previous pass. The caller
// holds m.pass.
func (m *Monitor) update(final bool) {
	if m.cfg.AsyncPath != "" {
		if err := records.MergeAsync(m.meta, m.cfg.AsyncPath, m.cfg.RecordsPath); err != nil {
			logging.Warningf("Merging %s: %v", m.cfg.AsyncPath, err)
		}
	}

	var batch records.Batch
	var err error
	if final {
		batch, err = m.tail.Flush()
	} else {
		batch, err = m.tail.Poll()
	}
	if err != nil {
		m.fail(err)
		return
	}
	if batch.Reset {
		logging.Debugf("Record file %s was replaced; rebuilding", m.cfg.RecordsPath)
		m.resetBuffers()
	}

	for n, line := range batch.Lines {
		if err := m.consume(line, batch.FirstLine+n); err != nil {
			m.fail(err)
			return
		}
	}
	m.publish()
}

func (m *Monitor) fail(err error) {
	logging.Errorf("Monitor %s stopped: %v", m.session, err)
	m.mu.Lock()
	m.err = err
	m.state = Finished
	m.mu.Unlock()
	m.publish()
}

func (m *Monitor) setState(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
}

// resetBuffers returns to the initial, header-less state with empty buffers.
func (m *Monitor) resetBuffers() {
	m.layout = nil
	m.plane = 0
	m.seen = 0
	m.cameras = nil
	m.buffers = make(map[string]*buffer)
	m.series = make(map[string]map[string]*seriesBuffer)
	for _, cam := range m.meta.CameraIDs {
		m.camera(cam)
	}

	m.mu.Lock()
	m.warnings = nil
	if m.state != Finished {
		m.state = AwaitingHeader
	}
	m.mu.Unlock()
}

// camera returns the buffers of a camera, creating them on first use.
func (m *Monitor) camera(id string) *buffer {
	if b, ok := m.buffers[id]; ok {
		return b
	}
	m.cameras = append(m.cameras, id)
	b := &buffer{}
	if m.cfg.Mode != ModeTimeGraph {
		n := 1
		if m.cfg.Mode == ModeSlices {
			n = m.display.Planes
		}
		b.frames = make([][]float64, n)
		for p := range b.frames {
			b.frames[p] = make([]float64, m.display.Width*m.display.Height)
		}
	}
	m.buffers[id] = b
	m.series[id] = make(map[string]*seriesBuffer)
	if m.cfg.Mode == ModeTimeGraph {
		for _, pw := range m.meta.PulseWidths {
			m.series[id][pw] = &seriesBuffer{}
		}
	}
	return b
}

func (m *Monitor) warn(err error) {
	msg := err.Error()
	if !m.logged[msg] {
		m.logged[msg] = true
		logging.Warningf("%s", msg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.warnings) < maxWarnings {
		m.warnings = append(m.warnings, msg)
	}
}

// consume applies one line of the record file. Only fatal errors are
// returned; malformed rows are recorded as warnings.
func (m *Monitor) consume(line string, lineNo int) error {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	row, err := records.SplitRow(line)
	if err != nil {
		m.warn(&models.MalformedRecordError{Line: lineNo, Reason: err.Error()})
		return nil
	}

	if m.layout == nil {
		if !records.IsHeader(row) {
			return &models.ReconstructionError{Reason: fmt.Sprintf("%s: first line is not a header", m.cfg.RecordsPath)}
		}
		layout, err := records.ParseHeader(row)
		if err != nil {
			return err
		}
		if err := m.require(layout); err != nil {
			return err
		}
		m.layout = layout
		m.setState(Accumulating)
		return nil
	}
	if records.IsHeader(row) {
		return nil
	}

	rec, err := m.layout.ParseRow(row, lineNo, m.seen)
	if err != nil {
		m.warn(err)
		return nil
	}
	if rec.CameraID == "0" {
		m.warn(&models.MalformedRecordError{Line: lineNo, Reason: "camera id 0"})
		return nil
	}

	if m.cfg.Mode == ModeTimeGraph {
		m.addPoint(rec)
	} else {
		m.addVoxel(rec, lineNo)
	}
	return nil
}

// require checks the header against what the display needs.
func (m *Monitor) require(l *records.Layout) error {
	if m.cfg.Mode == ModeTimeGraph {
		return l.RequireTimeSeries(m.cfg.GraphChannel)
	}
	var axes []models.AxisName
	for _, a := range m.display.Axes() {
		if m.meta.Count(a) > 1 {
			axes = append(axes, a)
		}
	}
	return l.Require(axes, []string{m.cfg.Channel})
}

func (m *Monitor) addVoxel(rec models.Record, lineNo int) {
	d := m.display
	h, v, p := rec.Index(d.Horizontal), rec.Index(d.Vertical), rec.Index(d.Plane)
	if h < 0 || h >= d.Width || v < 0 || v >= d.Height {
		m.warn(&models.MalformedRecordError{
			Line:   lineNo,
			Reason: fmt.Sprintf("index (%d, %d) outside the %dx%d display", h, v, d.Width, d.Height),
		})
		return
	}

	buf := m.camera(rec.CameraID)
	var frame []float64
	switch m.cfg.Mode {
	case ModeImage:
		if p > m.plane {
			m.plane = p
			for _, b := range m.buffers {
				clear(b.frames[0])
			}
		}
		frame = buf.frames[0]
	case ModeSlices:
		if p < 0 || p >= d.Planes {
			m.warn(&models.MalformedRecordError{
				Line:   lineNo,
				Reason: fmt.Sprintf("slice index %d outside 0..%d", p, d.Planes-1),
			})
			return
		}
		frame = buf.frames[p]
	}

	val := rec.Values[m.cfg.Channel]
	frame[v*d.Width+h] = val
	buf.add(val)
	m.seen++
}

func (m *Monitor) addPoint(rec models.Record) {
	m.camera(rec.CameraID)
	s, ok := m.series[rec.CameraID][rec.PulseWidth]
	if !ok {
		s = &seriesBuffer{}
		m.series[rec.CameraID][rec.PulseWidth] = s
	}
	val := rec.Values[m.cfg.GraphChannel]
	s.times = append(s.times, rec.Timestamp)
	s.values = append(s.values, val)
	s.add(val)
	m.seen++
}

func (m *Monitor) progress() float64 {
	cams := len(m.meta.CameraIDs)
	if cams == 0 {
		cams = 1
	}
	total := cams * m.meta.TotalVoxels()
	if m.cfg.Mode == ModeTimeGraph {
		total = cams * m.meta.NumImages
	}
	if total <= 0 {
		return 0
	}
	p := float64(m.seen) / float64(total)
	if p > 1 {
		p = 1
	}
	return p
}

// publish copies the buffers into a new snapshot and hands it to the sink.
// The caller holds m.pass.
func (m *Monitor) publish() {
	snap := &Snapshot{
		Session:  m.session,
		Taken:    m.clock.Now(),
		State:    m.State(),
		Mode:     m.cfg.Mode,
		Display:  m.display,
		Records:  m.seen,
		Progress: m.progress(),
		Warnings: m.Warnings(),
	}

	for _, cam := range m.cameras {
		b := m.buffers[cam]
		for p, raw := range b.frames {
			plane := p
			if m.cfg.Mode == ModeImage {
				plane = m.plane
			}
			snap.Frames = append(snap.Frames, Frame{
				Camera:     cam,
				Plane:      plane,
				Width:      m.display.Width,
				Height:     m.display.Height,
				Raw:        append([]float64(nil), raw...),
				Normalized: Normalize(raw, b.min, b.max),
				Min:        b.min,
				Max:        b.max,
			})
		}

		widths := make([]string, 0, len(m.series[cam]))
		for pw := range m.series[cam] {
			widths = append(widths, pw)
		}
		sort.Strings(widths)
		for _, pw := range widths {
			s := m.series[cam][pw]
			snap.Series = append(snap.Series, Series{
				Camera:     cam,
				PulseWidth: pw,
				Times:      append([]float64(nil), s.times...),
				Values:     append([]float64(nil), s.values...),
				Min:        s.min,
				Max:        s.max,
				Mean:       seriesMean(s.values),
			})
		}
	}

	m.mu.Lock()
	m.snapshot = snap
	m.mu.Unlock()

	if m.sink != nil {
		if err := m.sink.Update(snap); err != nil {
			logging.Warningf("Monitor %s: display update failed: %v", m.session, err)
		}
	}
}
