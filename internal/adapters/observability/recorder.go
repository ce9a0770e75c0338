package observability

import (
	"sync"

	"github.com/ghalamif/uabridge/internal/ports"
)

// Entry is one log call captured by a Recorder.
type Entry struct {
	Level  string
	Msg    string
	Err    error
	Fields []ports.Field
}

// Recorder keeps logs and metric values in memory. It backs embedded
// deployments that run without a Prometheus registry, and tests.
type Recorder struct {
	mu       sync.Mutex
	entries  []Entry
	counters map[string]float64
	gauges   map[string]float64
	observed map[string][]float64
}

func NewRecorder() *Recorder {
	return &Recorder{
		counters: make(map[string]float64),
		gauges:   make(map[string]float64),
		observed: make(map[string][]float64),
	}
}

func (r *Recorder) log(level, msg string, err error, fields []ports.Field) {
	r.mu.Lock()
	r.entries = append(r.entries, Entry{Level: level, Msg: msg, Err: err, Fields: fields})
	r.mu.Unlock()
}

func (r *Recorder) LogDebug(msg string, fields ...ports.Field) { r.log("debug", msg, nil, fields) }
func (r *Recorder) LogInfo(msg string, fields ...ports.Field)  { r.log("info", msg, nil, fields) }
func (r *Recorder) LogWarn(msg string, err error, fields ...ports.Field) {
	r.log("warn", msg, err, fields)
}
func (r *Recorder) LogError(msg string, err error, fields ...ports.Field) {
	r.log("error", msg, err, fields)
}
func (r *Recorder) LogCritical(msg string, err error, fields ...ports.Field) {
	r.log("critical", msg, err, fields)
}

func (r *Recorder) IncCounter(name string, v float64) {
	r.mu.Lock()
	r.counters[name] += v
	r.mu.Unlock()
}

func (r *Recorder) ObserveLatency(name string, seconds float64) {
	r.mu.Lock()
	r.observed[name] = append(r.observed[name], seconds)
	r.mu.Unlock()
}

func (r *Recorder) SetGauge(name string, v float64) {
	r.mu.Lock()
	r.gauges[name] = v
	r.mu.Unlock()
}

func (r *Recorder) Counter(name string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[name]
}

func (r *Recorder) Gauge(name string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gauges[name]
}

func (r *Recorder) Observations(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.observed[name])
}

// Entries returns the captured log calls with the given message.
func (r *Recorder) Entries(msg string) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Entry
	for _, e := range r.entries {
		if e.Msg == msg {
			out = append(out, e)
		}
	}
	return out
}

// Field returns the value of key in e, or nil.
func (e Entry) Field(key string) any {
	for _, f := range e.Fields {
		if f.Key == key {
			return f.Value
		}
	}
	return nil
}

var _ ports.Observability = (*Recorder)(nil)
