package heartbeat

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// recorder is a Display that keeps the latest value of every field and the
// order of calls.
type recorder struct {
	mu        sync.Mutex
	connected bool
	status    string
	rate      string
	errs      []error
	calls     []string
}

func newRecorder() *recorder {
	return &recorder{rate: Placeholder}
}

func (r *recorder) SetConnected(connected bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected = connected
	r.calls = append(r.calls, "connected")
}

func (r *recorder) SetStatus(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = text
	r.calls = append(r.calls, "status")
}

func (r *recorder) SetHeartRate(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rate = text
	r.calls = append(r.calls, "rate")
}

func (r *recorder) SetError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
	r.calls = append(r.calls, "error")
}

func (r *recorder) snapshot() (connected bool, status, rate string, calls []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected, r.status, r.rate, append([]string(nil), r.calls...)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
