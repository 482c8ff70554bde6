package actor

import (
	"path"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	prom "github.com/prometheus/client_golang/prometheus"
)

const (
	promNamespace = "schedsim"
	promSubsystem = "actors"
	wildcard      = "*"
)

// EnablePrometheus toggles the collection of actor receive metrics.
var EnablePrometheus = true

var (
	receiveLabels    = []string{"to", "msg"}
	receiveHistogram = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: promNamespace,
		Subsystem: promSubsystem,
		Name:      "receive",
		Help:      "wall-clock timings for actor receive calls",
		Buckets:   prom.DefBuckets,
	}, receiveLabels)
	receiveErrors = prom.NewCounterVec(prom.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promSubsystem,
		Name:      "receive_errors",
		Help:      "errors from actor receive calls",
	}, receiveLabels)
)

func init() {
	prom.MustRegister(receiveHistogram)
	prom.MustRegister(receiveErrors)
}

func (r *Ref) time(ctx *Context) (end func()) {
	if !EnablePrometheus {
		return func() {}
	}

	start := time.Now()
	return func() {
		receiveHistogram.WithLabelValues(r.promLabels(ctx)...).Observe(time.Since(start).Seconds())
	}
}

func (r *Ref) recordErr(ctx *Context) func(error) {
	if !EnablePrometheus {
		return func(error) {}
	}

	return func(err error) {
		if err == nil {
			return
		}
		receiveErrors.WithLabelValues(r.promLabels(ctx)...).Inc()
	}
}

func (r *Ref) promLabels(ctx *Context) []string {
	to := normalizeAddr(r.address.path)
	msg := "PreStart"
	if ctx != nil && ctx.message != nil {
		msg = reflect.TypeOf(ctx.message).String()
	}
	return []string{to, msg}
}

// normalizeAddr normalizes actor paths like /jobs/1 and /notify-timer-<uuid> into /jobs/* and
// /notify-timer-* so that there isn't an explosion of prometheus labels.
func normalizeAddr(addr string) string {
	parts := strings.Split(strings.Trim(addr, "/"), "/")
	for i, part := range parts {
		if _, err := strconv.Atoi(part); err == nil {
			parts[i] = wildcard
			continue
		}
		if len(part) > 36 {
			if _, err := uuid.Parse(part[len(part)-36:]); err == nil {
				parts[i] = part[:len(part)-36] + wildcard
			}
		}
	}
	return path.Join(append([]string{"/"}, parts...)...)
}
