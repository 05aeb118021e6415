package server

import (
	"fmt"
	"time"

	vm "github.com/VictoriaMetrics/metrics"
	"github.com/ValentinKolb/dBind/rpc/common"
)

// Request metrics live in the default VictoriaMetrics set, which the HTTP
// transport exposes on GET /metrics.
//
//	dbind_requests_total{op,result}      answered requests by domain result (or "ok" / error kind)
//	dbind_request_errors_total{op}       requests that ended in a fault or a rejected request
//	dbind_request_duration_seconds{op}   handling time, excluding transport and serialization

func observeRequest(req, resp *common.Message, start time.Time) {
	op := req.MsgType.Op()

	vm.GetOrCreateCounter(fmt.Sprintf(`dbind_requests_total{op=%q,result=%q}`, op, resultLabel(resp))).Inc()
	if resp.ErrKind != common.ErrKindNone {
		vm.GetOrCreateCounter(fmt.Sprintf(`dbind_request_errors_total{op=%q}`, op)).Inc()
	}
	vm.GetOrCreateHistogram(fmt.Sprintf(`dbind_request_duration_seconds{op=%q}`, op)).UpdateDuration(start)
}

func resultLabel(resp *common.Message) string {
	switch {
	case resp.ErrKind != common.ErrKindNone:
		return resp.ErrKind.String()
	case resp.Result != 0:
		return resp.Result.String()
	default:
		return "ok"
	}
}
