package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// coordinatorOps 协调器操作计数；outcome 取 KindOf(err)，成功为 "ok"
var coordinatorOps = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sipenduk_coordinator_operations_total",
	Help: "Coordinator operations by name and outcome.",
}, []string{"operation", "outcome"})

func observe(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(KindOf(err))
	}
	coordinatorOps.WithLabelValues(operation, outcome).Inc()
}
