// Copyright (C) 2026 Meridian IDE (engineering@meridian-ide.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package model

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ===== METRICS =====

const meterName = "meridian.model"

var (
	metricsOnce sync.Once

	operationDuration metric.Float64Histogram
	operationTotal    metric.Int64Counter
	activeJobs        metric.Int64UpDownCounter
	eventsDelivered   metric.Int64Counter
)

// initMetrics lazily creates the package instruments. Called on first use
// so binaries that never install a MeterProvider pay only for no-op
// instruments.
func initMetrics() {
	metricsOnce.Do(func() {
		meter := otel.Meter(meterName)
		var err error

		operationDuration, err = meter.Float64Histogram(
			"meridian.model.operation.duration",
			metric.WithDescription("Document operation execution latency"),
			metric.WithUnit("s"),
		)
		if err != nil {
			otel.Handle(err)
		}

		operationTotal, err = meter.Int64Counter(
			"meridian.model.operation.total",
			metric.WithDescription("Document operations executed, by outcome"),
		)
		if err != nil {
			otel.Handle(err)
		}

		activeJobs, err = meter.Int64UpDownCounter(
			"meridian.model.jobs.active",
			metric.WithDescription("Asynchronous jobs currently pending or running"),
		)
		if err != nil {
			otel.Handle(err)
		}

		eventsDelivered, err = meter.Int64Counter(
			"meridian.model.subscription.events",
			metric.WithDescription("Change events delivered to subscribers"),
		)
		if err != nil {
			otel.Handle(err)
		}
	})
}

// recordOperation notes one executed operation.
func recordOperation(ctx context.Context, languageID, operationID string, seconds float64, success bool) {
	initMetrics()
	attrs := metric.WithAttributes(
		attribute.String("language_id", languageID),
		attribute.String("operation_id", operationID),
		attribute.Bool("success", success),
	)
	if operationDuration != nil {
		operationDuration.Record(ctx, seconds, attrs)
	}
	if operationTotal != nil {
		operationTotal.Add(ctx, 1, attrs)
	}
}

// recordJobDelta adjusts the active-job gauge.
func recordJobDelta(ctx context.Context, delta int64) {
	initMetrics()
	if activeJobs != nil {
		activeJobs.Add(ctx, delta)
	}
}

// recordEventDelivered notes one delivered change event.
func recordEventDelivered(ctx context.Context, changeType string) {
	initMetrics()
	if eventsDelivered != nil {
		eventsDelivered.Add(ctx, 1, metric.WithAttributes(
			attribute.String("change_type", changeType),
		))
	}
}
