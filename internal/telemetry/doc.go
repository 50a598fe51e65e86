// Package telemetry provides OpenTelemetry tracing and metrics for recur.
//
// # Overview
//
// A run produces one span tree:
//
//	recur.run
//	├── recur.generate (agent=base)
//	├── recur.grade    (agent=base)
//	└── recur.round    (round=1..R)
//	    ├── recur.generate (agent=alt_i)
//	    └── recur.grade    (agent=alt_i)
//
// with backend.generate spans beneath every generate and grade span. Spans are
// exported over OTLP (grpc or http/protobuf) to a local collector.
//
// # Usage
//
//	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx, span := tel.StartSpan(ctx, "recur.round")
//	defer telemetry.EndSpan(span, err)
//
// # Error Handling
//
// Telemetry failures do not crash a run. If providers cannot be initialized
// the instance degrades to no-op providers and Health reports why.
//
// # Testing
//
//	tt := telemetry.NewTestTelemetry()
//	_, span := tt.StartSpan(ctx, "recur.round")
//	span.End()
//	tt.AssertSpanExists(t, "recur.round")
package telemetry
