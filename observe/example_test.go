package observe_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/taskops/observe"
	"github.com/jonwraymond/taskops/resilience"
)

func ExampleNewObserver() {
	cfg := observe.Config{
		ServiceName: "example-service",
		Version:     "1.0.0",
		Tracing:     observe.TracingConfig{Enabled: true, Exporter: "none"},
		Metrics:     observe.MetricsConfig{Enabled: false},
		Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
	}

	ctx := context.Background()
	obs, err := observe.NewObserver(ctx, cfg)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	defer func() {
		_ = obs.Shutdown(ctx)
	}()

	fmt.Println("Observer created successfully")
	// Output:
	// Observer created successfully
}

func ExampleNewObserver_validation() {
	_, err := observe.NewObserver(context.Background(), observe.Config{})
	if errors.Is(err, observe.ErrMissingServiceName) {
		fmt.Println("Caught: missing service name")
	}
	// Output:
	// Caught: missing service name
}

func ExampleConfig_Validate() {
	cfg := observe.Config{
		ServiceName: "my-service",
		Tracing:     observe.TracingConfig{Enabled: true, Exporter: "otlp", SamplePct: 0.5},
		Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "prometheus"},
		Logging:     observe.LoggingConfig{Enabled: true, Level: "warn"},
	}

	if err := cfg.Validate(); err != nil {
		fmt.Println("Invalid:", err)
	} else {
		fmt.Println("Configuration is valid")
	}
	// Output:
	// Configuration is valid
}

func ExampleOpMeta_SpanName() {
	fmt.Println(observe.OpMeta{Component: "retry", Name: "fetch_user"}.SpanName())
	fmt.Println(observe.OpMeta{Name: "load"}.SpanName())
	// Output:
	// resilience.retry.fetch_user
	// resilience.op.load
}

func ExampleLogger_WithOp() {
	var buf bytes.Buffer
	logger := observe.NewLoggerWithWriter("info", &buf)

	scoped := logger.WithOp(observe.OpMeta{Component: "ratelimit", Name: "search"})
	scoped.Info(context.Background(), "admitted", observe.Field{Key: "arg", Value: "q=secret"})

	fmt.Println("Contains op:", bytes.Contains(buf.Bytes(), []byte(`"resilience.op":"search"`)))
	fmt.Println("Argument redacted:", bytes.Contains(buf.Bytes(), []byte(`"arg":"[REDACTED]"`)))
	// Output:
	// Contains op: true
	// Argument redacted: true
}

func ExampleWrap() {
	ctx := context.Background()

	obs, _ := observe.NewObserver(ctx, observe.Config{
		ServiceName: "example",
		Tracing:     observe.TracingConfig{Enabled: true, Exporter: "none"},
		Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "none"},
	})
	defer func() {
		_ = obs.Shutdown(ctx)
	}()

	mw, _ := observe.MiddlewareFromObserver(obs)

	meta := observe.OpMeta{Component: "retry", Name: "fetch"}
	cfg := resilience.DefaultRetryConfig()
	cfg.BaseDelay = time.Millisecond
	cfg.OnRetry = mw.RetryHook(meta)
	retry, _ := resilience.NewRetry(cfg)

	attempts := 0
	out := resilience.WithRetry(ctx, retry, observe.Wrap(mw, meta, func(tok *resilience.Token) (string, error) {
		attempts++
		if attempts == 1 {
			return "", errors.New("transient")
		}
		return "fetched", nil
	}))

	fmt.Println(out.Value, out.Err, attempts)
	// Output:
	// fetched <nil> 2
}

func ExampleParseLogLevel() {
	for _, s := range []string{"debug", "info", "warn", "error", "unknown"} {
		fmt.Printf("%s -> %s\n", s, observe.ParseLogLevel(s))
	}
	// Output:
	// debug -> debug
	// info -> info
	// warn -> warn
	// error -> error
	// unknown -> info
}
