//go:build ruleguard

// Package gorules contains custom linting rules for golangci-lint via ruleguard.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// CalendarDays flags whole-day arithmetic on durations outside the estimate
// package. Day counts go through estimate.DaysBetween and estimate.AddDays.
//
//	int(b.Sub(a).Hours() / 24)   // flagged
//	estimate.DaysBetween(a, b)   // preferred
func CalendarDays(m dsl.Matcher) {
	m.Match(
		`int($b.Sub($a).Hours() / 24)`,
		`$b.Sub($a).Hours() / 24`,
	).
		Where(m["b"].Type.Is("time.Time") && !m.File().PkgPath.Matches(`internal/estimate$`)).
		Report("use estimate.DaysBetween($a, $b) for calendar day counts")

	m.Match(`int(time.Since($a).Hours() / 24)`).
		Where(!m.File().PkgPath.Matches(`internal/estimate$`)).
		Report("use estimate.DaysBetween($a, now) with an injected clock")

	m.Match(`$t.Add(time.Duration($n) * 24 * time.Hour)`).
		Where(m["t"].Type.Is("time.Time")).
		Report("use estimate.AddDays($t, $n) to step whole days").
		Suggest("estimate.AddDays($t, $n)")
}

// DateLayouts detects the literal day layout and suggests time.DateOnly.
func DateLayouts(m dsl.Matcher) {
	m.Match(`$t.Format("2006-01-02")`).
		Report(`use $t.Format(time.DateOnly) instead of a literal layout`).
		Suggest(`$t.Format(time.DateOnly)`)

	m.Match(`time.Parse("2006-01-02", $s)`).
		Report(`use time.Parse(time.DateOnly, $s) instead of a literal layout`).
		Suggest(`time.Parse(time.DateOnly, $s)`)

	m.Match(`time.ParseInLocation("2006-01-02", $s, $loc)`).
		Report(`use time.ParseInLocation(time.DateOnly, $s, $loc) instead of a literal layout`).
		Suggest(`time.ParseInLocation(time.DateOnly, $s, $loc)`)

	m.Match(`$t.Format("2006-01-02 15:04:05")`).
		Report(`use $t.Format(time.DateTime) instead of a literal layout`).
		Suggest(`$t.Format(time.DateTime)`)
}

// ModuleLogger flags building a module logger inline. Each package exposes
// GetLogger so the module name is spelled once.
func ModuleLogger(m dsl.Matcher) {
	m.Match(`logger.Global().Module($name).$_($*_)`).
		Where(!m.File().Name.Matches(`logger\.go$`)).
		Report("call GetLogger() instead of logger.Global().Module($name) at the call site")
}

// TestingContext suggests t.Context() over a background context in tests.
func TestingContext(m dsl.Matcher) {
	m.Match(
		`$ctx := context.Background()`,
		`$ctx = context.Background()`,
		`$ctx := context.TODO()`,
	).
		Where(m.File().Name.Matches(`_test\.go$`)).
		Report("in tests, use t.Context() so work is canceled when the test ends")

	m.Match(
		`$fn(context.Background(), $*args)`,
		`$fn(context.TODO(), $*args)`,
	).
		Where(m.File().Name.Matches(`_test\.go$`)).
		Report("in tests, pass t.Context() instead of a background context")
}

// WaitGroupGo detects the Add/Done goroutine pattern that wg.Go replaces.
func WaitGroupGo(m dsl.Matcher) {
	m.Match(`go func() { defer $wg.Done(); $*_ }()`).
		Where(m["wg"].Type.Is("*sync.WaitGroup")).
		Report("use $wg.Go(func() { ... }) instead of go func() { defer $wg.Done(); ... }()").
		Suggest("$wg.Go(func() { $*_ })")

	m.Match(`$wg.Add(1)`).
		Where(m["wg"].Type.Is("*sync.WaitGroup")).
		Report("consider $wg.Go(), which calls Add(1) itself")
}

// UnbuiltError flags an error builder returned without Build.
func UnbuiltError(m dsl.Matcher) {
	m.Match(`return errors.Newf($*_).Component($c).Category($cat)`,
		`return errors.New($_).Component($c).Category($cat)`).
		Report("finish the error with .Build()")
}
