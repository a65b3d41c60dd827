package reactive

import (
	"runtime"
	"strings"

	"github.com/vango-dev/reactor/internal/errors"
)

// Diagnostic is a coded condition emitted by the runtime. Misuse
// diagnostics are also panicked at the call site.
type Diagnostic = errors.Error

// site is the location of a write recorded in dev mode.
type site struct {
	file string
	line int
	fn   string
}

const maxSitesPerSignal = 8

// recordSite stores the caller of a Source write on s. skip counts frames
// above recordSite.
func (rt *Runtime) recordSite(s *node, skip int) {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return
	}
	for _, existing := range s.sites {
		if existing.file == file && existing.line == line {
			return
		}
	}
	if len(s.sites) >= maxSitesPerSignal {
		return
	}
	name := ""
	if f := runtime.FuncForPC(pc); f != nil {
		name = f.Name()
		if i := strings.LastIndex(name, "/"); i >= 0 {
			name = name[i+1:]
		}
	}
	s.sites = append(s.sites, site{file: file, line: line, fn: name})
}

// report logs a diagnostic and hands it to the observers and the handler.
func (rt *Runtime) report(d *Diagnostic) {
	attrs := []any{"code", d.Code, "name", d.Name}
	if d.Detail != "" {
		attrs = append(attrs, "detail", d.Detail)
	}
	if d.IsWarning() {
		rt.logger.Warn(d.Message, attrs...)
	} else {
		rt.logger.Error(d.Message, attrs...)
	}
	for _, o := range rt.observers {
		o.Diagnostic(d)
	}
	if rt.onDiagnostic != nil {
		rt.onDiagnostic(d)
	}
}

// warn reports a warning with optional detail.
func (rt *Runtime) warn(code, detail string) {
	d := errors.New(code)
	if detail != "" {
		d.WithDetail(detail)
	}
	rt.report(d)
}

// misuse reports a programmer error and panics with it.
func (rt *Runtime) misuse(code, detail string) {
	d := errors.New(code)
	if detail != "" {
		d.WithDetail(detail)
	}
	if _, file, line, ok := runtime.Caller(2); ok {
		d.Location = &errors.Location{File: file, Line: line}
	}
	rt.report(d)
	panic(d)
}
