package checker

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Func is a check that needs nothing from the caller but a context.
type Func func(ctx context.Context) (any, error)

// RequestFunc is a check that inspects the incoming request, e.g. its
// headers or client address.
type RequestFunc func(r *http.Request) (any, error)

// Kind tells which variant a Reference holds.
type Kind int

const (
	KindFunc Kind = iota
	KindRequestFunc
	KindPath
	KindRemote
)

func (k Kind) String() string {
	switch k {
	case KindFunc:
		return "func"
	case KindRequestFunc:
		return "request_func"
	case KindPath:
		return "path"
	case KindRemote:
		return "remote"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Reference points at a check implementation.
type Reference struct {
	kind      Kind
	fn        Func
	requestFn RequestFunc
	target    string
}

// FuncRef wraps a plain check function.
func FuncRef(fn Func) Reference {
	return Reference{kind: KindFunc, fn: fn}
}

// RequestRef wraps a check that receives the current request.
func RequestRef(fn RequestFunc) Reference {
	return Reference{kind: KindRequestFunc, requestFn: fn}
}

// PathRef names a function registered in a Library, e.g. "contrib.check_database".
func PathRef(path string) Reference {
	return Reference{kind: KindPath, target: path}
}

// RemoteRef queries another health endpoint over HTTP.
func RemoteRef(url string) Reference {
	return Reference{kind: KindRemote, target: url}
}

// ParseReference turns a configured string into a Reference: http and https
// URLs become remote checks, anything else a library path.
func ParseReference(s string) Reference {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return RemoteRef(s)
	}
	return PathRef(s)
}

func (r Reference) Kind() Kind {
	return r.kind
}

// Target is the path or URL for KindPath and KindRemote references.
func (r Reference) Target() string {
	return r.target
}

func (r Reference) String() string {
	switch r.kind {
	case KindPath, KindRemote:
		return r.target
	default:
		return "<" + r.kind.String() + ">"
	}
}
