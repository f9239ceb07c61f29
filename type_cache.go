package container

import (
	"context"
	"reflect"
	"sync"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// funcInfo caches the reflection work needed to turn a Go function into a Constructor.
type funcInfo struct {
	params     []reflect.Type
	contextIdx []int
	depIdx     []int
	result     reflect.Type
	resultIdx  int
	errorIdx   int
	analyzeErr string
}

// Function types are analyzed once; descriptors are rebuilt cheaply from the cached info.
var globalFuncCache sync.Map // map[reflect.Type]*funcInfo

// getFuncInfo returns cached information for a function type, computing it if necessary.
func getFuncInfo(t reflect.Type) *funcInfo {
	if cached, ok := globalFuncCache.Load(t); ok {
		return cached.(*funcInfo)
	}

	info := &funcInfo{resultIdx: -1, errorIdx: -1}
	info.params = make([]reflect.Type, t.NumIn())
	for i := 0; i < t.NumIn(); i++ {
		in := t.In(i)
		info.params[i] = in
		if in == contextType {
			info.contextIdx = append(info.contextIdx, i)
		} else {
			info.depIdx = append(info.depIdx, i)
		}
	}

	for i := 0; i < t.NumOut(); i++ {
		out := t.Out(i)
		if out == errorType {
			if info.errorIdx >= 0 {
				info.analyzeErr = "multiple error results on a constructor function not permitted"
				break
			}
			info.errorIdx = i
			continue
		}
		if info.resultIdx >= 0 {
			info.analyzeErr = "constructor function must have exactly one non-error result"
			break
		}
		info.resultIdx = i
		info.result = out
	}
	if info.analyzeErr == "" && info.resultIdx < 0 {
		info.analyzeErr = "constructor function must have at least one result value"
	}

	actual, _ := globalFuncCache.LoadOrStore(t, info)
	return actual.(*funcInfo)
}
