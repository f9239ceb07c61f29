package container

import (
	"fmt"
	"strings"
)

// Status is a diagnostic tool that returns a string describing the binding table. Each line
// is one binding in declaration order with its scope, the kind of provider behind it and,
// for singletons, whether the instance has been built yet.
func (i *Injector) Status() string {
	result := strings.Builder{}
	for _, reg := range i.registrations() {
		if result.Len() > 0 {
			result.WriteString("\n")
		}
		b := reg.binding
		result.WriteString(fmt.Sprintf("%v - %v - %s", b.Key, b.Scope, formatProviderDebug(b.Provider)))
		if s, ok := reg.provider.(*singletonScope); ok {
			if s.live() {
				result.WriteString(" - live")
			} else if b.Eager {
				result.WriteString(" - eager, not built")
			} else {
				result.WriteString(" - not built")
			}
		}
	}
	return result.String()
}

// formatProviderDebug returns a short description of a provider. Constructor providers list
// the keys their selected constructor needs; this avoids raw addresses and keeps the output
// stable for tests.
func formatProviderDebug(p Provider) string {
	switch typed := p.(type) {
	case *ConstructorProvider:
		builder := strings.Builder{}
		builder.WriteString("constructor(")
		for idx, dep := range typed.Dependencies() {
			if idx > 0 {
				builder.WriteString(", ")
			}
			builder.WriteString(dep.String())
		}
		builder.WriteString(")")
		return builder.String()
	case *RemoteProvider:
		return "remote " + typed.Endpoint()
	case *instanceProvider:
		return "instance"
	case ProviderFunc:
		return "func"
	}
	return fmt.Sprintf("%T", p)
}
