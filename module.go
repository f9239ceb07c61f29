package container

// Module is a unit of configuration. Configure receives the injector the bindings are
// destined for, so constructor providers can resolve their parameters through it, and
// returns the bindings in declaration order.
type Module interface {
	Configure(inj *Injector) ([]Binding, error)
}

// ModuleFunc adapts a function into a Module.
type ModuleFunc func(inj *Injector) ([]Binding, error)

func (f ModuleFunc) Configure(inj *Injector) ([]Binding, error) {
	return f(inj)
}

// Bindings wraps a fixed list of bindings as a Module. This is handy for tests and for
// instance bindings that need nothing from the injector.
func Bindings(bindings ...Binding) Module {
	return ModuleFunc(func(*Injector) ([]Binding, error) {
		return bindings, nil
	})
}
