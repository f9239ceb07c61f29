package container

import (
	"context"
	"fmt"
	"reflect"
)

// Validate registers a startup check. The validator function can take any number of
// parameters that will be resolved from the injector, and must return an error. Start runs
// the validators in registration order after the eager singletons are built; the first
// failure aborts Start.
//
// Example:
//
//	c.Validate(func(ctx context.Context, cfg *AppConfig, db *Database) error {
//	    return db.Ping(ctx)
//	})
func (c *Container) Validate(validator any) {
	vType := reflect.TypeOf(validator)
	if vType == nil || vType.Kind() != reflect.Func {
		panic(fmt.Sprintf("Validate argument must be a function, got %v", vType))
	}

	// Verify the function returns exactly one value of type error
	if vType.NumOut() != 1 {
		panic(fmt.Sprintf("validator must return exactly one value (error), got %d", vType.NumOut()))
	}
	if vType.Out(0) != errorType {
		panic(fmt.Sprintf("validator must return error, got %v", vType.Out(0)))
	}

	// At least one parameter is required
	if vType.NumIn() == 0 {
		panic("validator must have at least one parameter")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.validators = append(c.validators, reflect.ValueOf(validator))
}

// runValidators executes all registered validators.
func (c *Container) runValidators(ctx context.Context) error {
	c.mu.Lock()
	validators := make([]reflect.Value, len(c.validators))
	copy(validators, c.validators)
	c.mu.Unlock()

	for _, v := range validators {
		if err := c.runValidator(ctx, v); err != nil {
			return err
		}
	}
	return nil
}

// runValidator resolves the parameters of a single validator and calls it.
func (c *Container) runValidator(ctx context.Context, fnValue reflect.Value) error {
	fnType := fnValue.Type()

	params := make([]reflect.Value, fnType.NumIn())
	for i := 0; i < fnType.NumIn(); i++ {
		paramType := fnType.In(i)

		if paramType == contextType {
			params[i] = reflect.ValueOf(&ctx).Elem()
			continue
		}
		key := KeyFor(paramType)
		value, err := c.injector.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("validator dependency resolution failed for type %v: %w", paramType, err)
		}
		if params[i], err = argumentValue(key, paramType, value); err != nil {
			return fmt.Errorf("validator dependency resolution failed for type %v: %w", paramType, err)
		}
	}

	results := fnValue.Call(params)
	if !results[0].IsNil() {
		return results[0].Interface().(error)
	}
	return nil
}
