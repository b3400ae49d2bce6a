// Package factory provides a small generic registry used to instantiate
// pluggable modules (solver backends, metrics sinks) from configuration. A
// module is named by a type string and carries a map of raw settings that the
// factory decodes into a typed struct with Decode.
//
//	reg := factory.NewRegistry[solver.Backend]()
//	_ = reg.Register("glpsol", func(conf map[string]any) (solver.Backend, error) {
//	    var c glpsol.Config
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return glpsol.New(c)
//	})
//	b, err := reg.Create(factory.ModuleConfig{Type: "glpsol", Conf: map[string]any{"binary": "glpsol"}})
package factory
