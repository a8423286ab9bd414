// Package factory is a small generic registry that builds modules from
// configuration. A module is a type name plus raw settings; each factory
// decodes the settings into its own struct.
//
//	reg := factory.NewRegistry[lane.Store]()
//	reg.MustRegister("memory", func(map[string]any) (lane.Store, error) {
//	    return lane.NewMemoryStore(), nil
//	})
//	s, err := reg.Create(factory.ModuleConfig{Type: "memory"})
package factory
