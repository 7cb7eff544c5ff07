package runtime

import (
	"github.com/Mindburn-Labs/backplane/pkg/projection"
)

// ProjectionMatrix builds a projection matrix over the registry's current
// backends and priorities. Call it after registration; the matrix snapshot
// does not track later registry changes.
func (rt *Runtime) ProjectionMatrix() *projection.Matrix {
	matrix := projection.NewMatrix()
	for _, name := range rt.registry.Names() {
		backend, _ := rt.registry.Lookup(name)
		matrix.RegisterBackend(name, backend.Capabilities(), backend.Dialect(), rt.registry.Priority(name))
	}
	return matrix
}
