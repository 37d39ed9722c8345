package schedule

import "context"

// LocalStore es el almacenamiento durable del dispositivo. No se comparte
// entre editores ni se sincroniza con el servidor; por eso no es un
// Repository como los de registros remotos.
type LocalStore interface {
	// Load devuelve ok=false si el scope nunca se guardó.
	Load(ctx context.Context, scope string) (State, bool, error)
	Save(ctx context.Context, scope string, st State) error
}
