package upgrader

// Upgrader converts a stage instance's configuration recorded at fromVersion
// into the configuration valid for toVersion. Callers invoke it only when
// fromVersion < toVersion.
//
// Implementations must not retain configs or mutate shared state; Upgrade may
// be called concurrently for different instances of the same stage type.
type Upgrader interface {
	Upgrade(library, stageName, stageInstance string, fromVersion, toVersion int, configs []Config) ([]Config, error)
}

// UpgraderFunc adapts a function to Upgrader.
type UpgraderFunc func(library, stageName, stageInstance string, fromVersion, toVersion int, configs []Config) ([]Config, error)

// Upgrade implements Upgrader.
func (f UpgraderFunc) Upgrade(library, stageName, stageInstance string, fromVersion, toVersion int, configs []Config) ([]Config, error) {
	return f(library, stageName, stageInstance, fromVersion, toVersion, configs)
}

// Default is bound to stage types that declare no upgrade path. It always
// fails with CodeNotImplemented.
var Default Upgrader = defaultUpgrader{}

type defaultUpgrader struct{}

func (defaultUpgrader) Upgrade(library, stageName, stageInstance string, _, _ int, _ []Config) ([]Config, error) {
	return nil, NotImplementedError(library, stageName, stageInstance)
}

// IsDefault reports whether u is the Default upgrader.
func IsDefault(u Upgrader) bool {
	_, ok := u.(defaultUpgrader)
	return ok
}
