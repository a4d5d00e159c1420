// Package upgrader lets a stage declare how to bring its persisted
// configuration forward from any earlier schema version to its current one.
//
// An Upgrader is bound to a stage type (library + stage name). The loading
// code calls it only when the version recorded with a configuration is older
// than the version the stage currently declares:
//
//	configs, err := u.Upgrade("lib", "jdbc-source", "source1", 1, 3, configs)
//
// The result is the complete configuration set for the current version. On
// failure nothing is returned; the error is one of two structured kinds:
//
//   - CodeNotImplemented (UPGRADER_00): the stage type has no upgrade path at
//     all. Default returns it unconditionally.
//   - CodeCannotUpgrade (UPGRADER_01): the requested version range is not
//     covered, or a step could not transform a value.
//
// Both carry an ordered parameter list matching the message template so an
// error renderer can localize them. Use errors.Is(err, CodeCannotUpgrade) or
// the IsNotImplemented / IsCannotUpgrade helpers.
//
// # Chains
//
// Most stages implement Upgrader with a Chain: an ordered mapping from version
// v to a Step that converts v to v+1. Upgrading from 1 to 3 runs step 1 then
// step 2 on a working copy of the input; if any step is missing or fails, the
// input is left untouched and a CodeCannotUpgrade error is returned.
//
//	chain := upgrader.NewChain()
//	chain.MustRegister(1, upgrader.Rename("user", "username"))
//	chain.MustRegister(2, upgrader.Add("connectionTimeoutMs", 30000))
//
// Steps are plain functions over Configs. Rename, Add, Remove, Transform,
// Convert and Require cover the common edits; Steps composes several edits
// into one version transition.
package upgrader
