package flows

// Deps groups flow dependency sets. The root Client builds this once and
// delegates account methods to the matching flow. Verification deps are built
// per attempt because they depend on the kind.
type Deps struct {
	Account AccountDeps
}
